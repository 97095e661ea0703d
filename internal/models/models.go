// Package models holds the records produced by a crawl: threads, posts,
// users and the interaction edges derived from posts.
package models

import (
	"time"
)

// Thread is one discussion thread, keyed by the id in its URL.
type Thread struct {
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	ThreadURL string    `db:"thread_url" json:"thread_url"`
	ForumURL  *string   `db:"forum_url" json:"forum_url,omitempty"`
	Title     *string   `db:"title" json:"title,omitempty"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
	ScrapedAt time.Time `db:"scraped_at" json:"scraped_at"`
}

// UsernameSource ranks where a post's username came from. A higher rank may
// replace a lower one; never the other way round.
type UsernameSource int

const (
	UsernameDisplay UsernameSource = iota + 1
	UsernameCanonical
)

func (s UsernameSource) String() string {
	switch s {
	case UsernameDisplay:
		return "display"
	case UsernameCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// Post is a single message in a thread.
type Post struct {
	PostID         string         `db:"post_id" json:"post_id"`
	ThreadID       string         `db:"thread_id" json:"thread_id"`
	PageURL        string         `db:"page_url" json:"page_url"`
	UserID         string         `db:"user_id" json:"user_id"`
	Username       string         `db:"username" json:"username"`
	UsernameSource UsernameSource `db:"username_source" json:"-"`
	Timestamp      time.Time      `db:"timestamp" json:"timestamp"`
	Text           string         `db:"text" json:"text"`
	// Position orders posts within a page; it is crawl bookkeeping and not exported.
	Position  int        `db:"position" json:"-"`
	Quotes    []QuoteRef `db:"-" json:"quotes,omitempty"`
	FirstSeen time.Time  `db:"first_seen" json:"-"`
	ScrapedAt time.Time  `db:"scraped_at" json:"scraped_at"`
}

// QuoteRef is what a quote block tells us about the post it reproduces.
// Any field may be empty when the markup omits it.
type QuoteRef struct {
	Username string `db:"username" json:"username,omitempty"`
	PostID   string `db:"quoted_post_id" json:"post_id,omitempty"`
	UserID   string `db:"quoted_user_id" json:"user_id,omitempty"`
}

// User is a point-in-time snapshot of a member profile.
type User struct {
	UserID         string     `db:"user_id" json:"user_id"`
	Username       *string    `db:"username" json:"username,omitempty"`
	ProfileURL     string     `db:"profile_url" json:"profile_url"`
	JoinDate       *time.Time `db:"join_date" json:"join_date,omitempty"`
	Role           *string    `db:"role" json:"role,omitempty"`
	Gender         *string    `db:"gender" json:"gender,omitempty"`
	CountryOfBirth *string    `db:"country_of_birth" json:"country_of_birth,omitempty"`
	Location       *string    `db:"location" json:"location,omitempty"`
	MBTIType       *string    `db:"mbti_type" json:"mbti_type,omitempty"`
	EnneagramType  *string    `db:"enneagram_type" json:"enneagram_type,omitempty"`
	Socionics      *string    `db:"socionics" json:"socionics,omitempty"`
	Occupation     *string    `db:"occupation" json:"occupation,omitempty"`

	Replies            *int64 `db:"replies" json:"replies,omitempty"`
	DiscussionsCreated *int64 `db:"discussions_created" json:"discussions_created,omitempty"`
	ReactionScore      *int64 `db:"reaction_score" json:"reaction_score,omitempty"`
	Points             *int64 `db:"points" json:"points,omitempty"`
	MediaCount         *int64 `db:"media_count" json:"media_count,omitempty"`
	ShowcaseCount      *int64 `db:"showcase_count" json:"showcase_count,omitempty"`

	UsernameSource UsernameSource `db:"username_source" json:"-"`
	FirstSeen      time.Time      `db:"first_seen" json:"-"`
	ScrapedAt      time.Time      `db:"scraped_at" json:"scraped_at"`
}

// InteractionType names the signal an edge was derived from.
type InteractionType string

const (
	InteractionQuote         InteractionType = "quote"
	InteractionMention       InteractionType = "mention"
	InteractionImplicitReply InteractionType = "implicit_reply"
)

// Interaction is a directed reply edge from one post's author to another user.
type Interaction struct {
	InteractionID  string          `db:"interaction_id" json:"interaction_id"`
	ReplyingPostID string          `db:"replying_post_id" json:"replying_post_id"`
	TargetPostID   *string         `db:"target_post_id" json:"target_post_id"`
	SourceUserID   string          `db:"source_user_id" json:"source_user_id"`
	TargetUserID   string          `db:"target_user_id" json:"target_user_id"`
	ThreadID       string          `db:"thread_id" json:"thread_id"`
	Type           InteractionType `db:"interaction_type" json:"interaction_type"`
	Confidence     float64         `db:"confidence" json:"confidence"`
	ScrapedAt      time.Time       `db:"scraped_at" json:"scraped_at"`
}

// CommitResult reports what an upsert did.
type CommitResult int

const (
	Inserted CommitResult = iota + 1
	Updated
)

func (r CommitResult) String() string {
	if r == Inserted {
		return "inserted"
	}
	return "updated"
}

// Forum is one entry of the forum directory page.
type Forum struct {
	Name string `json:"forum_name"`
	URL  string `json:"forum_url"`
}

// Merge overlays the non-nil fields of next onto u. Nil never erases.
func (u User) Merge(next User) User {
	out := u
	if next.UserID != "" {
		out.UserID = next.UserID
	}
	if next.ProfileURL != "" {
		out.ProfileURL = next.ProfileURL
	}
	out.Username = overlay(u.Username, next.Username)
	if next.Username != nil && next.UsernameSource != 0 {
		out.UsernameSource = next.UsernameSource
	}
	out.JoinDate = overlay(u.JoinDate, next.JoinDate)
	out.Role = overlay(u.Role, next.Role)
	out.Gender = overlay(u.Gender, next.Gender)
	out.CountryOfBirth = overlay(u.CountryOfBirth, next.CountryOfBirth)
	out.Location = overlay(u.Location, next.Location)
	out.MBTIType = overlay(u.MBTIType, next.MBTIType)
	out.EnneagramType = overlay(u.EnneagramType, next.EnneagramType)
	out.Socionics = overlay(u.Socionics, next.Socionics)
	out.Occupation = overlay(u.Occupation, next.Occupation)
	out.Replies = overlay(u.Replies, next.Replies)
	out.DiscussionsCreated = overlay(u.DiscussionsCreated, next.DiscussionsCreated)
	out.ReactionScore = overlay(u.ReactionScore, next.ReactionScore)
	out.Points = overlay(u.Points, next.Points)
	out.MediaCount = overlay(u.MediaCount, next.MediaCount)
	out.ShowcaseCount = overlay(u.ShowcaseCount, next.ShowcaseCount)
	if out.FirstSeen.IsZero() || (!next.FirstSeen.IsZero() && next.FirstSeen.Before(out.FirstSeen)) {
		out.FirstSeen = next.FirstSeen
	}
	if next.ScrapedAt.After(out.ScrapedAt) {
		out.ScrapedAt = next.ScrapedAt
	}
	return out
}

// overlay returns next when set, otherwise old.
func overlay[T any](old, next *T) *T {
	if next != nil {
		return next
	}
	return old
}
