package export

import (
	"context"
	"strconv"
	"time"

	"forumgraph/internal/models"
)

var (
	ThreadColumns = []string{
		"thread_id", "thread_url", "forum_url", "title",
		"first_seen", "last_seen", "scraped_at",
	}
	PostColumns = []string{
		"thread_id", "thread_url", "page_url", "post_id", "user_id",
		"username", "timestamp", "text", "scraped_at",
	}
	UserColumns = []string{
		"user_id", "username", "profile_url", "join_date", "role",
		"gender", "country_of_birth", "location", "mbti_type", "enneagram_type",
		"socionics", "occupation", "replies", "discussions_created", "reaction_score",
		"points", "media_count", "showcase_count", "scraped_at",
	}
	InteractionColumns = []string{
		"interaction_id", "replying_post_id", "target_post_id", "source_user_id",
		"target_user_id", "thread_id", "interaction_type", "confidence", "scraped_at",
	}
	ForumColumns = []string{"forum_name", "forum_url"}
)

// Source is the read side of the crawl store.
type Source interface {
	AllThreads(ctx context.Context) ([]models.Thread, error)
	AllPosts(ctx context.Context) ([]models.Post, error)
	AllUsers(ctx context.Context) ([]models.User, error)
	AllInteractions(ctx context.Context) ([]models.Interaction, error)
}

// Counts is the number of rows in each written table, by table name.
type Counts map[string]int

// WriteTables upserts every stored record into threads.csv, posts.csv,
// users.csv and interactions.csv under dir.
func WriteTables(ctx context.Context, src Source, dir string) (Counts, error) {
	threads, err := src.AllThreads(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := src.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	users, err := src.AllUsers(ctx)
	if err != nil {
		return nil, err
	}
	interactions, err := src.AllInteractions(ctx)
	if err != nil {
		return nil, err
	}

	threadURL := make(map[string]string, len(threads))
	for _, t := range threads {
		threadURL[t.ThreadID] = t.ThreadURL
	}

	// Interaction rows of a stored thread are replaced as a set, so edges a
	// later derivation dropped leave the file too.
	derived := make(map[string]bool, len(threads))
	for _, t := range threads {
		derived[t.ThreadID] = true
	}
	for _, i := range interactions {
		derived[i.ThreadID] = true
	}

	counts := Counts{}
	write := func(name string, columns []string, key string, rows [][]string, prune func(*Table) error) error {
		t, err := NewTable(name, columns, key)
		if err != nil {
			return err
		}
		if err := t.Load(dir); err != nil {
			return err
		}
		if prune != nil {
			if err := prune(t); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if _, err := t.Upsert(row); err != nil {
				return err
			}
		}
		if err := t.Save(dir); err != nil {
			return err
		}
		counts[name] = t.Len()
		return nil
	}

	if err := write("threads", ThreadColumns, "thread_id", mapRows(threads, ThreadRow), nil); err != nil {
		return counts, err
	}
	if err := write("posts", PostColumns, "post_id", mapRows(posts, func(p models.Post) []string {
		return PostRow(p, threadURL[p.ThreadID])
	}), nil); err != nil {
		return counts, err
	}
	if err := write("users", UserColumns, "user_id", mapRows(users, UserRow), nil); err != nil {
		return counts, err
	}
	if err := write("interactions", InteractionColumns, "interaction_id", mapRows(interactions, InteractionRow), func(t *Table) error {
		_, err := t.DeleteWhere("thread_id", func(id string) bool { return derived[id] })
		return err
	}); err != nil {
		return counts, err
	}
	return counts, nil
}

// WriteForums upserts a forum directory listing into forums.csv.
func WriteForums(forums []models.Forum, dir string) (int, error) {
	t, err := NewTable("forums", ForumColumns, "forum_url")
	if err != nil {
		return 0, err
	}
	if err := t.Load(dir); err != nil {
		return 0, err
	}
	for _, f := range forums {
		if _, err := t.Upsert([]string{f.Name, f.URL}); err != nil {
			return 0, err
		}
	}
	return t.Len(), t.Save(dir)
}

func ThreadRow(t models.Thread) []string {
	return []string{
		t.ThreadID,
		t.ThreadURL,
		deref(t.ForumURL),
		deref(t.Title),
		stamp(t.FirstSeen),
		stamp(t.LastSeen),
		stamp(t.ScrapedAt),
	}
}

func PostRow(p models.Post, threadURL string) []string {
	return []string{
		p.ThreadID,
		threadURL,
		p.PageURL,
		p.PostID,
		p.UserID,
		p.Username,
		stamp(p.Timestamp),
		p.Text,
		stamp(p.ScrapedAt),
	}
}

func UserRow(u models.User) []string {
	return []string{
		u.UserID,
		deref(u.Username),
		u.ProfileURL,
		optStamp(u.JoinDate),
		deref(u.Role),
		deref(u.Gender),
		deref(u.CountryOfBirth),
		deref(u.Location),
		deref(u.MBTIType),
		deref(u.EnneagramType),
		deref(u.Socionics),
		deref(u.Occupation),
		count(u.Replies),
		count(u.DiscussionsCreated),
		count(u.ReactionScore),
		count(u.Points),
		count(u.MediaCount),
		count(u.ShowcaseCount),
		stamp(u.ScrapedAt),
	}
}

func InteractionRow(i models.Interaction) []string {
	return []string{
		i.InteractionID,
		i.ReplyingPostID,
		deref(i.TargetPostID),
		i.SourceUserID,
		i.TargetUserID,
		i.ThreadID,
		string(i.Type),
		strconv.FormatFloat(i.Confidence, 'f', -1, 64),
		stamp(i.ScrapedAt),
	}
}

func mapRows[T any](recs []T, row func(T) []string) [][]string {
	out := make([][]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, row(r))
	}
	return out
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return stamp(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func count(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
