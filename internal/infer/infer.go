// Package infer derives directed interaction edges from the committed posts
// of one thread. Derive is a pure function of its input: the same post set
// always yields the same edges with the same ids.
package infer

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

// Confidence per signal.
const (
	QuoteByID       = 1.0
	QuoteByUsername = 0.9
	Mention         = 0.5
	ImplicitReply   = 0.2
)

// namespace seeds the UUIDv5 interaction ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("forumgraph/interaction"))

var mentionRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_.@])@([\p{L}\p{N}_][\p{L}\p{N}_.\-]*)`)

type Options struct {
	// ImplicitReply turns on the adjacency heuristic.
	ImplicitReply bool
	// Now stamps scraped_at on every edge. Zero means time.Now.
	Now    time.Time
	Logger *slog.Logger
}

// InteractionID is the stable id of the edge from replyingPostID to target
// (a post id, or a user id when no post is known) of the given type.
func InteractionID(replyingPostID, target string, typ models.InteractionType) string {
	return uuid.NewSHA1(namespace, []byte(replyingPostID+"|"+target+"|"+string(typ))).String()
}

// Derive returns the interaction set for one thread's posts.
func Derive(posts []models.Post, opts Options) []models.Interaction {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ordered := slices.Clone(posts)
	slices.SortStableFunc(ordered, comparePosts)

	d := deriver{
		byID:     make(map[string]models.Post, len(ordered)),
		byName:   map[string][]string{},
		previous: map[string]models.Post{},
		now:      now,
		log:      log,
	}
	for _, p := range ordered {
		d.byID[p.PostID] = p
		d.addAuthor(p.Username, p.UserID)
	}
	for _, p := range byPage(ordered) {
		d.previous[p.cur.PostID] = p.prev
	}

	var out []models.Interaction
	seen := map[string]bool{}
	for _, p := range ordered {
		edges := d.quotes(p)
		edges = append(edges, d.mentions(p, edges)...)
		// a post that quotes or @names anyone, resolved or not, is no adjacency reply
		if opts.ImplicitReply && len(p.Quotes) == 0 && len(MentionTokens(p.Text)) == 0 {
			edges = d.implicit(p)
		}
		for _, e := range edges {
			if seen[e.InteractionID] {
				continue
			}
			seen[e.InteractionID] = true
			out = append(out, e)
		}
	}
	return out
}

type deriver struct {
	byID     map[string]models.Post
	byName   map[string][]string
	previous map[string]models.Post
	now      time.Time
	log      *slog.Logger
}

func (d *deriver) addAuthor(username, userID string) {
	key := nameKey(username)
	if key == "" || slices.Contains(d.byName[key], userID) {
		return
	}
	d.byName[key] = append(d.byName[key], userID)
}

func (d *deriver) edge(p models.Post, targetPost *string, targetUser string, typ models.InteractionType, conf float64) models.Interaction {
	target := targetUser
	if targetPost != nil {
		target = *targetPost
	}
	return models.Interaction{
		InteractionID:  InteractionID(p.PostID, target, typ),
		ReplyingPostID: p.PostID,
		TargetPostID:   targetPost,
		SourceUserID:   p.UserID,
		TargetUserID:   targetUser,
		ThreadID:       p.ThreadID,
		Type:           typ,
		Confidence:     conf,
		ScrapedAt:      d.now,
	}
}

// quotes resolves each quote block: by post id when the quoted post is in
// the thread, otherwise by the quoted author's name or member id.
func (d *deriver) quotes(p models.Post) []models.Interaction {
	var out []models.Interaction
	for _, q := range p.Quotes {
		if q.PostID != "" {
			if target, ok := d.byID[q.PostID]; ok && target.PostID != p.PostID {
				id := target.PostID
				out = append(out, d.edge(p, &id, target.UserID, models.InteractionQuote, QuoteByID))
				continue
			}
		}
		if userID, ok := d.resolveName(q.Username); ok {
			out = append(out, d.edge(p, nil, userID, models.InteractionQuote, QuoteByUsername))
			continue
		}
		if q.UserID != "" && d.isParticipant(q.UserID) {
			out = append(out, d.edge(p, nil, q.UserID, models.InteractionQuote, QuoteByUsername))
		}
	}
	return out
}

// mentions scans the text for @name tokens. Names that are ambiguous or
// belong to nobody in the thread are dropped, as are self-mentions and
// users the post already quotes.
func (d *deriver) mentions(p models.Post, quoted []models.Interaction) []models.Interaction {
	skip := map[string]bool{p.UserID: true}
	for _, e := range quoted {
		skip[e.TargetUserID] = true
	}

	var out []models.Interaction
	for _, name := range MentionTokens(p.Text) {
		ids := d.byName[nameKey(name)]
		switch {
		case len(ids) == 0:
			continue
		case len(ids) > 1:
			d.log.Debug("mention suppressed", "post_id", p.PostID, "error", crawlerr.AmbiguousMention(name))
			continue
		}
		if skip[ids[0]] {
			continue
		}
		skip[ids[0]] = true
		out = append(out, d.edge(p, nil, ids[0], models.InteractionMention, Mention))
	}
	return out
}

func (d *deriver) implicit(p models.Post) []models.Interaction {
	prev, ok := d.previous[p.PostID]
	if !ok || prev.UserID == p.UserID {
		return nil
	}
	id := prev.PostID
	return []models.Interaction{d.edge(p, &id, prev.UserID, models.InteractionImplicitReply, ImplicitReply)}
}

func (d *deriver) resolveName(username string) (string, bool) {
	ids := d.byName[nameKey(username)]
	if len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

func (d *deriver) isParticipant(userID string) bool {
	for _, ids := range d.byName {
		if slices.Contains(ids, userID) {
			return true
		}
	}
	return false
}

// MentionTokens returns the distinct @names in text, in order of appearance.
func MentionTokens(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(m[1], ".-")
		key := nameKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type adjacent struct {
	cur, prev models.Post
}

// byPage pairs every post with the one right before it on the same page.
func byPage(posts []models.Post) []adjacent {
	pages := map[string][]models.Post{}
	var order []string
	for _, p := range posts {
		if _, ok := pages[p.PageURL]; !ok {
			order = append(order, p.PageURL)
		}
		pages[p.PageURL] = append(pages[p.PageURL], p)
	}
	var out []adjacent
	for _, url := range order {
		page := pages[url]
		slices.SortStableFunc(page, func(a, b models.Post) int { return cmp.Compare(a.Position, b.Position) })
		for i := 1; i < len(page); i++ {
			out = append(out, adjacent{cur: page[i], prev: page[i-1]})
		}
	}
	return out
}

func comparePosts(a, b models.Post) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	if c := cmp.Compare(numeric(a.PostID), numeric(b.PostID)); c != 0 {
		return c
	}
	return cmp.Compare(a.PostID, b.PostID)
}

func numeric(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return -1
	}
	return n
}
