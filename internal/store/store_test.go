package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/models"
)

var (
	t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "forumgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sameTime(t *testing.T, want, got time.Time, msg string) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "%s: want %s, got %s", msg, want, got)
}

func str(s string) *string { return &s }
func num(n int64) *int64   { return &n }

func seedThread(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.UpsertThread(t.Context(), models.Thread{
		ThreadID:  "42",
		ThreadURL: "https://forum.test/threads/hello.42/",
		ScrapedAt: t0,
	})
	require.NoError(t, err)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forumgraph.db")
	s, err := Open(path)
	require.NoError(t, err)
	seedThread(t, s)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ids, err := s.ThreadIDs(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)
}

func TestUpsertThreadIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	th := models.Thread{
		ThreadID:  "42",
		ThreadURL: "https://forum.test/threads/hello.42/",
		ForumURL:  str("https://forum.test/forums/general.3/"),
		Title:     str("Hello"),
		ScrapedAt: t0,
	}

	res, err := s.UpsertThread(ctx, th)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, res)

	got, err := s.GetThread(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, got)
	sameTime(t, t0, got.FirstSeen, "first_seen")
	sameTime(t, t0, got.LastSeen, "last_seen")
	sameTime(t, t0, got.ScrapedAt, "scraped_at")

	th.ScrapedAt = t1
	th.Title = nil
	res, err = s.UpsertThread(ctx, th)
	require.NoError(t, err)
	assert.Equal(t, models.Updated, res)

	got, err = s.GetThread(ctx, "42")
	require.NoError(t, err)
	sameTime(t, t0, got.FirstSeen, "first_seen stays")
	sameTime(t, t1, got.LastSeen, "last_seen refreshed")
	sameTime(t, t1, got.ScrapedAt, "scraped_at refreshed")
	require.NotNil(t, got.Title)
	assert.Equal(t, "Hello", *got.Title, "a missing title does not erase the stored one")
	require.NotNil(t, got.ForumURL)
}

func TestUpsertThreadUsesClockWhenUnstamped(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "forumgraph.db"), WithClock(func() time.Time { return t1 }))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.UpsertThread(t.Context(), models.Thread{ThreadID: "7", ThreadURL: "https://forum.test/threads/x.7/"})
	require.NoError(t, err)
	got, err := s.GetThread(t.Context(), "7")
	require.NoError(t, err)
	sameTime(t, t1, got.FirstSeen, "first_seen")
}

func TestGetThreadUnknown(t *testing.T) {
	s := openStore(t)
	got, err := s.GetThread(t.Context(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertPostKeepsImmutableFields(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	seedThread(t, s)

	p := models.Post{
		PostID:    "100",
		ThreadID:  "42",
		PageURL:   "https://forum.test/threads/hello.42/",
		UserID:    "5",
		Username:  "Alice",
		Timestamp: t0.Add(-time.Hour),
		Text:      "original text",
		Quotes:    []models.QuoteRef{{Username: "bob", PostID: "99", UserID: "6"}},
		ScrapedAt: t0,
	}
	res, err := s.UpsertPost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, res)

	again := p
	again.Text = "edited text"
	again.Timestamp = t1
	again.Quotes = nil
	again.ScrapedAt = t1
	res, err = s.UpsertPost(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, models.Updated, res)

	got, err := s.GetPost(ctx, "100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "original text", got.Text)
	sameTime(t, t0.Add(-time.Hour), got.Timestamp, "timestamp")
	sameTime(t, t0, got.FirstSeen, "first_seen")
	sameTime(t, t1, got.ScrapedAt, "scraped_at")
	assert.Equal(t, []models.QuoteRef{{Username: "bob", PostID: "99", UserID: "6"}}, got.Quotes)
}

func TestUsernamePrecedence(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	seedThread(t, s)

	p := models.Post{
		PostID: "100", ThreadID: "42", PageURL: "u", UserID: "5",
		Username: "alice_display", UsernameSource: models.UsernameDisplay,
		Timestamp: t0, Text: "hi", ScrapedAt: t0,
	}
	_, err := s.UpsertPost(ctx, p)
	require.NoError(t, err)

	p.Username, p.UsernameSource = "Alice", models.UsernameCanonical
	_, err = s.UpsertPost(ctx, p)
	require.NoError(t, err)

	got, err := s.GetPost(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)
	assert.Equal(t, models.UsernameCanonical, got.UsernameSource)

	p.Username, p.UsernameSource = "alice_display", models.UsernameDisplay
	_, err = s.UpsertPost(ctx, p)
	require.NoError(t, err)

	got, err = s.GetPost(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username, "display name never replaces a canonical one")
}

func TestUpgradeUsernames(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	seedThread(t, s)

	for _, id := range []string{"1", "2"} {
		_, err := s.UpsertPost(ctx, models.Post{
			PostID: id, ThreadID: "42", PageURL: "u", UserID: "5",
			Username: "ali", Timestamp: t0, Text: "x", ScrapedAt: t0,
		})
		require.NoError(t, err)
	}
	n, err := s.UpgradeUsernames(ctx, "5", "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpgradeUsernames(ctx, "5", "Alice")
	require.NoError(t, err)
	assert.Zero(t, n)

	posts, err := s.ThreadPosts(ctx, "42")
	require.NoError(t, err)
	for _, p := range posts {
		assert.Equal(t, "Alice", p.Username)
	}
}

func TestUpsertPostRequiresThread(t *testing.T) {
	s := openStore(t)
	_, err := s.UpsertPost(t.Context(), models.Post{
		PostID: "1", ThreadID: "missing", PageURL: "u", UserID: "5",
		Username: "a", Timestamp: t0, Text: "x",
	})
	assert.Error(t, err)
}

func TestUpsertUserOverwritesSnapshot(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()

	joined := time.Date(2012, 1, 5, 0, 0, 0, 0, time.UTC)
	first := models.User{
		UserID:         "5",
		ProfileURL:     "https://forum.test/members/alice.5/",
		Username:       str("Alice"),
		UsernameSource: models.UsernameCanonical,
		Role:           str("Member"),
		Location:       str("Paris"),
		Occupation:     str("dev"),
		JoinDate:       &joined,
		Replies:        num(120),
		ScrapedAt:      t0,
	}
	res, err := s.UpsertUser(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, res)

	later := models.User{
		UserID:         "5",
		ProfileURL:     "https://forum.test/members/alice.5/",
		Username:       str("Alice"),
		UsernameSource: models.UsernameCanonical,
		Role:           str("Veteran"),
		JoinDate:       &joined,
		MBTIType:       str("INTP"),
		Replies:        num(121),
		ScrapedAt:      t1,
	}
	res, err = s.UpsertUser(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, models.Updated, res)

	got, err := s.GetUser(ctx, "5")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", *got.Username)
	assert.Equal(t, models.UsernameCanonical, got.UsernameSource)
	assert.Equal(t, "Veteran", *got.Role)
	assert.Equal(t, "INTP", *got.MBTIType)
	assert.Equal(t, int64(121), *got.Replies)
	assert.Nil(t, got.Location, "a cleared field is cleared in the store")
	assert.Nil(t, got.Occupation)
	require.NotNil(t, got.JoinDate)
	sameTime(t, joined, *got.JoinDate, "join_date")
	sameTime(t, t0, got.FirstSeen, "first_seen")
	sameTime(t, t1, got.ScrapedAt, "scraped_at")

	at, ok, err := s.UserScrapedAt(ctx, "5")
	require.NoError(t, err)
	assert.True(t, ok)
	sameTime(t, t1, at, "scraped_at lookup")

	_, ok, err = s.UserScrapedAt(ctx, "404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertUserDefaultsToDisplayName(t *testing.T) {
	s := openStore(t)
	_, err := s.UpsertUser(t.Context(), models.User{UserID: "7", ProfileURL: "p", Username: str("bob"), ScrapedAt: t0})
	require.NoError(t, err)
	got, err := s.GetUser(t.Context(), "7")
	require.NoError(t, err)
	assert.Equal(t, models.UsernameDisplay, got.UsernameSource)
}

func TestReplaceInteractions(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	seedThread(t, s)

	target := "99"
	first := []models.Interaction{
		{InteractionID: "a", ReplyingPostID: "100", TargetPostID: &target, SourceUserID: "5", TargetUserID: "6",
			Type: models.InteractionQuote, Confidence: 1, ScrapedAt: t0},
		{InteractionID: "b", ReplyingPostID: "101", SourceUserID: "6", TargetUserID: "5",
			Type: models.InteractionMention, Confidence: 0.5, ScrapedAt: t0},
	}
	require.NoError(t, s.ReplaceInteractions(ctx, "42", first))

	got, err := s.ThreadInteractions(ctx, "42")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "42", got[0].ThreadID)
	require.NotNil(t, got[0].TargetPostID)
	assert.Equal(t, "99", *got[0].TargetPostID)
	assert.Nil(t, got[1].TargetPostID)

	require.NoError(t, s.ReplaceInteractions(ctx, "42", first[1:]))
	got, err = s.ThreadInteractions(ctx, "42")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].InteractionID)

	mine, err := s.UserInteractions(ctx, "5")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSummaryAndRecentThreads(t *testing.T) {
	s := openStore(t)
	ctx := t.Context()
	seedThread(t, s)
	_, err := s.UpsertPost(ctx, models.Post{
		PostID: "1", ThreadID: "42", PageURL: "u", UserID: "5",
		Username: "a", Timestamp: t0, Text: "x", ScrapedAt: t0,
	})
	require.NoError(t, err)
	_, err = s.UpsertUser(ctx, models.User{UserID: "5", ProfileURL: "p", ScrapedAt: t0})
	require.NoError(t, err)

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Threads)
	assert.Equal(t, 1, sum.Posts)
	assert.Equal(t, 1, sum.Users)
	assert.Equal(t, 0, sum.Interactions)
	require.NotNil(t, sum.LastScrape)

	recent, err := s.RecentThreads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "42", recent[0].ThreadID)
	assert.Equal(t, 1, recent[0].Posts)
	assert.Equal(t, 1, recent[0].Participants)

	found, err := s.SearchPosts(ctx, "X", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
