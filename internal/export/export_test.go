package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

type memSource struct {
	threads      []models.Thread
	posts        []models.Post
	users        []models.User
	interactions []models.Interaction
}

func (m memSource) AllThreads(context.Context) ([]models.Thread, error) { return m.threads, nil }
func (m memSource) AllPosts(context.Context) ([]models.Post, error)     { return m.posts, nil }
func (m memSource) AllUsers(context.Context) ([]models.User, error)     { return m.users, nil }
func (m memSource) AllInteractions(context.Context) ([]models.Interaction, error) {
	return m.interactions, nil
}

func str(s string) *string { return &s }
func num(n int64) *int64   { return &n }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func sample() memSource {
	return memSource{
		threads: []models.Thread{{
			ThreadID:  "10",
			ThreadURL: "https://forum.test/threads/coffee.10/",
			Title:     str("Coffee"),
			FirstSeen: t0,
			LastSeen:  t0,
			ScrapedAt: t0,
		}},
		posts: []models.Post{{
			PostID:    "101",
			ThreadID:  "10",
			PageURL:   "https://forum.test/threads/coffee.10/",
			UserID:    "1",
			Username:  "alice",
			Timestamp: t0,
			Text:      "first line\nsecond, with comma",
			ScrapedAt: t0,
		}},
		users: []models.User{{
			UserID:     "1",
			Username:   str("alice"),
			ProfileURL: "https://forum.test/members/alice.1/",
			Location:   str("Lisbon"),
			Replies:    num(1234),
			ScrapedAt:  t0,
		}},
		interactions: []models.Interaction{{
			InteractionID:  "abc",
			ReplyingPostID: "102",
			SourceUserID:   "2",
			TargetUserID:   "1",
			ThreadID:       "10",
			Type:           models.InteractionMention,
			Confidence:     0.5,
			ScrapedAt:      t0,
		}},
	}
}

func TestWriteTables(t *testing.T) {
	dir := t.TempDir()
	counts, err := WriteTables(t.Context(), sample(), dir)
	require.NoError(t, err)
	assert.Equal(t, Counts{"threads": 1, "posts": 1, "users": 1, "interactions": 1}, counts)

	threads := readCSV(t, filepath.Join(dir, "threads.csv"))
	assert.Equal(t, ThreadColumns, threads[0])
	assert.Equal(t, []string{
		"10", "https://forum.test/threads/coffee.10/", "", "Coffee",
		"2024-05-01T15:00:00Z", "2024-05-01T15:00:00Z", "2024-05-01T15:00:00Z",
	}, threads[1])

	posts := readCSV(t, filepath.Join(dir, "posts.csv"))
	assert.Equal(t, PostColumns, posts[0])
	assert.Equal(t, "https://forum.test/threads/coffee.10/", posts[1][1])
	assert.Equal(t, "first line\nsecond, with comma", posts[1][7])

	users := readCSV(t, filepath.Join(dir, "users.csv"))
	require.Len(t, users, 2)
	row := map[string]string{}
	for i, c := range users[0] {
		row[c] = users[1][i]
	}
	assert.Equal(t, "alice", row["username"])
	assert.Equal(t, "1234", row["replies"])
	assert.Equal(t, "", row["join_date"])
	assert.Equal(t, "", row["gender"])
	assert.Equal(t, "", row["points"])

	interactions := readCSV(t, filepath.Join(dir, "interactions.csv"))
	assert.Equal(t, []string{"abc", "102", "", "2", "1", "10", "mention", "0.5", "2024-05-01T15:00:00Z"}, interactions[1])
}

func TestWriteTablesUpsertsByKey(t *testing.T) {
	dir := t.TempDir()
	src := sample()
	_, err := WriteTables(t.Context(), src, dir)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	src.threads[0].LastSeen = later
	src.threads[0].ScrapedAt = later
	src.threads = append(src.threads, models.Thread{ThreadID: "11", ThreadURL: "https://forum.test/threads/intro.11/", ScrapedAt: later})
	src.users = nil

	counts, err := WriteTables(t.Context(), src, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["threads"])
	assert.Equal(t, 1, counts["users"], "rows missing from the store are kept")

	threads := readCSV(t, filepath.Join(dir, "threads.csv"))
	require.Len(t, threads, 3)
	assert.Equal(t, "10", threads[1][0])
	assert.Equal(t, "2024-05-01T15:00:00Z", threads[1][4], "first_seen")
	assert.Equal(t, "2024-05-01T16:00:00Z", threads[1][5], "last_seen")
	assert.Equal(t, "11", threads[2][0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files left behind")
}

func TestWriteTablesReplacesInteractionsOfDerivedThreads(t *testing.T) {
	dir := t.TempDir()
	src := sample()
	src.interactions = append(src.interactions, models.Interaction{
		InteractionID: "old", ReplyingPostID: "900", SourceUserID: "3", TargetUserID: "1",
		ThreadID: "77", Type: models.InteractionQuote, Confidence: 1, ScrapedAt: t0,
	})
	_, err := WriteTables(t.Context(), src, dir)
	require.NoError(t, err)

	// thread 10 was re-derived and lost its mention; thread 77 is no longer in the store
	src.interactions = nil
	counts, err := WriteTables(t.Context(), src, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["interactions"])

	rows := readCSV(t, filepath.Join(dir, "interactions.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "old", rows[1][0])

	src.interactions = []models.Interaction{{
		InteractionID: "new", ReplyingPostID: "102", SourceUserID: "2", TargetUserID: "1",
		ThreadID: "10", Type: models.InteractionQuote, Confidence: 0.9, ScrapedAt: t0,
	}}
	_, err = WriteTables(t.Context(), src, dir)
	require.NoError(t, err)
	rows = readCSV(t, filepath.Join(dir, "interactions.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "old", rows[1][0])
	assert.Equal(t, "new", rows[2][0])
}

func TestTable(t *testing.T) {
	_, err := NewTable("x", []string{"a", "b"}, "c")
	require.Error(t, err)

	tbl, err := NewTable("x", []string{"a", "b"}, "b")
	require.NoError(t, err)

	added, err := tbl.Upsert([]string{"1", "k"})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = tbl.Upsert([]string{"2", "k"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, [][]string{{"2", "k"}}, tbl.Rows())

	_, err = tbl.Upsert([]string{"5", "m"})
	require.NoError(t, err)
	n, err := tbl.DeleteWhere("a", func(v string) bool { return v == "2" })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][]string{{"5", "m"}}, tbl.Rows())
	added, err = tbl.Upsert([]string{"6", "m"})
	require.NoError(t, err)
	assert.False(t, added, "index follows the remaining rows")
	_, err = tbl.DeleteWhere("z", func(string) bool { return true })
	assert.Error(t, err)

	_, err = tbl.Upsert([]string{"only"})
	assert.Error(t, err)
	_, err = tbl.Upsert([]string{"3", ""})
	assert.Error(t, err)
}

func TestLoadRejectsForeignHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forums.csv"), []byte("name,href\nA,/a\n"), 0o644))

	_, err := WriteForums([]models.Forum{{Name: "General", URL: "https://forum.test/forums/general.3/"}}, dir)
	require.Error(t, err)
	assert.True(t, crawlerr.Is(err, crawlerr.KindPersistence))
}

func TestWriteForums(t *testing.T) {
	dir := t.TempDir()
	forums := []models.Forum{
		{Name: "General", URL: "https://forum.test/forums/general.3/"},
		{Name: "Archive", URL: "https://forum.test/forums/archive.4/"},
	}
	n, err := WriteForums(forums, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = WriteForums(forums[:1], dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := readCSV(t, filepath.Join(dir, "forums.csv"))
	assert.Equal(t, [][]string{
		ForumColumns,
		{"General", "https://forum.test/forums/general.3/"},
		{"Archive", "https://forum.test/forums/archive.4/"},
	}, rows)
}
