// Package forumtest serves a small XenForo-style forum over HTTP. It backs
// the crawler tests and the demo-forum command.
package forumtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Member is a forum account.
type Member struct {
	ID         int
	Name       string
	Display    string // name shown on posts when it differs from Name
	Role       string
	Joined     time.Time
	Messages   int
	Reactions  int
	Points     int
	Location   string
	Gender     string
	MBTI       string
	Occupation string

	// Sparse profiles show only the name; the tooltip still carries stats.
	Sparse bool
	// Broken members answer every profile request with a 500.
	Broken bool
}

func (m Member) slug() string {
	return fmt.Sprintf("%s.%d", strings.ToLower(m.Name), m.ID)
}

func (m Member) shown() string {
	if m.Display != "" {
		return m.Display
	}
	return m.Name
}

// Quote is a quote block inside a post. PostID 0 renders a block without a
// source link.
type Quote struct {
	PostID   int
	MemberID int
	Text     string
}

type Post struct {
	ID     int
	Author int
	Time   time.Time
	Body   string
	Quotes []Quote
	// NoTime renders the post without its timestamp.
	NoTime bool
}

type Thread struct {
	ID    int
	Slug  string
	Title string
	Posts []Post
}

func (t Thread) path() string {
	return fmt.Sprintf("/threads/%s.%d/", t.Slug, t.ID)
}

// Forum is the whole site: one node with threads, plus its members.
type Forum struct {
	Name           string
	NodeID         int
	NodeSlug       string
	Threads        []Thread
	Members        map[int]Member
	PostsPerPage   int
	ThreadsPerPage int

	mu       sync.Mutex
	hits     map[string]int
	failures map[string][]int
}

// NodePath is the forum listing path, e.g. "/forums/general.3/".
func (f *Forum) NodePath() string {
	return fmt.Sprintf("/forums/%s.%d/", f.NodeSlug, f.NodeID)
}

// Hits returns how often path was requested.
func (f *Forum) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// TotalHits counts every request served.
func (f *Forum) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		n += h
	}
	return n
}

// FailNext makes the next len(statuses) requests for path answer with the
// given statuses, in order.
func (f *Forum) FailNext(path string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = map[string][]int{}
	}
	f.failures[path] = append(f.failures[path], statuses...)
}

// Start runs the forum on an httptest server.
func (f *Forum) Start() *httptest.Server {
	return httptest.NewServer(f.Handler())
}

// Handler routes forum, thread and member URLs.
func (f *Forum) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /forums/{$}", f.serveDirectory)
	mux.HandleFunc("GET /forums/{node}/{rest...}", f.serveNode)
	mux.HandleFunc("GET /threads/{thread}/{rest...}", f.serveThread)
	mux.HandleFunc("GET /members/{member}/{rest...}", f.serveMember)
	mux.HandleFunc("GET /{$}", f.serveHome)
	return f.count(mux)
}

func (f *Forum) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		if f.hits == nil {
			f.hits = map[string]int{}
		}
		f.hits[r.URL.Path]++
		var status int
		if queue := f.failures[r.URL.Path]; len(queue) > 0 {
			status, f.failures[r.URL.Path] = queue[0], queue[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *Forum) member(id int) Member {
	if m, ok := f.Members[id]; ok {
		return m
	}
	return Member{ID: id, Name: fmt.Sprintf("guest%d", id)}
}

func (f *Forum) findThread(seg string) (Thread, bool) {
	for _, t := range f.Threads {
		if seg == fmt.Sprintf("%s.%d", t.Slug, t.ID) {
			return t, true
		}
	}
	return Thread{}, false
}

func (f *Forum) findMember(seg string) (Member, bool) {
	for _, m := range f.Members {
		if seg == m.slug() {
			return m, true
		}
	}
	return Member{}, false
}

func (f *Forum) findPost(id int) (Post, bool) {
	for _, t := range f.Threads {
		for _, p := range t.Posts {
			if p.ID == id {
				return p, true
			}
		}
	}
	return Post{}, false
}

// pageOf parses "page-N" (N >= 1) from the rest of a path; "" is page 1.
func pageOf(rest string) (int, bool) {
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return 1, true
	}
	var n int
	if _, err := fmt.Sscanf(rest, "page-%d", &n); err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func pages(total, per int) int {
	if per <= 0 || total == 0 {
		return 1
	}
	return (total + per - 1) / per
}

func window(total, per, page int) (int, int) {
	if per <= 0 {
		return 0, total
	}
	from := (page - 1) * per
	to := min(from+per, total)
	return min(from, total), to
}
