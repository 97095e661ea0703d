package crawl

import (
	"errors"
	"fmt"
	"sync"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
)

// Failure is one record or page that could not be processed. It carries
// enough context to retry it later.
type Failure struct {
	URL      string        `json:"url"`
	Fragment string        `json:"fragment"`
	Kind     crawlerr.Kind `json:"kind"`
	Err      error         `json:"-"`
	Message  string        `json:"error"`
}

// Report tallies what a crawl did. It is safe for concurrent use.
type Report struct {
	mu sync.Mutex

	ThreadsInserted int
	ThreadsUpdated  int
	PostsInserted   int
	PostsUpdated    int
	UsersInserted   int
	UsersUpdated    int
	UsersSkipped    int
	Interactions    int
	Failures        []Failure
}

func (r *Report) count(entity string, res models.CommitResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := res == models.Inserted
	switch entity {
	case "thread":
		if inserted {
			r.ThreadsInserted++
		} else {
			r.ThreadsUpdated++
		}
	case "post":
		if inserted {
			r.PostsInserted++
		} else {
			r.PostsUpdated++
		}
	case "user":
		if inserted {
			r.UsersInserted++
		} else {
			r.UsersUpdated++
		}
	}
}

func (r *Report) skipUser() {
	r.mu.Lock()
	r.UsersSkipped++
	r.mu.Unlock()
}

func (r *Report) addInteractions(n int) {
	r.mu.Lock()
	r.Interactions += n
	r.mu.Unlock()
}

func (r *Report) fail(url, fragment string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{
		URL:      url,
		Fragment: fragment,
		Kind:     crawlerr.KindOf(err),
		Err:      err,
		Message:  err.Error(),
	})
}

// FailuresOf returns the failures of one kind.
func (r *Report) FailuresOf(kind crawlerr.Kind) []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Err joins the fetch and persistence failures, the ones a caller is
// expected to act on. Extraction failures are only reported.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, f := range r.Failures {
		if f.Kind == crawlerr.KindFetch || f.Kind == crawlerr.KindPersistence {
			errs = append(errs, f.Err)
		}
	}
	return errors.Join(errs...)
}

func (r *Report) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("threads +%d/~%d posts +%d/~%d users +%d/~%d (skipped %d) interactions %d failures %d",
		r.ThreadsInserted, r.ThreadsUpdated, r.PostsInserted, r.PostsUpdated,
		r.UsersInserted, r.UsersUpdated, r.UsersSkipped, r.Interactions, len(r.Failures))
}
