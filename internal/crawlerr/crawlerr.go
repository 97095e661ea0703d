// Package crawlerr defines the error kinds raised while crawling, extracting
// and persisting forum records.
package crawlerr

import (
	"errors"
	"fmt"
)

// Kind classifies a crawl error.
type Kind string

const (
	KindUnknown           Kind = "UNKNOWN"
	KindMalformedURL      Kind = "MALFORMED_URL"
	KindMissingIdentifier Kind = "MISSING_IDENTIFIER"
	KindExtraction        Kind = "EXTRACTION_FAILURE"
	// KindAmbiguousMention never escapes the inference engine; it is logged
	// at debug level and the mention edge is dropped.
	KindAmbiguousMention Kind = "AMBIGUOUS_MENTION_TARGET"
	KindFetch            Kind = "FETCH_ERROR"
	KindPersistence      Kind = "PERSISTENCE_ERROR"
)

// Error is the concrete error carried through the crawl pipeline.
type Error struct {
	kind    Kind
	message string
	url     string
	err     error
}

func (e *Error) Error() string {
	msg := e.message
	if e.url != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.url)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

func (e *Error) Kind() Kind {
	return e.kind
}

// URL returns the source URL the error relates to, if any.
func (e *Error) URL() string {
	return e.url
}

func (e *Error) Unwrap() error {
	return e.err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func MalformedURL(url, message string) error {
	return &Error{kind: KindMalformedURL, message: message, url: url}
}

func MissingIdentifier(source, message string) error {
	return &Error{kind: KindMissingIdentifier, message: message, url: source}
}

func Extraction(url, message string, cause error) error {
	return &Error{kind: KindExtraction, message: message, url: url, err: cause}
}

func AmbiguousMention(username string) error {
	return &Error{kind: KindAmbiguousMention, message: fmt.Sprintf("mention @%s matches more than one participant", username)}
}

func Fetch(url string, cause error) error {
	return &Error{kind: KindFetch, message: "fetch failed", url: url, err: cause}
}

func Persistence(message string, cause error) error {
	return &Error{kind: KindPersistence, message: message, err: cause}
}
