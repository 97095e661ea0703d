// Package ident derives stable thread, post and user keys from URLs and
// markup attributes. Every function is pure.
package ident

import (
	neturl "net/url"
	"regexp"
	"strings"

	"forumgraph/internal/crawlerr"
)

var (
	trailingDigitsRe = regexp.MustCompile(`(\d+)$`)
	slugIDRe         = regexp.MustCompile(`\.(\d+)/?$`)
	pathIDRe         = regexp.MustCompile(`/(\d+)/?$`)
)

// ThreadIDFromURL returns the canonical id of the thread at url: the numeric
// suffix of its /threads/ segment ("some-title.123" -> "123"), or the whole
// segment when it carries no number. Page suffixes and fragments are ignored
// so every page of a thread maps to the same id.
func ThreadIDFromURL(url string) (string, error) {
	raw := strings.TrimSpace(url)
	if raw == "" {
		return "", crawlerr.MalformedURL(url, "empty thread url")
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return "", crawlerr.MalformedURL(url, "unparseable thread url")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "threads" || i+1 >= len(segments) {
			continue
		}
		slug := segments[i+1]
		if slug == "" {
			break
		}
		if m := slugIDRe.FindStringSubmatch(slug); m != nil {
			return m[1], nil
		}
		return slug, nil
	}
	return "", crawlerr.MalformedURL(url, "no thread segment in path")
}

// ThreadBaseURL strips page suffixes, queries and anchors from a thread URL
// so links from feeds and listings compare equal:
// ".../threads/some-title.123/page-4#post-9" -> ".../threads/some-title.123/".
func ThreadBaseURL(url string) (string, error) {
	u, err := neturl.Parse(strings.TrimSpace(url))
	if err != nil || u.Path == "" {
		return "", crawlerr.MalformedURL(url, "unparseable thread url")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "threads" && i+1 < len(segments) && segments[i+1] != "" {
			u.Path = "/" + strings.Join(segments[:i+2], "/") + "/"
			u.RawQuery = ""
			u.Fragment = ""
			return u.String(), nil
		}
	}
	return "", crawlerr.MalformedURL(url, "no thread segment in path")
}

// PostIDFromFragment extracts the trailing number from a content anchor such
// as "post-123", "js-post-123", "#post-123" or "post: 123".
func PostIDFromFragment(fragment string) (string, error) {
	s := strings.TrimSpace(fragment)
	m := trailingDigitsRe.FindStringSubmatch(s)
	if m == nil {
		return "", crawlerr.MissingIdentifier(fragment, "no numeric post id")
	}
	return m[1], nil
}

// UserIDFromSlug extracts the numeric member id from a profile URL or bare
// slug: "/members/some-user.123/" -> "123".
func UserIDFromSlug(profileURLOrSlug string) (string, error) {
	s := strings.TrimSpace(profileURLOrSlug)
	if s == "" {
		return "", crawlerr.MissingIdentifier(profileURLOrSlug, "empty profile slug")
	}
	path := s
	if u, err := neturl.Parse(s); err == nil && u.Path != "" {
		path = u.Path
	}
	if m := slugIDRe.FindStringSubmatch(path); m != nil {
		return m[1], nil
	}
	if m := pathIDRe.FindStringSubmatch(path); m != nil {
		return m[1], nil
	}
	if isDigits(path) {
		return path, nil
	}
	return "", crawlerr.MissingIdentifier(profileURLOrSlug, "profile slug has no numeric id")
}

// UsernameFromSlug guesses a username from a profile URL when no page gave
// us one: "/members/some-user.123/" -> "some-user".
func UsernameFromSlug(profileURL string) string {
	path := profileURL
	if u, err := neturl.Parse(profileURL); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	last := path[strings.LastIndex(path, "/")+1:]
	if i := strings.Index(last, "."); i >= 0 {
		return last[:i]
	}
	return last
}

// AbsoluteURL resolves href against base. Absolute hrefs are returned as-is.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := neturl.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := neturl.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// ProfileSubpage returns the URL of a profile tab, e.g. "about" or "tooltip".
func ProfileSubpage(profileURL, tab string) string {
	u, err := neturl.Parse(profileURL)
	if err != nil {
		return strings.TrimRight(profileURL, "/") + "/" + tab
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + tab
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// IsMemberLink reports whether href points at a member profile.
func IsMemberLink(href string) bool {
	return strings.Contains(href, "/members/")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
