// Package extract maps parsed page fragments to candidate Thread, Post and
// User records. A required field that cannot be found fails that one record.
package extract

import (
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	trafilatura "github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/ident"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
	"forumgraph/internal/plaintext"
)

// Source is the context a fragment was found in.
type Source struct {
	ThreadURL string
	ThreadID  string
	PageURL   string
	ScrapedAt time.Time
}

// PostCandidate is an extracted post plus the profile link of its author,
// which the coordinator needs to resolve the User record.
type PostCandidate struct {
	Post       models.Post
	ProfileURL string
}

var bodyConverter = plaintext.NewConverter(plaintext.WithSkip(isQuoteBlock))

func isQuoteBlock(n *html.Node) bool {
	return n.Data == "blockquote" && plaintext.HasClass(n, "bbCodeBlock--quote")
}

// Thread builds the candidate thread for a thread URL.
func Thread(threadURL, forumURL, title string, scrapedAt time.Time) (models.Thread, error) {
	if strings.TrimSpace(threadURL) == "" {
		return models.Thread{}, crawlerr.Extraction(threadURL, "missing thread_url", nil)
	}
	id, err := ident.ThreadIDFromURL(threadURL)
	if err != nil {
		return models.Thread{}, crawlerr.Extraction(threadURL, "missing thread_id", err)
	}
	return models.Thread{
		ThreadID:  id,
		ThreadURL: threadURL,
		ForumURL:  optional(forumURL),
		Title:     optional(title),
		FirstSeen: scrapedAt,
		LastSeen:  scrapedAt,
		ScrapedAt: scrapedAt,
	}, nil
}

// Post extracts one post from its article block.
func Post(block parse.PostBlock, src Source) (PostCandidate, error) {
	s := block.Selection
	pageURL := firstNonEmpty(block.PageURL, src.PageURL)

	postID, err := postIDOf(s)
	if err != nil {
		return PostCandidate{}, crawlerr.Extraction(pageURL, "post without post_id", err)
	}

	profileURL := profileLink(s, pageURL)
	userID, err := ident.UserIDFromSlug(profileURL)
	if err != nil {
		return PostCandidate{}, crawlerr.Extraction(pageURL, "post "+postID+" without user_id", err)
	}

	ts, ok := postTime(s)
	if !ok {
		return PostCandidate{}, crawlerr.Extraction(pageURL, "post "+postID+" without timestamp", nil)
	}

	body := s.Find(parse.PostBodySelector).First()
	var text string
	var quotes []models.QuoteRef
	if body.Length() > 0 {
		text = flattenBody(body)
		quotes = Quotes(body)
	} else {
		text, ok = fallbackText(s, pageURL)
		if !ok {
			return PostCandidate{}, crawlerr.Extraction(pageURL, "post "+postID+" without text", nil)
		}
	}

	username := strings.TrimSpace(s.Find(parse.PostUsernameSelector).First().Text())
	if username == "" {
		username = strings.TrimSpace(s.AttrOr("data-author", ""))
	}
	if username == "" {
		username = ident.UsernameFromSlug(profileURL)
	}

	return PostCandidate{
		Post: models.Post{
			PostID:         postID,
			ThreadID:       src.ThreadID,
			PageURL:        pageURL,
			UserID:         userID,
			Username:       username,
			UsernameSource: models.UsernameDisplay,
			Timestamp:      ts,
			Text:           text,
			Position:       block.Index,
			Quotes:         quotes,
			FirstSeen:      src.ScrapedAt,
			ScrapedAt:      src.ScrapedAt,
		},
		ProfileURL: profileURL,
	}, nil
}

func postIDOf(s *goquery.Selection) (string, error) {
	if v, ok := s.Attr("data-content"); ok && strings.TrimSpace(v) != "" {
		return ident.PostIDFromFragment(v)
	}
	return ident.PostIDFromFragment(s.AttrOr("id", ""))
}

func profileLink(s *goquery.Selection, pageURL string) string {
	if href, ok := s.Find(parse.PostUsernameSelector).First().Find("a[href]").Attr("href"); ok && ident.IsMemberLink(href) {
		return ident.AbsoluteURL(pageURL, href)
	}
	if href, ok := s.Find(parse.PostUsernameSelector).First().Attr("href"); ok && ident.IsMemberLink(href) {
		return ident.AbsoluteURL(pageURL, href)
	}
	var found string
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if ident.IsMemberLink(href) {
			found = ident.AbsoluteURL(pageURL, href)
			return false
		}
		return true
	})
	return found
}

func postTime(s *goquery.Selection) (time.Time, bool) {
	el := s.Find(parse.PostTimeSelector).First()
	if el.Length() == 0 {
		return time.Time{}, false
	}
	if v, ok := el.Attr("datetime"); ok {
		if t, err := dateparse.ParseAny(strings.TrimSpace(v)); err == nil {
			return t.UTC(), true
		}
	}
	if v, ok := el.Attr("data-time"); ok {
		if sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), true
		}
	}
	return ParseDate(el.Text())
}

func flattenBody(body *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range body.Nodes {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(bodyConverter.Convert(n))
	}
	return sb.String()
}

// fallbackText runs the readability extractor over a post whose body wrapper
// is missing, e.g. after a theme change.
func fallbackText(s *goquery.Selection, pageURL string) (string, bool) {
	raw, err := goquery.OuterHtml(s)
	if err != nil || strings.TrimSpace(raw) == "" {
		return "", false
	}
	opts := trafilatura.Options{
		EnableFallback: true,
		Focus:          trafilatura.FavorRecall,
	}
	if u, err := neturl.Parse(pageURL); err == nil {
		opts.OriginalURL = u
	}
	res, err := trafilatura.Extract(strings.NewReader("<html><body>"+raw+"</body></html>"), opts)
	if err != nil || res == nil {
		return "", false
	}
	text := strings.TrimSpace(res.ContentText)
	return text, text != ""
}

// Quotes returns the quote blocks directly inside a post body. Quotes nested
// inside another quote belong to the quoted post and are skipped.
func Quotes(body *goquery.Selection) []models.QuoteRef {
	var refs []models.QuoteRef
	body.Find(parse.QuoteSelector).Each(func(_ int, q *goquery.Selection) {
		if q.ParentsFiltered(parse.QuoteSelector).Length() > 0 {
			return
		}
		ref := models.QuoteRef{
			Username: strings.TrimSpace(q.AttrOr("data-quote", "")),
		}
		if ref.Username == "" {
			title := strings.TrimSpace(q.Find(".bbCodeBlock-title").First().Text())
			ref.Username = strings.TrimSpace(strings.TrimSuffix(title, "said:"))
		}
		if src := q.AttrOr("data-source", ""); src != "" {
			if id, err := ident.PostIDFromFragment(src); err == nil {
				ref.PostID = id
			}
		}
		if ref.PostID == "" {
			jump := q.Find(".bbCodeBlock-sourceJump").First()
			for _, attr := range []string{"data-content-selector", "href"} {
				if v, ok := jump.Attr(attr); ok {
					if id, err := ident.PostIDFromFragment(v); err == nil {
						ref.PostID = id
						break
					}
				}
			}
		}
		if attrs := q.AttrOr("data-attributes", ""); strings.Contains(attrs, "member") {
			if id, err := ident.PostIDFromFragment(attrs); err == nil {
				ref.UserID = id
			}
		}
		if ref.Username == "" && ref.PostID == "" {
			return
		}
		refs = append(refs, ref)
	})
	return refs
}

// ParseDate reads a free-form date ("Jan 5, 2012", "2012-01-05T10:00:00-0500").
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
