// Package parse turns a fetched forum page into navigable fragments: thread
// cards, post blocks and member profile fragments. It knows the XenForo
// selector scheme and nothing about the records built from it.
package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"forumgraph/internal/ident"
	"forumgraph/internal/models"
)

// Selectors for the XenForo markup the crawler understands.
const (
	ThreadCardSelector  = "div.structItem--thread"
	ThreadLinkSelector  = ".structItem-title a[href*='/threads/']"
	NextPageSelector    = "a[rel='next'], a.pageNav-jump--next"
	ThreadTitleSelector = "h1.p-title-value"

	PostSelector         = "article.js-post, article.message--post"
	PostUsernameSelector = ".MessageCard__user-info__name, .message-name .username, .message-userDetails .username"
	PostTimeSelector     = "time[datetime], time[data-time]"
	PostBodySelector     = ".message-body .bbWrapper, .message-content .bbWrapper"
	QuoteSelector        = "blockquote.bbCodeBlock--quote"

	TooltipSelector       = ".memberTooltip"
	AboutRowSelector      = ".flex-row"
	ProfileHeaderSelector = ".memberHeader, .memberHeader-content"

	ForumNodeSelector = "div.node-main"
	ForumLinkSelector = "h3.node-title a"
)

// FragmentKind tags which member page a user fragment was cut from.
type FragmentKind int

const (
	Tooltip FragmentKind = iota + 1
	AboutTab
	ProfilePage
)

func (k FragmentKind) String() string {
	switch k {
	case Tooltip:
		return "tooltip"
	case AboutTab:
		return "about"
	case ProfilePage:
		return "profile"
	default:
		return "unknown"
	}
}

// Document is a parsed page plus the URL it was fetched from.
type Document struct {
	doc *goquery.Document
	url string
}

// PostBlock is one post article together with its position on the page.
type PostBlock struct {
	Selection *goquery.Selection
	Index     int
	PageURL   string
}

// UserFragment is the part of a member page the extractor reads for one kind.
type UserFragment struct {
	Kind      FragmentKind
	Selection *goquery.Selection
	SourceURL string
}

// Parse builds a Document from a raw page body.
func Parse(body []byte, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, url: pageURL}, nil
}

func (d *Document) URL() string {
	return d.url
}

// Title returns the page heading, usually the thread title.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find(ThreadTitleSelector).First().Text())
}

// ThreadLinks returns absolute thread URLs from a forum listing page, in
// page order and without duplicates.
func (d *Document) ThreadLinks() []string {
	seen := map[string]bool{}
	var links []string
	d.doc.Find(ThreadCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(ThreadLinkSelector).Last().Attr("href")
		if !ok {
			return
		}
		u := ident.AbsoluteURL(d.url, href)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		links = append(links, u)
	})
	return links
}

// NextPage returns the absolute URL of the next page, or "" on the last page.
func (d *Document) NextPage() string {
	href, ok := d.doc.Find(NextPageSelector).First().Attr("href")
	if !ok {
		return ""
	}
	return ident.AbsoluteURL(d.url, href)
}

// PostBlocks returns every post article on a thread page.
func (d *Document) PostBlocks() []PostBlock {
	var blocks []PostBlock
	d.doc.Find(PostSelector).Each(func(i int, s *goquery.Selection) {
		blocks = append(blocks, PostBlock{Selection: s, Index: i, PageURL: d.url})
	})
	return blocks
}

// UserFragment cuts the fragment of the given kind out of a member page. The
// boolean is false when the page has no such fragment.
func (d *Document) UserFragment(kind FragmentKind) (UserFragment, bool) {
	var sel *goquery.Selection
	switch kind {
	case Tooltip:
		sel = d.doc.Find(TooltipSelector).First()
	case AboutTab:
		sel = d.doc.Selection
		if d.doc.Find(AboutRowSelector).Length() == 0 && d.doc.Find(ProfileHeaderSelector).Length() == 0 {
			return UserFragment{}, false
		}
	case ProfilePage:
		sel = d.doc.Selection
		if d.doc.Find(ProfileHeaderSelector).Length() == 0 && d.doc.Find("dl.pairs").Length() == 0 {
			return UserFragment{}, false
		}
	default:
		return UserFragment{}, false
	}
	if sel == nil || sel.Length() == 0 {
		return UserFragment{}, false
	}
	return UserFragment{Kind: kind, Selection: sel, SourceURL: d.url}, true
}

// Forums lists the sub-forums on a forum directory page.
func (d *Document) Forums() []models.Forum {
	var forums []models.Forum
	d.doc.Find(ForumNodeSelector).Each(func(_ int, node *goquery.Selection) {
		link := node.Find(ForumLinkSelector).First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		forums = append(forums, models.Forum{
			Name: strings.TrimSpace(link.Text()),
			URL:  ident.AbsoluteURL(d.url, href),
		})
	})
	return forums
}
