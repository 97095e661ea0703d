package forumtest

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

func writeHTML(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>%s</title></head>
<body>
<div class="p-body">%s</div>
</body></html>`, html.EscapeString(title), body)
}

func (f *Forum) serveHome(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, f.Name, fmt.Sprintf(`<h1 class="p-title-value">%s</h1>
<p>Forum listing at <a href="%s">%s</a>, directory at <a href="/forums/">/forums/</a>.</p>`,
		html.EscapeString(f.Name), f.NodePath(), f.NodePath()))
}

func (f *Forum) serveDirectory(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, "Forums", fmt.Sprintf(`<div class="block-body">
<div class="node node--forum"><div class="node-body"><div class="node-main">
  <h3 class="node-title"><a href="%s">%s</a></h3>
</div></div></div>
<div class="node node--link"><div class="node-body"><div class="node-main">
  <h3 class="node-title"><a href="/forums/archive.9/">Archive</a></h3>
</div></div></div>
</div>`, f.NodePath(), html.EscapeString(f.Name)))
}

func (f *Forum) serveNode(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("node") != fmt.Sprintf("%s.%d", f.NodeSlug, f.NodeID) {
		http.NotFound(w, r)
		return
	}
	rest := r.PathValue("rest")
	if rest == "index.rss" {
		f.serveFeed(w, r)
		return
	}
	page, ok := pageOf(rest)
	last := pages(len(f.Threads), f.ThreadsPerPage)
	if !ok || page > last {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<h1 class="p-title-value">%s</h1><div class="structItemContainer">`, html.EscapeString(f.Name))
	from, to := window(len(f.Threads), f.ThreadsPerPage, page)
	for _, t := range f.Threads[from:to] {
		starter := f.member(t.Posts[0].Author)
		fmt.Fprintf(&b, `
<div class="structItem structItem--thread js-threadListItem-%d">
  <div class="structItem-cell structItem-cell--main">
    <div class="structItem-title"><a href="%s" data-tp-primary="on">%s</a></div>
    <div class="structItem-minor"><a href="/members/%s/" class="username">%s</a></div>
  </div>
</div>`, t.ID, t.path(), html.EscapeString(t.Title), starter.slug(), html.EscapeString(starter.shown()))
	}
	b.WriteString(`</div>`)
	b.WriteString(pageNav(f.NodePath(), page, last))
	writeHTML(w, f.Name, b.String())
}

func (f *Forum) serveFeed(w http.ResponseWriter, r *http.Request) {
	base := "http://" + r.Host
	var items strings.Builder
	for _, t := range f.Threads {
		first := t.Posts[0]
		fmt.Fprintf(&items, `
    <item>
      <title>%s</title>
      <link>%s%sunread</link>
      <guid isPermaLink="false">%d</guid>
      <pubDate>%s</pubDate>
    </item>`, html.EscapeString(t.Title), base, t.path(), t.ID, first.Time.UTC().Format(time.RFC1123Z))
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
  <channel>
    <title>%s</title>
    <link>%s%s</link>
    <description>Latest threads</description>%s
  </channel>
</rss>`, html.EscapeString(f.Name), base, f.NodePath(), items.String())
}

func (f *Forum) serveThread(w http.ResponseWriter, r *http.Request) {
	t, ok := f.findThread(r.PathValue("thread"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	rest := strings.Trim(r.PathValue("rest"), "/")
	if rest == "unread" {
		http.Redirect(w, r, t.path(), http.StatusFound)
		return
	}
	page, ok := pageOf(rest)
	last := pages(len(t.Posts), f.PostsPerPage)
	if !ok || page > last {
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<div class="p-title"><h1 class="p-title-value">%s</h1></div>
<div class="block-body js-replyNewMessageContainer">`, html.EscapeString(t.Title))
	from, to := window(len(t.Posts), f.PostsPerPage, page)
	for _, p := range t.Posts[from:to] {
		b.WriteString(f.renderPost(p))
	}
	b.WriteString(`</div>`)
	b.WriteString(pageNav(t.path(), page, last))
	writeHTML(w, t.Title, b.String())
}

func (f *Forum) renderPost(p Post) string {
	author := f.member(p.Author)
	var body strings.Builder
	for _, q := range p.Quotes {
		body.WriteString(f.renderQuote(q))
	}
	for i, para := range strings.Split(p.Body, "\n") {
		if i > 0 {
			body.WriteString("<br>\n")
		}
		body.WriteString(html.EscapeString(para))
	}

	timeHTML := ""
	if !p.NoTime {
		timeHTML = fmt.Sprintf(`<time class="u-dt" datetime="%s" data-time="%d">%s</time>`,
			p.Time.UTC().Format("2006-01-02T15:04:05-0700"), p.Time.Unix(), p.Time.UTC().Format("Jan 2, 2006"))
	}

	return fmt.Sprintf(`
<article class="message message--post js-post" data-author="%s" data-content="post-%d" id="js-post-%d">
  <div class="message-inner">
    <div class="message-cell message-cell--user">
      <div class="message-userDetails">
        <h4 class="message-name"><a href="/members/%s/" class="username" data-user-id="%d">%s</a></h4>
      </div>
    </div>
    <div class="message-cell message-cell--main">
      <div class="message-content">
        <header class="message-attribution">%s</header>
        <div class="message-body"><div class="bbWrapper">%s</div></div>
      </div>
    </div>
  </div>
</article>`,
		html.EscapeString(author.shown()), p.ID, p.ID,
		author.slug(), author.ID, html.EscapeString(author.shown()),
		timeHTML, body.String())
}

func (f *Forum) renderQuote(q Quote) string {
	quoted := f.member(q.MemberID)
	text := q.Text
	if text == "" {
		if p, ok := f.findPost(q.PostID); ok {
			text = p.Body
		}
	}
	if q.PostID == 0 {
		return fmt.Sprintf(`<blockquote class="bbCodeBlock bbCodeBlock--expandable bbCodeBlock--quote" data-quote="%s">
  <div class="bbCodeBlock-title">%s said:</div>
  <div class="bbCodeBlock-content"><div class="bbCodeBlock-expandContent">%s</div></div>
</blockquote>`, html.EscapeString(quoted.shown()), html.EscapeString(quoted.shown()), html.EscapeString(text))
	}
	return fmt.Sprintf(`<blockquote class="bbCodeBlock bbCodeBlock--expandable bbCodeBlock--quote js-expandWatch" data-quote="%s" data-source="post: %d" data-attributes="member: %d">
  <div class="bbCodeBlock-title"><a href="/goto/post?id=%d" class="bbCodeBlock-sourceJump" data-content-selector="#post-%d">%s said:</a></div>
  <div class="bbCodeBlock-content"><div class="bbCodeBlock-expandContent">%s</div></div>
</blockquote>`, html.EscapeString(quoted.shown()), q.PostID, quoted.ID, q.PostID, q.PostID,
		html.EscapeString(quoted.shown()), html.EscapeString(text))
}

func pageNav(base string, page, last int) string {
	if last <= 1 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<nav class="pageNavWrapper"><div class="pageNav">`)
	if page < last {
		fmt.Fprintf(&b, `<a href="%spage-%d" class="pageNav-jump pageNav-jump--next" rel="next">Next</a>`, base, page+1)
	}
	b.WriteString(`</div></nav>`)
	return b.String()
}

func (f *Forum) serveMember(w http.ResponseWriter, r *http.Request) {
	m, ok := f.findMember(r.PathValue("member"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if m.Broken {
		http.Error(w, "profile unavailable", http.StatusInternalServerError)
		return
	}
	switch strings.Trim(r.PathValue("rest"), "/") {
	case "":
		writeHTML(w, m.Name, f.renderProfile(m))
	case "about":
		writeHTML(w, m.Name, f.renderAbout(m))
	case "tooltip":
		writeHTML(w, m.Name, f.renderTooltip(m))
	default:
		http.NotFound(w, r)
	}
}

func (f *Forum) renderProfile(m Member) string {
	if m.Sparse {
		return fmt.Sprintf(`<div class="memberHeader"><div class="memberHeader-content">
  <h1 class="memberHeader-name"><span class="username">%s</span></h1>
</div></div>`, html.EscapeString(m.Name))
	}
	blurb := ""
	if m.Location != "" {
		blurb = fmt.Sprintf(`<div class="memberHeader-blurb">From <a href="/misc/location-info?location=%s">%s</a></div>`,
			html.EscapeString(m.Location), html.EscapeString(m.Location))
	}
	return fmt.Sprintf(`<div class="memberHeader"><div class="memberHeader-content">
  <h1 class="memberHeader-name"><span class="username">%s</span></h1>
  <span class="userTitle">%s</span>
  %s
  <div class="memberHeader-blurb"><dl class="pairs pairs--inline"><dt>Joined</dt><dd><time datetime="%s">%s</time></dd></dl></div>
  <div class="memberHeader-stats">
    <dl class="pairs pairs--rows"><dt>Messages</dt><dd>%s</dd></dl>
    <dl class="pairs pairs--rows"><dt>Reaction score</dt><dd>%s</dd></dl>
    <dl class="pairs pairs--rows"><dt>Points</dt><dd>%d</dd></dl>
  </div>
</div></div>`,
		html.EscapeString(m.Name), html.EscapeString(m.Role), blurb,
		m.Joined.UTC().Format("2006-01-02T15:04:05-0700"), m.Joined.UTC().Format("Jan 2, 2006"),
		humanize.Comma(int64(m.Messages)), humanize.Comma(int64(m.Reactions)), m.Points)
}

func (f *Forum) renderAbout(m Member) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, `<div class="flex-row"><div class="about-identifier">%s:</div><div class="about-content">%s</div></div>
`, html.EscapeString(label), html.EscapeString(value))
	}
	b.WriteString(`<div class="block-body">`)
	row("Gender", m.Gender)
	row("Myers-Briggs Type", m.MBTI)
	row("Location", m.Location)
	row("Occupation", m.Occupation)
	b.WriteString(`</div>`)
	return b.String()
}

func (f *Forum) renderTooltip(m Member) string {
	return fmt.Sprintf(`<div class="tooltip-content"><div class="memberTooltip">
  <h4 class="memberTooltip-name"><a href="/members/%s/" class="username">%s</a></h4>
  <div class="memberTooltip-headline"><span class="userTitle">%s</span></div>
  <div class="memberTooltip-blurb">Joined <time datetime="%s">%s</time></div>
  <div class="memberTooltip-stats">
    <dl class="pairs"><dt>Replies</dt><dd>%s</dd></dl>
    <dl class="pairs"><dt>Reaction score</dt><dd>%s</dd></dl>
    <dl class="pairs"><dt>Points</dt><dd>%d</dd></dl>
  </div>
</div></div>`,
		m.slug(), html.EscapeString(m.Name), html.EscapeString(m.Role),
		m.Joined.UTC().Format("2006-01-02T15:04:05-0700"), m.Joined.UTC().Format("Jan 2, 2006"),
		humanize.Comma(int64(m.Messages)), humanize.Comma(int64(m.Reactions)), m.Points)
}
