package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
)

const pageURL = "https://forum.test/threads/coffee.10/page-2"

var scraped = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const threadHTML = `<html><body>
<h1 class="p-title-value">Coffee or tea?</h1>
<article class="message message--post js-post" data-author="bob" data-content="post-201" id="js-post-201">
  <div class="message-userDetails"><h4 class="message-name"><a href="/members/bob.3/" class="username">bob</a></h4></div>
  <div class="message-attribution"><time class="u-dt" datetime="2024-02-03T10:15:00+0000" data-time="1706955300">Feb 3, 2024</time></div>
  <div class="message-body"><div class="bbWrapper">
    <blockquote class="bbCodeBlock bbCodeBlock--expandable bbCodeBlock--quote" data-quote="alice" data-source="post: 200" data-attributes="member: 2">
      <div class="bbCodeBlock-title"><a href="/goto/post?id=200" class="bbCodeBlock-sourceJump" data-content-selector="#post-200">alice said:</a></div>
      <div class="bbCodeBlock-content"><div class="bbCodeBlock-expandContent">Tea is better.
        <blockquote class="bbCodeBlock bbCodeBlock--quote" data-quote="carol" data-source="post: 150"><div>nested</div></blockquote>
      </div></div>
    </blockquote>
    Strongly disagree.<br>Coffee wins, right @carol?
  </div></div>
</article>
<article class="message message--post js-post" data-author="dave" id="js-post-202">
  <div class="message-userDetails"><h4 class="message-name"><a href="/members/dave.4/" class="username">dave</a></h4></div>
  <time datetime="2024-02-03T11:00:00+0000">Feb 3, 2024</time>
  <div class="message-body"><div class="bbWrapper">
    <blockquote class="bbCodeBlock bbCodeBlock--quote"><div class="bbCodeBlock-title"><a class="bbCodeBlock-sourceJump" href="/goto/post?id=201">bob said:</a></div><div>Coffee wins</div></blockquote>
    <p>Agreed.</p>
  </div></div>
</article>
<article class="message message--post js-post" data-author="ghost">
  <h4 class="message-name"><a href="/members/ghost.9/" class="username">ghost</a></h4>
  <time datetime="2024-02-03T12:00:00+0000"></time>
  <div class="message-body"><div class="bbWrapper">no id</div></div>
</article>
<article class="message message--post js-post" data-content="post-204">
  <h4 class="message-name"><span class="username">anon</span></h4>
  <time datetime="2024-02-03T12:00:00+0000"></time>
  <div class="message-body"><div class="bbWrapper">no profile</div></div>
</article>
<article class="message message--post js-post" data-content="post-205">
  <h4 class="message-name"><a href="/members/erin.5/" class="username">erin</a></h4>
  <div class="message-body"><div class="bbWrapper">no time</div></div>
</article>
</body></html>`

func blocks(t *testing.T, body, url string) []parse.PostBlock {
	t.Helper()
	doc, err := parse.Parse([]byte(body), url)
	require.NoError(t, err)
	return doc.PostBlocks()
}

func TestPostExtraction(t *testing.T) {
	bs := blocks(t, threadHTML, pageURL)
	require.Len(t, bs, 5)
	src := Source{ThreadURL: "https://forum.test/threads/coffee.10/", ThreadID: "10", PageURL: pageURL, ScrapedAt: scraped}

	c, err := Post(bs[0], src)
	require.NoError(t, err)
	p := c.Post
	assert.Equal(t, "201", p.PostID)
	assert.Equal(t, "10", p.ThreadID)
	assert.Equal(t, pageURL, p.PageURL)
	assert.Equal(t, "3", p.UserID)
	assert.Equal(t, "bob", p.Username)
	assert.Equal(t, models.UsernameDisplay, p.UsernameSource)
	assert.Equal(t, time.Date(2024, 2, 3, 10, 15, 0, 0, time.UTC), p.Timestamp)
	assert.Equal(t, "Strongly disagree.\nCoffee wins, right @carol?", p.Text)
	assert.Equal(t, 0, p.Position)
	assert.Equal(t, scraped, p.ScrapedAt)
	assert.Equal(t, "https://forum.test/members/bob.3/", c.ProfileURL)
	assert.Equal(t, []models.QuoteRef{{Username: "alice", PostID: "200", UserID: "2"}}, p.Quotes)

	c, err = Post(bs[1], src)
	require.NoError(t, err)
	assert.Equal(t, "202", c.Post.PostID, "post id falls back to the element id")
	assert.Equal(t, "Agreed.", c.Post.Text)
	assert.Equal(t, []models.QuoteRef{{Username: "bob", PostID: "201"}}, c.Post.Quotes)
	assert.Equal(t, 1, c.Post.Position)
}

func TestPostExtractionFailuresAreIsolated(t *testing.T) {
	bs := blocks(t, threadHTML, pageURL)
	src := Source{ThreadID: "10", PageURL: pageURL, ScrapedAt: scraped}

	for i, what := range map[int]string{2: "post_id", 3: "user_id", 4: "timestamp"} {
		_, err := Post(bs[i], src)
		require.Error(t, err, what)
		assert.True(t, crawlerr.Is(err, crawlerr.KindExtraction), "%s: %v", what, err)
		assert.Contains(t, err.Error(), what)
	}
}

func TestThread(t *testing.T) {
	th, err := Thread("https://forum.test/threads/coffee.10/", "https://forum.test/forums/food.1/", "Coffee or tea?", scraped)
	require.NoError(t, err)
	assert.Equal(t, "10", th.ThreadID)
	require.NotNil(t, th.ForumURL)
	assert.Equal(t, "https://forum.test/forums/food.1/", *th.ForumURL)
	assert.Equal(t, scraped, th.FirstSeen)

	th, err = Thread("https://forum.test/threads/x.11/", "", "", scraped)
	require.NoError(t, err)
	assert.Nil(t, th.ForumURL)
	assert.Nil(t, th.Title)

	_, err = Thread("https://forum.test/forums/food.1/", "", "", scraped)
	assert.True(t, crawlerr.Is(err, crawlerr.KindExtraction))

	_, err = Thread("", "", "", scraped)
	assert.True(t, crawlerr.Is(err, crawlerr.KindExtraction))
}

const tooltipHTML = `<div class="tooltip-content"><div class="memberTooltip">
  <h4 class="memberTooltip-name"><a href="/members/alice.2/" class="username">Alice</a></h4>
  <div class="memberTooltip-headline"><span class="userTitle">Veteran Member</span></div>
  <div class="memberTooltip-blurb">Joined <time datetime="2012-01-05T10:00:00+0000">Jan 5, 2012</time></div>
  <div class="memberTooltip-stats">
    <dl class="pairs"><dt>Replies</dt><dd>1,234</dd></dl>
    <dl class="pairs"><dt>Discussions created</dt><dd>12</dd></dl>
    <dl class="pairs"><dt>Reaction score</dt><dd>2.5K</dd></dl>
    <dl class="pairs"><dt>Points</dt><dd>83</dd></dl>
  </div>
</div></div>`

const aboutHTML = `<html><body>
<div class="memberHeader-blurb">Female, from <a href="/misc/location-info?location=Lisbon">Lisbon</a></div>
<div class="flex-row"><div class="about-identifier">Gender:</div><div class="about-content">Female</div></div>
<div class="flex-row"><div class="about-identifier">Myers-Briggs Type:</div><div class="about-content">INTJ</div></div>
<div class="flex-row"><div class="about-identifier">Enneagram Type</div><div class="about-custom-content">5w6</div></div>
<div class="flex-row"><div class="about-identifier">Socionics</div><div class="about-content">ILI</div></div>
<div class="flex-row"><div class="about-identifier">Occupation</div><div class="about-content">  Data   analyst </div></div>
<div class="flex-row"><div class="about-identifier">Country of birth</div><div class="about-content">Portugal</div></div>
<div class="flex-row"><div class="about-identifier">Website</div><div class="about-content">https://example.com</div></div>
</body></html>`

const profileHTML = `<html><body>
<div class="memberHeader"><div class="memberHeader-content">
  <h1 class="memberHeader-name"><span class="username">Alice</span></h1>
  <span class="userTitle">Veteran Member</span>
  <div class="memberHeader-blurb">From Lisbon.</div>
  <dl class="pairs"><dt>Joined</dt><dd>Jan 5, 2012</dd></dl>
  <dl class="pairs"><dt>Messages</dt><dd>1,240</dd></dl>
</div></div>
</body></html>`

func fragment(t *testing.T, body string, kind parse.FragmentKind) parse.UserFragment {
	t.Helper()
	doc, err := parse.Parse([]byte(body), "https://forum.test/members/alice.2/x")
	require.NoError(t, err)
	f, ok := doc.UserFragment(kind)
	require.True(t, ok, "fragment %s", kind)
	return f
}

func TestUserTooltip(t *testing.T) {
	u, err := User(fragment(t, tooltipHTML, parse.Tooltip), "https://forum.test/members/alice.2/", scraped)
	require.NoError(t, err)
	assert.Equal(t, "2", u.UserID)
	require.NotNil(t, u.Username)
	assert.Equal(t, "Alice", *u.Username)
	require.NotNil(t, u.Role)
	assert.Equal(t, "Veteran Member", *u.Role)
	require.NotNil(t, u.JoinDate)
	assert.Equal(t, time.Date(2012, 1, 5, 10, 0, 0, 0, time.UTC), *u.JoinDate)
	require.NotNil(t, u.Replies)
	assert.EqualValues(t, 1234, *u.Replies)
	assert.EqualValues(t, 12, *u.DiscussionsCreated)
	assert.EqualValues(t, 2500, *u.ReactionScore)
	assert.EqualValues(t, 83, *u.Points)
	assert.Nil(t, u.MediaCount)
	assert.Nil(t, u.Gender)
	assert.True(t, HasProfileData(u))
}

func TestUserAbout(t *testing.T) {
	u, err := User(fragment(t, aboutHTML, parse.AboutTab), "https://forum.test/members/alice.2/", scraped)
	require.NoError(t, err)
	assert.Equal(t, "Female", *u.Gender)
	assert.Equal(t, "INTJ", *u.MBTIType)
	assert.Equal(t, "5w6", *u.EnneagramType)
	assert.Equal(t, "ILI", *u.Socionics)
	assert.Equal(t, "Data analyst", *u.Occupation)
	assert.Equal(t, "Portugal", *u.CountryOfBirth)
	assert.Equal(t, "Lisbon", *u.Location)
	assert.Nil(t, u.Username)
	assert.Nil(t, u.Replies)
	assert.False(t, HasProfileData(u))
}

func TestUserProfilePage(t *testing.T) {
	u, err := User(fragment(t, profileHTML, parse.ProfilePage), "https://forum.test/members/alice.2/", scraped)
	require.NoError(t, err)
	assert.Equal(t, "Alice", *u.Username)
	assert.Equal(t, "Veteran Member", *u.Role)
	assert.Equal(t, "Lisbon", *u.Location)
	require.NotNil(t, u.JoinDate)
	assert.Equal(t, 2012, u.JoinDate.Year())
	assert.EqualValues(t, 1240, *u.Replies)
}

func TestMergeUserIsNonDestructive(t *testing.T) {
	profile := "https://forum.test/members/alice.2/"
	tip, err := User(fragment(t, tooltipHTML, parse.Tooltip), profile, scraped)
	require.NoError(t, err)
	about, err := User(fragment(t, aboutHTML, parse.AboutTab), profile, scraped.Add(time.Minute))
	require.NoError(t, err)

	for name, merged := range map[string]models.User{
		"about over tooltip": MergeUser(tip, about),
		"tooltip over about": MergeUser(about, tip),
	} {
		t.Run(name, func(t *testing.T) {
			require.NotNil(t, merged.Username)
			assert.Equal(t, "Alice", *merged.Username)
			assert.Equal(t, "Veteran Member", *merged.Role)
			assert.EqualValues(t, 1234, *merged.Replies)
			assert.Equal(t, "INTJ", *merged.MBTIType)
			assert.Equal(t, "Female", *merged.Gender)
			assert.Equal(t, scraped.Add(time.Minute), merged.ScrapedAt)
			assert.Equal(t, scraped, merged.FirstSeen)
		})
	}
}

func TestUserWithoutNumericSlug(t *testing.T) {
	_, err := User(parse.UserFragment{Kind: parse.Tooltip}, "https://forum.test/members/nobody/", scraped)
	assert.True(t, crawlerr.Is(err, crawlerr.KindExtraction))
}

func TestCleanCount(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"1,234", ptr(1234)},
		{" 83 ", ptr(83)},
		{"2.5K", ptr(2500)},
		{"1M", ptr(1000000)},
		{"", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCount(tt.in), tt.in)
	}
}

func ptr(n int64) *int64 { return &n }
