package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"forumgraph/internal/crawlerr"
	"forumgraph/internal/ident"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
)

var (
	labelCleanRe = regexp.MustCompile(`[^a-z0-9 ]`)
	fromRe       = regexp.MustCompile(`(?i)from\s+(.*)`)
)

// User extracts the fields a fragment carries for the member at profileURL.
// Fields the fragment does not carry stay nil so MergeUser keeps whatever an
// earlier fragment supplied.
func User(frag parse.UserFragment, profileURL string, scrapedAt time.Time) (models.User, error) {
	userID, err := ident.UserIDFromSlug(profileURL)
	if err != nil {
		return models.User{}, crawlerr.Extraction(frag.SourceURL, "member fragment without user_id", err)
	}
	u := models.User{
		UserID:     userID,
		ProfileURL: profileURL,
		FirstSeen:  scrapedAt,
		ScrapedAt:  scrapedAt,
	}
	if frag.Selection == nil {
		return u, nil
	}

	switch frag.Kind {
	case parse.Tooltip:
		tooltip(frag.Selection, &u)
	case parse.ProfilePage:
		profilePage(frag.Selection, &u)
	case parse.AboutTab:
		aboutTab(frag.Selection, &u)
	default:
		return models.User{}, crawlerr.Extraction(frag.SourceURL, "unknown fragment kind", nil)
	}
	return u, nil
}

func tooltip(s *goquery.Selection, u *models.User) {
	name := s.Find(".memberTooltip-name a.username").First()
	if name.Length() == 0 {
		name = s.Find(".memberTooltip-name").First()
	}
	u.Username = optional(name.Text())
	u.Role = optional(s.Find(".userTitle").First().Text())
	u.JoinDate = timeOf(s.Find(".memberTooltip-blurb time").First())
	applyStats(collectStats(s.Find(".memberTooltip-stats dl")), u)
}

func profilePage(s *goquery.Selection, u *models.User) {
	name := s.Find("h1.p-title-value").First()
	if name.Length() == 0 {
		name = s.Find(".memberHeader-title").First()
	}
	if strings.TrimSpace(name.Text()) == "" {
		name = s.Find(".memberHeader-content .username").First()
	}
	u.Username = optional(name.Text())

	role := s.Find(".memberHeader-content .userTitle").First()
	if role.Length() == 0 {
		role = s.Find(".userTitle").First()
	}
	u.Role = optional(role.Text())

	joined := s.Find(".memberHeader-content time").First()
	if joined.Length() == 0 {
		joined = s.Find("time[itemprop='dateCreated']").First()
	}
	u.JoinDate = timeOf(joined)
	u.Location = headerLocation(s)

	stats := collectStats(s.Find("dl.pairs"))
	if u.JoinDate == nil {
		if t, ok := ParseDate(stats["joined"]); ok {
			u.JoinDate = &t
		}
	}
	applyStats(stats, u)
}

func aboutTab(s *goquery.Selection, u *models.User) {
	s.Find(parse.AboutRowSelector).Each(func(_ int, row *goquery.Selection) {
		label := aboutLabel(row.Find(".about-identifier").First().Text())
		if label == "" {
			return
		}
		value := row.Find(".about-content").First()
		if value.Length() == 0 {
			value = row.Find(".about-custom-content").First()
		}
		v := optional(spaced(value))
		if v == nil {
			return
		}
		switch {
		case strings.HasPrefix(label, "location"):
			u.Location = v
		case strings.HasPrefix(label, "gender"):
			u.Gender = v
		case strings.Contains(label, "myers briggs"), label == "mbti", strings.Contains(label, "type indicator"):
			u.MBTIType = v
		case strings.Contains(label, "enneagram"):
			u.EnneagramType = v
		case strings.Contains(label, "country of birth"):
			u.CountryOfBirth = v
		case strings.Contains(label, "socionics"):
			u.Socionics = v
		case strings.Contains(label, "occupation"):
			u.Occupation = v
		}
	})
	if u.Location == nil {
		u.Location = headerLocation(s)
	}
}

func aboutLabel(raw string) string {
	label := strings.ToLower(raw)
	label = strings.Join(strings.FieldsFunc(label, func(r rune) bool {
		return r == ':' || r == '-' || r == '_' || r == ' ' || r == '\t' || r == '\n'
	}), " ")
	return strings.TrimSpace(labelCleanRe.ReplaceAllString(label, ""))
}

func headerLocation(s *goquery.Selection) *string {
	if link := s.Find(".memberHeader-blurb a[href*='location-info']").First(); link.Length() > 0 {
		return optional(link.Text())
	}
	blurb := s.Find(".memberHeader-blurb").First()
	if blurb.Length() == 0 {
		return nil
	}
	m := fromRe.FindStringSubmatch(spaced(blurb))
	if m == nil {
		return nil
	}
	return optional(strings.Trim(m[1], " ."))
}

func collectStats(pairs *goquery.Selection) map[string]string {
	stats := map[string]string{}
	pairs.Each(func(_ int, dl *goquery.Selection) {
		dt := dl.Find("dt").First()
		dd := dl.Find("dd").First()
		if dt.Length() == 0 || dd.Length() == 0 {
			return
		}
		stats[strings.ToLower(strings.TrimSpace(dt.Text()))] = spaced(dd)
	})
	return stats
}

func applyStats(stats map[string]string, u *models.User) {
	u.Replies = overlay(u.Replies, CleanCount(stats["replies"]))
	if u.Replies == nil {
		u.Replies = CleanCount(stats["messages"])
	}
	u.DiscussionsCreated = overlay(u.DiscussionsCreated, CleanCount(stats["discussions created"]))
	u.ReactionScore = overlay(u.ReactionScore, CleanCount(stats["reaction score"]))
	u.Points = overlay(u.Points, CleanCount(stats["points"]))
	u.MediaCount = overlay(u.MediaCount, CleanCount(stats["media"]))
	u.ShowcaseCount = overlay(u.ShowcaseCount, CleanCount(stats["showcase"]))
}

// CleanCount parses counter text such as "1,234" or "1.2K". Empty or
// digit-free text yields nil.
func CleanCount(s string) *int64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	if mult > 1 {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64); err == nil {
			n := int64(f * mult)
			return &n
		}
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// HasProfileData reports whether a profile fragment yielded anything beyond
// a name: counters, a join date or a role.
func HasProfileData(u models.User) bool {
	for _, c := range []*int64{u.Replies, u.DiscussionsCreated, u.ReactionScore, u.Points, u.MediaCount, u.ShowcaseCount} {
		if c != nil {
			return true
		}
	}
	return u.JoinDate != nil || u.Role != nil
}

// MergeUser combines two fragments of the same member. Nil never erases.
func MergeUser(base, next models.User) models.User {
	return base.Merge(next)
}

// overlay returns next when set, otherwise old.
func overlay[T any](old, next *T) *T {
	if next != nil {
		return next
	}
	return old
}

func timeOf(el *goquery.Selection) *time.Time {
	if el == nil || el.Length() == 0 {
		return nil
	}
	if v, ok := el.Attr("datetime"); ok {
		if t, ok := ParseDate(v); ok {
			return &t
		}
	}
	if v, ok := el.Attr("data-time"); ok {
		if sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			return &t
		}
	}
	if t, ok := ParseDate(el.Text()); ok {
		return &t
	}
	return nil
}

// spaced returns the selection's text with runs of whitespace collapsed.
func spaced(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
