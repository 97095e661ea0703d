package crawl

import (
	"context"
	"strings"
	"time"

	"forumgraph/internal/extract"
	"forumgraph/internal/ident"
	"forumgraph/internal/models"
	"forumgraph/internal/parse"
)

type resolvedUser struct {
	user models.User
	// canonical is set when the username came from the member's own pages.
	canonical bool
}

// RefreshUsers re-reads the given member profiles regardless of when they
// were last scraped.
func (c *Coordinator) RefreshUsers(ctx context.Context, profileURLs []string) (*Report, error) {
	r := &Report{}
	for _, raw := range profileURLs {
		if ctx.Err() != nil {
			break
		}
		profileURL := raw
		if c.opts.ForumURL != "" {
			profileURL = ident.AbsoluteURL(c.opts.ForumURL, raw)
		}
		c.resolveUser(ctx, profileURL, "", true, r)
	}
	return r, ctx.Err()
}

// resolveUser returns the member behind profileURL, fetching and committing
// it at most once per run. Concurrent callers for the same member share
// one fetch.
func (c *Coordinator) resolveUser(ctx context.Context, profileURL, displayName string, force bool, r *Report) (resolvedUser, bool) {
	userID, err := ident.UserIDFromSlug(profileURL)
	if err != nil {
		r.fail(profileURL, "user", err)
		return resolvedUser{}, false
	}
	if !force {
		if u, ok := c.cached(userID); ok {
			return u, true
		}
	}

	v, _, _ := c.flight.Do(userID, func() (any, error) {
		if !force {
			if u, ok := c.cached(userID); ok {
				return u, nil
			}
		}
		u := c.loadUser(ctx, userID, profileURL, displayName, force, r)
		c.remember(u)
		return u, nil
	})
	u := v.(resolvedUser)
	return u, u.user.UserID != ""
}

func (c *Coordinator) loadUser(ctx context.Context, userID, profileURL, displayName string, force bool, r *Report) resolvedUser {
	now := c.now()
	log := c.log.With("user_id", userID)

	existing, err := c.store.GetUser(ctx, userID)
	if err != nil {
		r.fail(profileURL, "user", err)
		existing = nil
	}

	if !force && c.opts.UserRefreshAfter > 0 && existing != nil && now.Sub(existing.ScrapedAt) < c.opts.UserRefreshAfter {
		log.Debug("user fresh, not refetched", "scraped_at", existing.ScrapedAt)
		r.skipUser()
		return resolvedUser{
			user:      *existing,
			canonical: existing.Username != nil && existing.UsernameSource == models.UsernameCanonical,
		}
	}

	// partial is set when a member page could not be read; the snapshot is
	// then laid over the stored one instead of replacing it.
	partial := false
	merged := models.User{UserID: userID, ProfileURL: profileURL, FirstSeen: now, ScrapedAt: now}
	about, ok, err := c.userFragment(ctx, ident.ProfileSubpage(profileURL, "about"), parse.AboutTab, profileURL, now, r)
	partial = partial || err != nil
	if ok {
		merged = merged.Merge(about)
	}
	profile, ok, err := c.userFragment(ctx, profileURL, parse.ProfilePage, profileURL, now, r)
	partial = partial || err != nil
	if ok {
		merged = merged.Merge(profile)
	}
	if !ok || !extract.HasProfileData(profile) {
		tip, ok, err := c.userFragment(ctx, ident.ProfileSubpage(profileURL, "tooltip"), parse.Tooltip, profileURL, now, r)
		partial = partial || err != nil
		if ok {
			merged = merged.Merge(tip)
		}
	}

	canonical := merged.Username != nil
	if canonical {
		merged.UsernameSource = models.UsernameCanonical
	}
	if partial && existing != nil {
		merged = existing.Merge(merged)
		merged.ScrapedAt = now
	}
	if merged.Username == nil {
		switch {
		case existing != nil && existing.Username != nil:
			merged.Username = existing.Username
			merged.UsernameSource = existing.UsernameSource
		default:
			name := strings.TrimSpace(displayName)
			if name == "" {
				name = ident.UsernameFromSlug(profileURL)
			}
			if name != "" {
				merged.Username = &name
				merged.UsernameSource = models.UsernameDisplay
			}
		}
	}
	canonical = merged.Username != nil && merged.UsernameSource == models.UsernameCanonical

	if !commit(ctx, r, "user", profileURL, merged, c.store.UpsertUser) {
		return resolvedUser{}
	}
	if canonical {
		if _, err := c.store.UpgradeUsernames(ctx, userID, *merged.Username); err != nil {
			r.fail(profileURL, "user", err)
		}
	}
	return resolvedUser{user: merged, canonical: canonical}
}

// userFragment fetches one member page and extracts the fragment of the
// given kind. A page without that fragment is not a failure; a page that
// cannot be fetched or extracted returns the error.
func (c *Coordinator) userFragment(ctx context.Context, url string, kind parse.FragmentKind, profileURL string, now time.Time, r *Report) (models.User, bool, error) {
	doc, err := c.page(ctx, url)
	if err != nil {
		c.log.Warn("member page failed", "source_url", url, "fragment_kind", kind.String(), "error", err)
		r.fail(url, kind.String(), err)
		return models.User{}, false, err
	}
	frag, ok := doc.UserFragment(kind)
	if !ok {
		return models.User{}, false, nil
	}
	u, err := extract.User(frag, profileURL, now)
	if err != nil {
		c.log.Warn("member fragment skipped", "source_url", url, "fragment_kind", kind.String(), "error", err)
		r.fail(url, kind.String(), err)
		return models.User{}, false, err
	}
	return u, true, nil
}
