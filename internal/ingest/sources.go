package ingest

import (
	"context"
	"errors"

	"auralytics/internal/model"
	"auralytics/internal/normalize"
	"auralytics/internal/scraper"
	"auralytics/internal/xclient"
)

// Batch is what a single strategy produced. Profile may be set without posts.
type Batch struct {
	Posts   []model.Post
	Profile *model.Profile
}

// Source is one fetch strategy.
type Source interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context, handle string, opts Options) (Batch, error)
}

// APISource resolves the handle and pages user tweets through API v2.
type APISource struct {
	Client xclient.XClient
}

func (s APISource) Name() string  { return normalize.SourceV2 }
func (s APISource) Enabled() bool { return s.Client != nil && s.Client.Enabled() }

func (s APISource) Fetch(ctx context.Context, handle string, opts Options) (Batch, error) {
	var b Batch
	u, err := s.Client.GetUserByUsername(ctx, handle)
	if err != nil {
		return b, err
	}
	b.Profile = normalize.ProfileFromV2(u)
	tweets, err := s.Client.GetUserTweets(ctx, u.ID, xclient.TweetQuery{
		Max:             opts.MaxPosts,
		ExcludeReplies:  !opts.IncludeReplies,
		ExcludeRetweets: !opts.IncludeRetweets,
	})
	if err != nil {
		return b, err
	}
	for _, t := range tweets {
		b.Posts = append(b.Posts, normalize.FromV2(t))
	}
	return b, nil
}

// V1Source reads the user timeline through the OAuth 1.0a v1.1 API.
type V1Source struct {
	Client *xclient.V1Client
}

func (s V1Source) Name() string  { return normalize.SourceV1 }
func (s V1Source) Enabled() bool { return s.Client.Enabled() }

func (s V1Source) Fetch(ctx context.Context, handle string, opts Options) (Batch, error) {
	var b Batch
	statuses, err := s.Client.GetUserTimeline(ctx, handle, xclient.TimelineQuery{
		Max:             opts.MaxPosts,
		ExcludeReplies:  !opts.IncludeReplies,
		IncludeRetweets: opts.IncludeRetweets,
	})
	if err != nil {
		return b, err
	}
	for _, st := range statuses {
		if b.Profile == nil {
			b.Profile = normalize.ProfileFromV1(st.User)
		}
		b.Posts = append(b.Posts, normalize.FromV1(st))
	}
	return b, nil
}

// MirrorSource scrapes public mirror hosts.
type MirrorSource struct {
	Scraper *scraper.MirrorScraper
}

func (s MirrorSource) Name() string  { return normalize.SourceMirror }
func (s MirrorSource) Enabled() bool { return s.Scraper.Enabled() }

func (s MirrorSource) Fetch(ctx context.Context, handle string, opts Options) (Batch, error) {
	var b Batch
	// over-fetch so client-side filtering can still fill the request
	page, err := s.Scraper.Scrape(ctx, handle, opts.MaxPosts*2)
	if err != nil {
		return b, err
	}
	b.Profile = normalize.ProfileFromCard(page.Profile)
	for _, it := range page.Items {
		b.Posts = append(b.Posts, normalize.FromScraped(it))
	}
	return b, nil
}

// PageRenderer loads a profile page and extracts raw post records.
type PageRenderer interface {
	Scrape(ctx context.Context, handle string, limit int) (scraper.BrowserResult, error)
}

// BrowserSource renders the profile page in headless Chrome.
type BrowserSource struct {
	Scraper PageRenderer
}

func (s BrowserSource) Name() string  { return normalize.SourceBrowser }
func (s BrowserSource) Enabled() bool { return s.Scraper != nil }

func (s BrowserSource) Fetch(ctx context.Context, handle string, opts Options) (Batch, error) {
	var b Batch
	if s.Scraper == nil {
		return b, errors.New("browser scraping disabled")
	}
	res, err := s.Scraper.Scrape(ctx, handle, opts.MaxPosts*2)
	if err != nil {
		return b, err
	}
	// a page with neither records nor a badge says nothing about verification
	if len(res.Records) > 0 || res.Verified {
		b.Profile = &model.Profile{Username: handle, IsVerified: model.Ptr(res.Verified)}
	}
	for _, r := range res.Records {
		b.Posts = append(b.Posts, normalize.FromMap(r))
	}
	return b, nil
}
