// Package ingest fetches a bounded sample of an account's posts by trying
// each configured strategy in order until one yields posts.
package ingest

import (
	"context"
	"time"

	"auralytics/internal/config"
	"auralytics/internal/logging"
	"auralytics/internal/metrics"
	"auralytics/internal/model"
	"auralytics/internal/scraper"
	"auralytics/internal/xclient"
)

// MaxPostsCeiling bounds every request regardless of configuration.
const MaxPostsCeiling = 300

// Options controls how many posts are fetched and which kinds are kept.
type Options struct {
	MaxPosts        int  `json:"maxTweets"`
	IncludeReplies  bool `json:"includeReplies"`
	IncludeRetweets bool `json:"includeRetweets"`
}

// DefaultOptions keeps reshares and drops replies.
func DefaultOptions(maxPosts int) Options {
	return Options{MaxPosts: maxPosts, IncludeReplies: false, IncludeRetweets: true}
}

// Clamp bounds MaxPosts to [1, MaxPostsCeiling] and then to configured.
func (o Options) Clamp(configured int) Options {
	o.MaxPosts = model.ClampInt(o.MaxPosts, 1, MaxPostsCeiling)
	if configured > 0 && o.MaxPosts > configured {
		o.MaxPosts = configured
	}
	return o
}

// Attempt records one strategy run.
type Attempt struct {
	Source     string `json:"source"`
	Outcome    string `json:"outcome"`
	Posts      int    `json:"posts"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Result is the fetch outcome. Source is empty when no strategy produced posts.
type Result struct {
	Posts    []model.Post
	Profile  *model.Profile
	Source   string
	Attempts []Attempt
}

// Fetcher walks its sources in order.
type Fetcher struct {
	sources  []Source
	timeout  time.Duration
	maxPosts int
}

func New(timeout time.Duration, maxPosts int, sources ...Source) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{sources: sources, timeout: timeout, maxPosts: maxPosts}
}

// FromConfig builds the API v2, API v1.1, mirror and browser strategies,
// leaving out the ones whose configuration is absent.
func FromConfig(cfg config.Config) *Fetcher {
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	api := xclient.NewHTTPClient(cfg.Credentials.BearerToken, xclient.WithTimeout(timeout))
	sources := []Source{APISource{Client: api}}
	if cfg.Credentials.HasV1() {
		c := cfg.Credentials
		sources = append(sources, V1Source{Client: xclient.NewV1Client(api, c.ConsumerKey, c.ConsumerSecret, c.AccessToken, c.AccessSecret)})
	}
	if cfg.Fetch.UseScraping {
		sources = append(sources, MirrorSource{Scraper: scraper.NewMirrorScraper(cfg.Fetch.Mirrors, timeout,
			scraper.WithUserAgent(cfg.Fetch.UserAgent), scraper.WithMaxPages(cfg.Fetch.MaxPages))})
	}
	if cfg.Fetch.Browser.Enabled {
		b := cfg.Fetch.Browser
		sources = append(sources, BrowserSource{Scraper: scraper.NewBrowserScraper(b.BaseURL, b.Headless,
			time.Duration(b.TimeoutSeconds)*time.Second)})
	}
	return New(timeout, cfg.Fetch.MaxPosts, sources...)
}

// Available reports which strategies are configured, by name.
func (f *Fetcher) Available() map[string]bool {
	out := make(map[string]bool, len(f.sources))
	for _, s := range f.sources {
		out[s.Name()] = s.Enabled()
	}
	return out
}

// Fetch never fails. Strategy errors are logged and counted, and an empty
// post list is the result when every strategy fails.
func (f *Fetcher) Fetch(ctx context.Context, handle string, opts Options) Result {
	opts = opts.Clamp(f.maxPosts)
	res := Result{Posts: []model.Post{}}
	if handle == "" {
		return res
	}
	for _, src := range f.sources {
		if !src.Enabled() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		batch, err := src.Fetch(callCtx, handle, opts)
		cancel()

		if res.Profile == nil {
			res.Profile = batch.Profile
		} else {
			res.Profile.Merge(batch.Profile)
		}
		posts := Filter(batch.Posts, opts)
		a := Attempt{Source: src.Name(), Posts: len(posts), DurationMS: time.Since(start).Milliseconds()}
		switch {
		case err != nil:
			a.Outcome = "error"
			a.Error = err.Error()
			logging.Warn("fetch_strategy_failed", map[string]any{"source": src.Name(), "handle": handle, "error": err.Error()})
		case len(posts) == 0:
			a.Outcome = "empty"
			logging.Info("fetch_strategy_empty", map[string]any{"source": src.Name(), "handle": handle, "raw": len(batch.Posts)})
		default:
			a.Outcome = "ok"
		}
		metrics.ObserveFetch(src.Name(), a.Outcome, start)
		res.Attempts = append(res.Attempts, a)
		if a.Outcome == "ok" {
			res.Posts = posts
			res.Source = src.Name()
			logging.Info("fetch_ok", map[string]any{"source": src.Name(), "handle": handle, "posts": len(posts)})
			return res
		}
	}
	return res
}

// Filter drops replies and reshares the options exclude and truncates to MaxPosts.
// Providers ignore exclusion hints often enough that this always runs.
func Filter(posts []model.Post, opts Options) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if !opts.IncludeReplies && p.IsReply() {
			continue
		}
		if !opts.IncludeRetweets && p.IsRetweet() {
			continue
		}
		out = append(out, p)
		if opts.MaxPosts > 0 && len(out) >= opts.MaxPosts {
			break
		}
	}
	return out
}
