// Package pipeline runs one analysis end to end:
// fetch, normalize, score or generate, guard, cache.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"auralytics/internal/analytics"
	"auralytics/internal/cache"
	"auralytics/internal/guard"
	"auralytics/internal/ingest"
	"auralytics/internal/logging"
	"auralytics/internal/metrics"
	"auralytics/internal/model"
	"auralytics/internal/util"
)

// Modes reported to callers.
const (
	ModePremium = "premium"
	ModeBasic   = "basic"
)

// DefaultMaxTweets applies when the request does not set maxTweets.
const DefaultMaxTweets = 30

const strategyGenerator = "generator"

// Fetcher is satisfied by *ingest.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, handle string, opts ingest.Options) ingest.Result
}

// Generator is satisfied by *llm.Generator.
type Generator interface {
	Generate(ctx context.Context, handle string, posts []model.Post) (map[string]any, error)
}

// Request identifies the caller. Profile carries identity fields the auth
// proxy already knows and may be nil.
type Request struct {
	UserID   string
	Username string
	Profile  *model.Profile
	Options  ingest.Options
}

type Response struct {
	Mode             string         `json:"mode"`
	Username         *string        `json:"username"`
	Reason           string         `json:"reason,omitempty"`
	Options          ingest.Options `json:"options"`
	TweetSampleCount int            `json:"tweetSampleCount"`
	Source           string         `json:"source,omitempty"`
	Analysis         model.Analysis `json:"analysis"`
	Tweets           []model.Post   `json:"tweets"`
}

// Analyzer wires the stages. Generator and Cache are optional.
type Analyzer struct {
	Fetcher   Fetcher
	Strategy  analytics.Strategy
	Generator Generator
	Guard     guard.Guard
	Cache     cache.Cache
	// Rand drives the synthesized series for generator replies without one.
	Rand analytics.Rand
	Now  func() time.Time
}

func (a *Analyzer) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// Analyze always returns a complete response. Fetch and generator failures
// degrade to basic mode or the heuristic, never to an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) Response {
	if req.Options.MaxPosts == 0 {
		req.Options.MaxPosts = DefaultMaxTweets
	}
	opts := req.Options.Clamp(0)
	handle := util.CleanHandle(req.Username)
	resp := Response{Options: opts, Tweets: []model.Post{}}

	var res ingest.Result
	if handle == "" {
		resp.Reason = "No username is associated with this account; showing a generic analysis."
	} else {
		resp.Username = &handle
		res = a.Fetcher.Fetch(ctx, handle, opts)
		resp.Source = res.Source
		if len(res.Posts) == 0 {
			resp.Reason = fmt.Sprintf("No posts could be fetched for @%s; showing a basic analysis.", handle)
		}
	}

	profile := mergeProfiles(req.Profile, res.Profile)
	if profile != nil && profile.Username == "" {
		profile.Username = handle
	}
	posts := res.Posts
	if posts == nil {
		posts = []model.Post{}
	}

	raw, strategy := a.score(ctx, handle, posts, profile)
	analysis := a.Guard.Complete(raw)
	if strategy == strategyGenerator && !hasSeries(raw) {
		analysis.TimeSeriesData = analytics.TimeSeries(a.rand(), a.now(), analysis.AuraScore,
			analysis.Sentiment.Positive, analysis.Engagement.EngagementRate)
	}
	if analysis.UserData == nil {
		analysis.UserData = profile
	}

	resp.Analysis = analysis
	resp.Tweets = posts
	resp.TweetSampleCount = len(posts)
	resp.Mode = ModeBasic
	if len(posts) > 0 {
		resp.Mode = ModePremium
	}

	if a.Cache != nil && req.UserID != "" {
		a.Cache.Put(cache.Entry{UserID: req.UserID, Username: handle, Analysis: analysis, Profile: profile})
	}
	metrics.IncAnalysis(resp.Mode, strategy)
	logging.Info("analysis_complete", map[string]any{
		"handle": handle, "mode": resp.Mode, "strategy": strategy,
		"posts": len(posts), "source": res.Source, "score": analysis.AuraScore,
	})
	return resp
}

// score asks the generator first when the engagement strategy has posts to
// show it, and falls back to the heuristic on any failure.
func (a *Analyzer) score(ctx context.Context, handle string, posts []model.Post, profile *model.Profile) (any, string) {
	if a.Generator != nil && len(posts) > 0 && a.Strategy.Name() == analytics.StrategyEngagement {
		raw, err := a.Generator.Generate(ctx, handle, posts)
		if err == nil {
			return raw, strategyGenerator
		}
		metrics.IncGeneratorFallback()
		logging.Warn("generator_fallback", map[string]any{"handle": handle, "error": err.Error()})
	}
	in := analytics.Input{Handle: handle, Posts: posts, Profile: profile, Now: a.now()}
	return a.Strategy.Score(in), a.Strategy.Name()
}

func (a *Analyzer) rand() analytics.Rand {
	if a.Rand == nil {
		a.Rand = analytics.NewRand(0)
	}
	return a.Rand
}

func hasSeries(raw any) bool {
	m, _ := raw.(map[string]any)
	list, _ := m["timeSeriesData"].([]any)
	return len(list) > 0
}

func mergeProfiles(identity, fetched *model.Profile) *model.Profile {
	if fetched == nil && identity == nil {
		return nil
	}
	out := &model.Profile{}
	out.Merge(fetched)
	out.Merge(identity)
	return out
}
