package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auralytics/internal/analytics"
	"auralytics/internal/cache"
	"auralytics/internal/guard"
	"auralytics/internal/ingest"
	"auralytics/internal/model"
	"auralytics/internal/scraper"
)

type stubFetcher struct {
	res    ingest.Result
	calls  int
	handle string
	opts   ingest.Options
}

func (s *stubFetcher) Fetch(ctx context.Context, handle string, opts ingest.Options) ingest.Result {
	s.calls++
	s.handle, s.opts = handle, opts
	return s.res
}

type stubGenerator struct {
	out   map[string]any
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, handle string, posts []model.Post) (map[string]any, error) {
	g.calls++
	return g.out, g.err
}

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newAnalyzer(f Fetcher, g Generator, c cache.Cache) *Analyzer {
	clock := func() time.Time { return now }
	return &Analyzer{
		Fetcher:   f,
		Strategy:  analytics.EngagementStrategy{Rand: analytics.NewRand(42)},
		Generator: g,
		Guard:     guard.Guard{Now: clock},
		Cache:     c,
		Rand:      analytics.NewRand(7),
		Now:       clock,
	}
}

func TestAliceWithUnreachableMirrorsIsBasic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := ts.URL
	ts.Close()

	fetcher := ingest.New(time.Second, 100, ingest.MirrorSource{Scraper: scraper.NewMirrorScraper([]string{dead}, time.Second)})
	c := cache.NewLRU(8, time.Hour)
	resp := newAnalyzer(fetcher, nil, c).Analyze(context.Background(), Request{
		UserID:   "u-1",
		Username: "alice",
		Options:  ingest.Options{MaxPosts: 30, IncludeReplies: false, IncludeRetweets: true},
	})

	assert.Equal(t, ModeBasic, resp.Mode)
	require.NotNil(t, resp.Username)
	assert.Equal(t, "alice", *resp.Username)
	assert.NotEmpty(t, resp.Reason)
	assert.Equal(t, 0, resp.TweetSampleCount)
	assert.NotNil(t, resp.Tweets)
	assert.Empty(t, resp.Tweets)
	assert.GreaterOrEqual(t, resp.Analysis.AuraScore, 20)
	assert.LessOrEqual(t, resp.Analysis.AuraScore, 100)
	assert.Equal(t, model.TierFor(resp.Analysis.AuraScore), resp.Analysis.TierName)
	assert.Len(t, resp.Analysis.TimeSeriesData, analytics.SeriesDays)

	entry, ok := c.Get("u-1")
	require.True(t, ok)
	assert.Equal(t, resp.Analysis, entry.Analysis)
}

func TestNoUsernameSkipsFetch(t *testing.T) {
	f := &stubFetcher{}
	resp := newAnalyzer(f, nil, nil).Analyze(context.Background(), Request{UserID: "u-2", Username: "@@bad handle"})
	assert.Equal(t, 0, f.calls)
	assert.Nil(t, resp.Username)
	assert.Equal(t, ModeBasic, resp.Mode)
	assert.Contains(t, resp.Reason, "No username")
	assert.Equal(t, DefaultMaxTweets, resp.Options.MaxPosts)
}

func TestPostsMakePremiumAndClampOptions(t *testing.T) {
	f := &stubFetcher{res: ingest.Result{
		Source: "mirror",
		Posts: []model.Post{
			{ID: "1", PublicMetrics: model.Metrics{LikeCount: 10}},
			{ID: "2", PublicMetrics: model.Metrics{LikeCount: 50}},
		},
		Profile: &model.Profile{FollowersCount: model.Ptr(1500)},
	}}
	resp := newAnalyzer(f, nil, nil).Analyze(context.Background(), Request{
		UserID: "u-3", Username: "@Bob_99", Options: ingest.Options{MaxPosts: 900, IncludeRetweets: true},
		Profile: &model.Profile{Name: model.Ptr("Bob")},
	})
	assert.Equal(t, "Bob_99", f.handle)
	assert.Equal(t, 300, f.opts.MaxPosts)
	assert.Equal(t, ModePremium, resp.Mode)
	assert.Empty(t, resp.Reason)
	assert.Equal(t, 2, resp.TweetSampleCount)
	assert.Equal(t, "mirror", resp.Source)
	assert.Equal(t, 30, resp.Analysis.Engagement.AvgLikes)

	require.NotNil(t, resp.Analysis.UserData)
	assert.Equal(t, "Bob_99", resp.Analysis.UserData.Username)
	assert.Equal(t, "Bob", *resp.Analysis.UserData.Name)
	n, ok := resp.Analysis.UserData.Followers()
	assert.True(t, ok)
	assert.Equal(t, 1500, n)
}

func TestGeneratorOutputIsGuarded(t *testing.T) {
	f := &stubFetcher{res: ingest.Result{Posts: []model.Post{{ID: "1"}}}}
	g := &stubGenerator{out: map[string]any{"auraScore": 140.0, "summary": "from the model"}}
	resp := newAnalyzer(f, g, nil).Analyze(context.Background(), Request{UserID: "u", Username: "carol"})
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, 100, resp.Analysis.AuraScore)
	assert.Equal(t, "Aura God", resp.Analysis.TierName)
	assert.Equal(t, "from the model", resp.Analysis.Summary)
}

func TestGeneratorWithoutSeriesGetsSynthesizedOne(t *testing.T) {
	f := &stubFetcher{res: ingest.Result{Posts: []model.Post{{ID: "1"}}}}
	g := &stubGenerator{out: map[string]any{"auraScore": 70.0}}
	resp := newAnalyzer(f, g, nil).Analyze(context.Background(), Request{UserID: "u", Username: "carol"})

	series := resp.Analysis.TimeSeriesData
	require.Len(t, series, analytics.SeriesDays)
	assert.Equal(t, "2025-06-02", series[len(series)-1].Date)
	flat := true
	for _, p := range series {
		assert.InDelta(t, 70, p.AuraScore, 6)
		if p.AuraScore != series[0].AuraScore {
			flat = false
		}
	}
	assert.False(t, flat)
}

func TestGeneratorSeriesIsKept(t *testing.T) {
	f := &stubFetcher{res: ingest.Result{Posts: []model.Post{{ID: "1"}}}}
	g := &stubGenerator{out: map[string]any{"auraScore": 70.0, "timeSeriesData": []any{
		map[string]any{"date": "2025-06-02", "auraScore": 12.0, "sentiment": 40.0, "engagement": 30.0},
	}}}
	resp := newAnalyzer(f, g, nil).Analyze(context.Background(), Request{UserID: "u", Username: "carol"})
	series := resp.Analysis.TimeSeriesData
	require.Len(t, series, analytics.SeriesDays)
	assert.Equal(t, 12.0, series[len(series)-1].AuraScore)
	assert.Equal(t, 70.0, series[0].AuraScore)
}

func TestGeneratorFailureFallsBack(t *testing.T) {
	f := &stubFetcher{res: ingest.Result{Posts: []model.Post{{ID: "1", PublicMetrics: model.Metrics{LikeCount: 5}}}}}
	g := &stubGenerator{err: errors.New("quota exhausted")}
	resp := newAnalyzer(f, g, nil).Analyze(context.Background(), Request{UserID: "u", Username: "carol"})
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, ModePremium, resp.Mode)
	assert.Equal(t, 5, resp.Analysis.Engagement.AvgLikes)
	assert.GreaterOrEqual(t, resp.Analysis.AuraScore, 20)
}

func TestGeneratorSkippedWithoutPosts(t *testing.T) {
	g := &stubGenerator{out: map[string]any{}}
	newAnalyzer(&stubFetcher{}, g, nil).Analyze(context.Background(), Request{UserID: "u", Username: "dave"})
	assert.Equal(t, 0, g.calls)
}
