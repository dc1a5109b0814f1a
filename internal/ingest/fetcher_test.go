package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auralytics/internal/config"
	"auralytics/internal/model"
	"auralytics/internal/scraper"
	"auralytics/internal/xclient"
)

type fakeSource struct {
	name    string
	enabled bool
	batch   Batch
	err     error
	calls   int
	block   bool
	gotOpts Options
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return f.enabled }
func (f *fakeSource) Fetch(ctx context.Context, handle string, opts Options) (Batch, error) {
	f.calls++
	f.gotOpts = opts
	if f.block {
		<-ctx.Done()
		return Batch{}, ctx.Err()
	}
	return f.batch, f.err
}

func posts(n int) []model.Post {
	out := make([]model.Post, n)
	for i := range out {
		out[i] = model.Post{ID: string(rune('a' + i)), Text: "p"}
	}
	return out
}

func TestOptionsClamp(t *testing.T) {
	assert.Equal(t, 1, Options{MaxPosts: 0}.Clamp(0).MaxPosts)
	assert.Equal(t, 300, Options{MaxPosts: 5000}.Clamp(0).MaxPosts)
	assert.Equal(t, 100, Options{MaxPosts: 250}.Clamp(100).MaxPosts)
	assert.Equal(t, 30, Options{MaxPosts: 30}.Clamp(100).MaxPosts)
}

func TestFetchFallsThroughInOrder(t *testing.T) {
	first := &fakeSource{name: "one", enabled: true, err: errors.New("boom"),
		batch: Batch{Profile: &model.Profile{Username: "alice", FollowersCount: model.Ptr(10)}}}
	skipped := &fakeSource{name: "off", enabled: false, batch: Batch{Posts: posts(3)}}
	empty := &fakeSource{name: "two", enabled: true}
	good := &fakeSource{name: "three", enabled: true, batch: Batch{Posts: posts(4), Profile: &model.Profile{Bio: model.Ptr("hi")}}}
	never := &fakeSource{name: "four", enabled: true, batch: Batch{Posts: posts(2)}}

	res := New(time.Second, 100, first, skipped, empty, good, never).Fetch(context.Background(), "alice", Options{MaxPosts: 30})
	assert.Equal(t, "three", res.Source)
	assert.Len(t, res.Posts, 4)
	assert.Equal(t, 0, skipped.calls)
	assert.Equal(t, 0, never.calls)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, []string{"error", "empty", "ok"}, []string{res.Attempts[0].Outcome, res.Attempts[1].Outcome, res.Attempts[2].Outcome})

	require.NotNil(t, res.Profile)
	n, _ := res.Profile.Followers()
	assert.Equal(t, 10, n)
	assert.Equal(t, "hi", *res.Profile.Bio)
}

func TestFetchAllFailYieldsEmptyList(t *testing.T) {
	a := &fakeSource{name: "a", enabled: true, err: errors.New("down")}
	res := New(time.Second, 0, a).Fetch(context.Background(), "alice", Options{MaxPosts: 30})
	assert.NotNil(t, res.Posts)
	assert.Empty(t, res.Posts)
	assert.Equal(t, "", res.Source)

	none := New(time.Second, 0, a).Fetch(context.Background(), "", Options{MaxPosts: 30})
	assert.Empty(t, none.Posts)
	assert.Equal(t, 1, a.calls)
}

func TestFetchTimesOutPerStrategy(t *testing.T) {
	slow := &fakeSource{name: "slow", enabled: true, block: true}
	fast := &fakeSource{name: "fast", enabled: true, batch: Batch{Posts: posts(1)}}
	res := New(20*time.Millisecond, 0, slow, fast).Fetch(context.Background(), "alice", Options{MaxPosts: 5})
	assert.Equal(t, "fast", res.Source)
	assert.Equal(t, "error", res.Attempts[0].Outcome)
}

func TestFetchPassesClampedOptions(t *testing.T) {
	src := &fakeSource{name: "s", enabled: true, batch: Batch{Posts: posts(1)}}
	New(time.Second, 50, src).Fetch(context.Background(), "alice", Options{MaxPosts: 999, IncludeReplies: true})
	assert.Equal(t, 50, src.gotOpts.MaxPosts)
	assert.True(t, src.gotOpts.IncludeReplies)
}

func TestFilterDropsRepliesAndReshares(t *testing.T) {
	in := []model.Post{
		{ID: "1"},
		{ID: "2", ReferencedTweets: []model.Reference{{Type: model.RefRepliedTo, ID: "x"}}},
		{ID: "3", ReferencedTweets: []model.Reference{{Type: model.RefRetweeted, ID: "y"}}},
		{ID: "4", ReferencedTweets: []model.Reference{{Type: model.RefQuoted, ID: "z"}}},
	}
	ids := func(ps []model.Post) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "4"}, ids(Filter(in, Options{MaxPosts: 10})))
	assert.Equal(t, []string{"1", "3", "4"}, ids(Filter(in, Options{MaxPosts: 10, IncludeRetweets: true})))
	assert.Equal(t, []string{"1", "2"}, ids(Filter(in, Options{MaxPosts: 2, IncludeReplies: true, IncludeRetweets: true})))
}

func TestUnreachableMirrorsYieldNoPosts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := ts.URL
	ts.Close()

	src := MirrorSource{Scraper: scraper.NewMirrorScraper([]string{dead, dead + "/"}, time.Second)}
	res := New(time.Second, 100, src).Fetch(context.Background(), "alice", Options{MaxPosts: 30, IncludeRetweets: true})
	assert.Empty(t, res.Posts)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "error", res.Attempts[0].Outcome)
}

func TestAPISourceKeepsProfileWhenTweetsFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/by/username/alice" {
			_, _ = w.Write([]byte(`{"data":{"id":"42","username":"alice","public_metrics":{"followers_count":900,"following_count":100}}}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	api := APISource{Client: xclient.NewHTTPClient("tok", xclient.WithBaseURL(ts.URL), xclient.WithRetry(1, time.Millisecond))}
	res := New(time.Second, 100, api).Fetch(context.Background(), "alice", DefaultOptions(20))
	assert.Empty(t, res.Posts)
	require.NotNil(t, res.Profile)
	n, ok := res.Profile.Followers()
	assert.True(t, ok)
	assert.Equal(t, 900, n)
}

func TestAPISourceFiltersProviderLeaks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/by/username/alice" {
			_, _ = w.Write([]byte(`{"data":{"id":"42","username":"alice"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1","text":"own"},{"id":"2","text":"@bob hi","referenced_tweets":[{"type":"replied_to","id":"0"}]}]}`))
	}))
	defer ts.Close()

	api := APISource{Client: xclient.NewHTTPClient("tok", xclient.WithBaseURL(ts.URL))}
	res := New(time.Second, 100, api).Fetch(context.Background(), "alice", DefaultOptions(20))
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "1", res.Posts[0].ID)
	assert.Equal(t, "api_v2", res.Source)
}

type fakeRenderer struct {
	res scraper.BrowserResult
}

func (f fakeRenderer) Scrape(ctx context.Context, handle string, limit int) (scraper.BrowserResult, error) {
	return f.res, nil
}

func TestBrowserSourceLeavesVerificationUnknownOnEmptyPage(t *testing.T) {
	wall := BrowserSource{Scraper: fakeRenderer{}}
	res := New(time.Second, 100, wall).Fetch(context.Background(), "alice", DefaultOptions(20))
	assert.Empty(t, res.Posts)
	assert.Nil(t, res.Profile)

	rendered := BrowserSource{Scraper: fakeRenderer{res: scraper.BrowserResult{
		Records: []map[string]any{{"id": "9", "text": "hello", "like_count": "1.2K"}},
	}}}
	res = New(time.Second, 100, rendered).Fetch(context.Background(), "alice", DefaultOptions(20))
	require.Len(t, res.Posts, 1)
	assert.Equal(t, 1200, res.Posts[0].PublicMetrics.LikeCount)
	require.NotNil(t, res.Profile)
	require.NotNil(t, res.Profile.IsVerified)
	assert.False(t, *res.Profile.IsVerified)

	badge := BrowserSource{Scraper: fakeRenderer{res: scraper.BrowserResult{Verified: true}}}
	res = New(time.Second, 100, badge).Fetch(context.Background(), "alice", DefaultOptions(20))
	require.NotNil(t, res.Profile)
	assert.True(t, res.Profile.Verified())
}

func TestAPISourceDisabledWithoutClient(t *testing.T) {
	assert.False(t, APISource{}.Enabled())
	assert.False(t, APISource{Client: xclient.NewHTTPClient("")}.Enabled())
}

func TestFromConfigSelectsStrategies(t *testing.T) {
	cfg := config.Default()
	f := FromConfig(cfg)
	avail := f.Available()
	assert.False(t, avail["api_v2"])
	assert.True(t, avail["mirror"])
	_, hasV1 := avail["api_v1"]
	assert.False(t, hasV1)

	cfg.Credentials.BearerToken = "tok"
	cfg.Credentials.ConsumerKey, cfg.Credentials.ConsumerSecret = "a", "b"
	cfg.Credentials.AccessToken, cfg.Credentials.AccessSecret = "c", "d"
	cfg.Fetch.UseScraping = false
	cfg.Fetch.Browser.Enabled = true
	avail = FromConfig(cfg).Available()
	assert.True(t, avail["api_v2"])
	assert.True(t, avail["api_v1"])
	assert.True(t, avail["browser"])
	_, hasMirror := avail["mirror"]
	assert.False(t, hasMirror)
}
