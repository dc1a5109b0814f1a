package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auralytics/internal/cache"
	"auralytics/internal/config"
	"auralytics/internal/model"
	"auralytics/internal/pipeline"
	"auralytics/internal/scraper"
	"auralytics/internal/store"
	"auralytics/internal/xclient"
)

type fakeAnalyzer struct {
	got   pipeline.Request
	calls int
	panic bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req pipeline.Request) pipeline.Response {
	if f.panic {
		panic("boom")
	}
	f.calls++
	f.got = req
	return pipeline.Response{Mode: pipeline.ModeBasic, Options: req.Options, Analysis: model.Analysis{AuraScore: 20, TierName: "Noob"}, Tweets: []model.Post{}}
}

type fakeLookup struct {
	user xclient.User
	err  error
}

func (f fakeLookup) Enabled() bool { return true }
func (f fakeLookup) GetUserByUsername(ctx context.Context, username string) (xclient.User, error) {
	return f.user, f.err
}

type fakeSocial struct{ counts scraper.SocialCounts }

func (f fakeSocial) Counts(ctx context.Context, username string) scraper.SocialCounts {
	return f.counts
}

var testNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func newDeps(t *testing.T) (*ServerDeps, *fakeAnalyzer) {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fa := &fakeAnalyzer{}
	return &ServerDeps{
		Cfg:       config.Default(),
		Analyzer:  fa,
		Available: func() map[string]bool { return map[string]bool{"api_v2": false, "mirror": true} },
		Cache:     cache.NewLRU(16, time.Hour),
		Store:     st,
		Started:   testNow.Add(-time.Minute),
		Now:       func() time.Time { return testNow },
	}, fa
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var alice = map[string]string{HeaderUserID: "u-1", HeaderUsername: "alice", HeaderName: "Alice"}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestAnalyzeRequiresIdentity(t *testing.T) {
	d, fa := newDeps(t)
	rec := do(t, d.Router(), http.MethodPost, "/api/analyze", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 0, fa.calls)
}

func TestAnalyzeRejectsMalformedJSON(t *testing.T) {
	d, fa := newDeps(t)
	rec := do(t, d.Router(), http.MethodPost, "/api/analyze", `{"maxTweets":`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fa.calls)
	assert.Equal(t, "invalid json", decodeBody(t, rec)["title"])
}

func TestAnalyzeDefaultsAndOverrides(t *testing.T) {
	d, fa := newDeps(t)
	rec := do(t, d.Router(), http.MethodPost, "/api/analyze", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", fa.got.UserID)
	assert.Equal(t, "alice", fa.got.Username)
	assert.Equal(t, 30, fa.got.Options.MaxPosts)
	assert.False(t, fa.got.Options.IncludeReplies)
	assert.True(t, fa.got.Options.IncludeRetweets)
	require.NotNil(t, fa.got.Profile)
	assert.Equal(t, "Alice", *fa.got.Profile.Name)
	assert.Equal(t, "basic", decodeBody(t, rec)["mode"])

	rec = do(t, d.Router(), http.MethodPost, "/api/analyze", `{"maxTweets":120,"includeReplies":true,"includeRetweets":false}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 120, fa.got.Options.MaxPosts)
	assert.True(t, fa.got.Options.IncludeReplies)
	assert.False(t, fa.got.Options.IncludeRetweets)
}

func TestAnalyzeStatus(t *testing.T) {
	d, _ := newDeps(t)
	h := d.Router()
	for _, path := range []string{"/api/analyze", "/api/analyze?action=status"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		m := decodeBody(t, rec)
		avail := m["availability"].(map[string]any)
		assert.Equal(t, false, avail["twitterApi"])
		assert.Equal(t, true, avail["scraping"])
		assert.Equal(t, "2025-05-01T10:00:00Z", m["timestamp"])
	}
	rec := do(t, h, http.MethodGet, "/api/analyze?action=reset", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	d, _ := newDeps(t)
	rec := do(t, d.Router(), http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody(t, rec)
	assert.Equal(t, "OK", m["status"])
	assert.Equal(t, 60.0, m["uptime"])
	assert.Equal(t, true, m["services"].(map[string]any)["storage"])
}

func TestUserAnalysisFromCache(t *testing.T) {
	d, _ := newDeps(t)
	h := d.Router()
	rec := do(t, h, http.MethodGet, "/api/user/analysis", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/user/analysis", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["hasAnalysis"])

	d.Cache.Put(cache.Entry{UserID: "u-1", Username: "alice", Analysis: model.Analysis{AuraScore: 64, TierName: "Occasional Legend"}})
	rec = do(t, h, http.MethodGet, "/api/user/analysis", "", alice)
	m := decodeBody(t, rec)
	assert.Equal(t, true, m["hasAnalysis"])
	assert.Equal(t, 64.0, m["analysis"].(map[string]any)["auraScore"])
	assert.NotEmpty(t, m["lastUpdated"])
}

func TestProfileEnrichment(t *testing.T) {
	d, _ := newDeps(t)
	var u xclient.User
	u.Username = "alice"
	u.Description = "builder"
	u.PublicMetrics.FollowersCount = 321
	d.Profiles = fakeLookup{user: u}

	rec := do(t, d.Router(), http.MethodGet, "/api/profile", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody(t, rec)
	assert.Equal(t, "u-1", m["id"])
	assert.Equal(t, "alice", m["username"])
	assert.Equal(t, "builder", m["bio"])
	assert.Equal(t, 321.0, m["followersCount"])
	assert.Equal(t, "Alice", m["name"])

	d.Profiles = fakeLookup{err: errors.New("403")}
	rec = do(t, d.Router(), http.MethodGet, "/api/profile", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	m = decodeBody(t, rec)
	assert.Equal(t, "alice", m["username"])
	_, has := m["followersCount"]
	assert.False(t, has)
}

func TestSocialMetrics(t *testing.T) {
	d, _ := newDeps(t)
	d.Social = fakeSocial{counts: scraper.SocialCounts{Username: "alice", Followers: 1000, Following: 400, FollowingEstimated: true, Source: "syndication"}}
	h := d.Router()

	rec := do(t, h, http.MethodGet, "/api/social/metrics", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/social/metrics?username=alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody(t, rec)
	assert.Equal(t, 1000.0, m["followers_count"])
	assert.Equal(t, 400.0, m["following_count"])
	assert.Equal(t, "estimated", m["source"].(map[string]any)["following"])
}

func TestVisitorCount(t *testing.T) {
	d, _ := newDeps(t)
	h := d.Router()
	rec := do(t, h, http.MethodGet, "/api/visitor-count", "", nil)
	assert.Equal(t, 0.0, decodeBody(t, rec)["count"])
	do(t, h, http.MethodPost, "/api/visitor-count", "", nil)
	rec = do(t, h, http.MethodPost, "/api/visitor-count", "", nil)
	assert.Equal(t, 2.0, decodeBody(t, rec)["count"])
}

func TestCards(t *testing.T) {
	d, _ := newDeps(t)
	h := d.Router()

	rec := do(t, h, http.MethodPost, "/api/cards", "", alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.Cache.Put(cache.Entry{UserID: "u-1", Username: "alice", Analysis: model.Analysis{AuraScore: 92, TierName: "Amrit Sir", Summary: "wow"}})
	rec = do(t, h, http.MethodPost, "/api/cards", "", alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	var card store.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	_, err := uuid.Parse(card.ID)
	require.NoError(t, err)
	assert.Equal(t, 92, card.AuraScore)

	rec = do(t, h, http.MethodGet, "/api/cards/"+card.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Amrit Sir", decodeBody(t, rec)["tierName"])

	rec = do(t, h, http.MethodGet, "/api/cards/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/cards/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeys(t *testing.T) {
	d, fa := newDeps(t)
	d.Cfg.Server.APIKeys = []string{"secret"}
	h := d.Router()
	rec := do(t, h, http.MethodPost, "/api/analyze", "", alice)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	withKey := map[string]string{HeaderUserID: "u-1", HeaderUsername: "alice", "X-API-Key": "secret"}
	rec = do(t, h, http.MethodPost, "/api/analyze", "", withKey)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fa.calls)
}

func TestPanicBecomesProblem(t *testing.T) {
	d, fa := newDeps(t)
	fa.panic = true
	rec := do(t, d.Router(), http.MethodPost, "/api/analyze", "{}", alice)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestBodyLimit(t *testing.T) {
	d, _ := newDeps(t)
	d.Cfg.Server.MaxBodyBytes = 8
	rec := do(t, d.Router(), http.MethodPost, "/api/analyze", `{"maxTweets": 30}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
