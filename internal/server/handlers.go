// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"auralytics/internal/cache"
	"auralytics/internal/config"
	"auralytics/internal/ingest"
	"auralytics/internal/logging"
	"auralytics/internal/metrics"
	"auralytics/internal/model"
	"auralytics/internal/normalize"
	"auralytics/internal/pipeline"
	"auralytics/internal/scraper"
	"auralytics/internal/store"
	"auralytics/internal/util"
	"auralytics/internal/xclient"
)

// Version is reported by /api/health.
var Version = "1.0.0"

type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) pipeline.Response
}

// ProfileLookup is satisfied by *xclient.HTTPClient.
type ProfileLookup interface {
	Enabled() bool
	GetUserByUsername(ctx context.Context, username string) (xclient.User, error)
}

// SocialCounter is satisfied by *scraper.SocialProbe.
type SocialCounter interface {
	Counts(ctx context.Context, username string) scraper.SocialCounts
}

// ServerDeps carries every handler dependency. Profiles, Social and Store may be nil.
type ServerDeps struct {
	Cfg       config.Config
	Analyzer  Analyzer
	Available func() map[string]bool
	Generator bool
	Cache     cache.Cache
	Store     store.Store
	Profiles  ProfileLookup
	Social    SocialCounter
	Started   time.Time
	Now       func() time.Time
}

func (d *ServerDeps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now()
}

// --- Analyze ---

type analyzeBody struct {
	MaxTweets       *int  `json:"maxTweets"`
	IncludeReplies  *bool `json:"includeReplies"`
	IncludeRetweets *bool `json:"includeRetweets"`
}

func (b analyzeBody) options() ingest.Options {
	o := ingest.DefaultOptions(pipeline.DefaultMaxTweets)
	if b.MaxTweets != nil {
		o.MaxPosts = *b.MaxTweets
	}
	if b.IncludeReplies != nil {
		o.IncludeReplies = *b.IncludeReplies
	}
	if b.IncludeRetweets != nil {
		o.IncludeRetweets = *b.IncludeRetweets
	}
	return o
}

func (d *ServerDeps) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	id, ok := identityFrom(r)
	if !ok {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing authenticated identity", nil)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid body", err.Error(), nil)
		return
	}
	var body analyzeBody
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
			return
		}
	}
	resp := d.Analyzer.Analyze(r.Context(), pipeline.Request{
		UserID:   id.UserID,
		Username: id.Username,
		Profile:  id.Profile(),
		Options:  body.options(),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (d *ServerDeps) availability() map[string]bool {
	out := map[string]bool{
		"twitterApi":   false,
		"twitterApiV1": false,
		"scraping":     false,
		"browser":      false,
		"generator":    d.Generator,
	}
	if d.Available == nil {
		return out
	}
	names := map[string]string{
		normalize.SourceV2:      "twitterApi",
		normalize.SourceV1:      "twitterApiV1",
		normalize.SourceMirror:  "scraping",
		normalize.SourceBrowser: "browser",
	}
	for src, on := range d.Available() {
		if key, ok := names[src]; ok {
			out[key] = on
		}
	}
	return out
}

func (d *ServerDeps) HandleAnalyzeStatus(w http.ResponseWriter, r *http.Request) {
	switch action := r.URL.Query().Get("action"); action {
	case "", "status":
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"availability": d.availability(),
			"timestamp":    d.now().Format(time.RFC3339),
		})
	default:
		WriteProblem(w, http.StatusBadRequest, "unknown action", "unsupported action "+action, nil)
	}
}

// --- Health ---

func (d *ServerDeps) HandleHealth(w http.ResponseWriter, r *http.Request) {
	now := d.now()
	avail := d.availability()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": now.Format(time.RFC3339),
		"uptime":    now.Sub(d.Started).Seconds(),
		"version":   Version,
		"services": map[string]bool{
			"twitter":   avail["twitterApi"],
			"twitterV1": avail["twitterApiV1"],
			"gemini":    d.Generator,
			"scraping":  avail["scraping"],
			"browser":   avail["browser"],
			"storage":   d.Store != nil,
		},
	})
}

// --- Cached analysis ---

func (d *ServerDeps) HandleUserAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing authenticated identity", nil)
		return
	}
	if d.Cache != nil {
		if e, ok := d.Cache.Get(id.UserID); ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"hasAnalysis": true,
				"analysis":    e.Analysis,
				"userData":    e.Profile,
				"lastUpdated": e.UpdatedAt.UTC().Format(time.RFC3339),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hasAnalysis": false})
}

// --- Profile ---

type profileResponse struct {
	*model.Profile
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// HandleProfile returns identity fields, enriched from API v2 when a token is
// configured. Enrichment failures are ignored.
func (d *ServerDeps) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing authenticated identity", nil)
		return
	}
	p := &model.Profile{ID: id.UserID}
	handle := util.CleanHandle(id.Username)
	if handle != "" && d.Profiles != nil && d.Profiles.Enabled() {
		if u, err := d.Profiles.GetUserByUsername(r.Context(), handle); err == nil {
			p.Merge(normalize.ProfileFromV2(u))
		} else {
			logging.Warn("profile_enrich_failed", map[string]any{"handle": handle, "error": err.Error()})
		}
	}
	p.Merge(id.Profile())
	if p.Username == "" {
		p.Username = handle
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Email: id.Email, Image: id.Image})
}

// --- Social metrics ---

func (d *ServerDeps) HandleSocialMetrics(w http.ResponseWriter, r *http.Request) {
	handle := util.CleanHandle(r.URL.Query().Get("username"))
	if handle == "" {
		WriteProblem(w, http.StatusBadRequest, "invalid request", "username is required", nil)
		return
	}
	counts := scraper.SocialCounts{Username: handle, Following: scraper.EstimateFollowing(0), FollowingEstimated: true, Source: "none"}
	if d.Social != nil {
		counts = d.Social.Counts(r.Context(), handle)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":        counts.Username,
		"followers_count": counts.Followers,
		"following_count": counts.Following,
		"source": map[string]string{
			"followers": counts.Source,
			"following": followingSource(counts),
		},
		"fetchedAt": d.now().Format(time.RFC3339),
	})
}

func followingSource(c scraper.SocialCounts) string {
	if c.FollowingEstimated {
		return "estimated"
	}
	return "mobile"
}

// --- Visitor counter ---

func (d *ServerDeps) HandleVisitorCount(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "storage unavailable", "no store configured", nil)
		return
	}
	var n int64
	var err error
	if r.Method == http.MethodPost {
		n, err = d.Store.IncrementVisitors(r.Context())
	} else {
		n, err = d.Store.VisitorCount(r.Context())
	}
	if err != nil {
		logging.Error("visitor_count_failed", map[string]any{"error": err.Error()})
		WriteProblem(w, http.StatusInternalServerError, "storage error", "could not read visitor count", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

// --- Share cards ---

func (d *ServerDeps) HandleCreateCard(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	id, ok := identityFrom(r)
	if !ok {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing authenticated identity", nil)
		return
	}
	if d.Store == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "storage unavailable", "no store configured", nil)
		return
	}
	var e cache.Entry
	found := false
	if d.Cache != nil {
		e, found = d.Cache.Get(id.UserID)
	}
	if !found {
		WriteProblem(w, http.StatusNotFound, "no analysis", "run an analysis before creating a card", nil)
		return
	}
	card := store.Card{
		ID:        uuid.NewString(),
		UserID:    id.UserID,
		Username:  e.Username,
		AuraScore: e.Analysis.AuraScore,
		TierName:  e.Analysis.TierName,
		Summary:   e.Analysis.Summary,
		Analysis:  e.Analysis,
		CreatedAt: d.now(),
	}
	if err := d.Store.PutCard(r.Context(), card); err != nil {
		logging.Error("card_put_failed", map[string]any{"error": err.Error()})
		WriteProblem(w, http.StatusInternalServerError, "storage error", "could not save card", nil)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (d *ServerDeps) HandleGetCard(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "storage unavailable", "no store configured", nil)
		return
	}
	cardID := r.PathValue("id")
	if _, err := uuid.Parse(cardID); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid id", "card id must be a uuid", map[string][]string{"id": {err.Error()}})
		return
	}
	card, err := d.Store.GetCard(r.Context(), cardID)
	if errors.Is(err, store.ErrNotFound) {
		WriteProblem(w, http.StatusNotFound, "not found", "no card with that id", nil)
		return
	}
	if err != nil {
		logging.Error("card_get_failed", map[string]any{"error": err.Error()})
		WriteProblem(w, http.StatusInternalServerError, "storage error", "could not load card", nil)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Router builds the mux. Every route is observed and panic-safe.
func (d *ServerDeps) Router() http.Handler {
	mux := http.NewServeMux()
	keys := APIKeyAuth(d.Cfg.Server.APIKeys)
	handle := func(pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
		var hh http.Handler = h
		for _, mw := range mws {
			hh = mw(hh)
		}
		mux.Handle(pattern, Observe(pattern)(hh))
	}

	handle("POST /api/analyze", d.HandleAnalyze, BodyLimit(d.Cfg.Server.MaxBodyBytes), keys)
	handle("GET /api/analyze", d.HandleAnalyzeStatus)
	handle("GET /api/health", d.HandleHealth)
	handle("GET /api/user/analysis", d.HandleUserAnalysis, keys)
	handle("GET /api/profile", d.HandleProfile, keys)
	handle("GET /api/social/metrics", d.HandleSocialMetrics)
	handle("GET /api/visitor-count", d.HandleVisitorCount)
	handle("POST /api/visitor-count", d.HandleVisitorCount)
	handle("POST /api/cards", d.HandleCreateCard, BodyLimit(d.Cfg.Server.MaxBodyBytes), keys)
	handle("GET /api/cards/{id}", d.HandleGetCard)
	mux.Handle("GET /metrics", metrics.Handler())

	return Recover(mux)
}
