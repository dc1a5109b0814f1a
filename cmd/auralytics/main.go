package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"auralytics/internal/analytics"
	"auralytics/internal/cache"
	"auralytics/internal/cmdlog"
	"auralytics/internal/config"
	"auralytics/internal/guard"
	"auralytics/internal/ingest"
	"auralytics/internal/llm"
	"auralytics/internal/logging"
	"auralytics/internal/pipeline"
	"auralytics/internal/schedule"
	"auralytics/internal/scraper"
	"auralytics/internal/server"
	"auralytics/internal/store"
	"auralytics/internal/theme"
	"auralytics/internal/xclient"
)

const defaultConfigPath = "./auralytics.yaml"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run("init", cmdInit)
	case "serve":
		err = cmdlog.Run("serve", cmdServe)
	case "analyze":
		err = cmdlog.Run("analyze", cmdAnalyze)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: auralytics <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./auralytics.yaml")
	fmt.Println("  serve       Run the HTTP API and maintenance jobs")
	fmt.Println("  analyze     Run one analysis for -handle and print the JSON response")
}

func loadConfig(path string) (config.Config, error) {
	if err := config.LoadDotEnv("."); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return cfg, err
	}
	logging.SetOutput(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// buildAnalyzer wires the fetcher, scoring strategy, optional generator and cache.
func buildAnalyzer(ctx context.Context, cfg config.Config) (*pipeline.Analyzer, *ingest.Fetcher, cache.Cache, error) {
	r := analytics.NewRand(cfg.Scoring.Seed)
	strategy, err := analytics.FromConfig(cfg.Scoring, r)
	if err != nil {
		return nil, nil, nil, err
	}
	fetcher := ingest.FromConfig(cfg)
	c := cache.NewLRU(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	a := &pipeline.Analyzer{
		Fetcher:  fetcher,
		Strategy: strategy,
		Guard:    guard.New(),
		Cache:    c,
		Rand:     r,
	}
	if cfg.LLM.Provider == "gemini" && cfg.LLM.APIKey != "" {
		g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			logging.Warn("generator_disabled", map[string]any{"error": err.Error()})
		} else {
			a.Generator = llm.NewGenerator(g)
		}
	}
	return a, fetcher, c, nil
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", defaultConfigPath, "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdAnalyze() error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	handle := fs.String("handle", "", "account handle to analyze")
	maxPosts := fs.Int("max", pipeline.DefaultMaxTweets, "posts to sample (1..300)")
	replies := fs.Bool("replies", false, "include replies")
	retweets := fs.Bool("retweets", true, "include reshares")
	_ = fs.Parse(os.Args[2:])
	if *handle == "" {
		return errors.New("-handle is required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	analyzer, _, _, err := buildAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	resp := analyzer.Analyze(ctx, pipeline.Request{
		UserID:   "cli",
		Username: *handle,
		Options:  ingest.Options{MaxPosts: *maxPosts, IncludeReplies: *replies, IncludeRetweets: *retweets},
	})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	name := *handle
	if resp.Username != nil {
		name = *resp.Username
	}
	fmt.Fprintln(os.Stderr, theme.TierLine(name, resp.Analysis.AuraScore, resp.Analysis.TierName))
	return nil
}

func cmdServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	addr := fs.String("addr", "", "listen address (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer, fetcher, c, err := buildAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	janitor, err := schedule.NewJanitor(cfg.Schedule, cfg.Storage.CardRetentionDays, c, st)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second
	deps := &server.ServerDeps{
		Cfg:       cfg,
		Analyzer:  analyzer,
		Available: fetcher.Available,
		Generator: analyzer.Generator != nil,
		Cache:     c,
		Store:     st,
		Profiles:  xclient.NewHTTPClient(cfg.Credentials.BearerToken, xclient.WithTimeout(timeout)),
		Social:    scraper.NewSocialProbe(timeout),
		Started:   time.Now().UTC(),
		Now:       func() time.Time { return time.Now().UTC() },
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// analyses page through several strategies
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("listening", map[string]any{"addr": cfg.Server.Addr, "storage": cfg.Storage.Driver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	return srv.Shutdown(shutdownCtx)
}
