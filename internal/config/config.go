package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the HTTP server, platform credentials, fetch strategies and scoring policy.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	LLM         LLMConfig         `yaml:"llm"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	LogLevel    string            `yaml:"logLevel"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
	// Shared keys accepted in X-API-Key. Empty disables the check.
	APIKeys []string `yaml:"apiKeys"`
}

type CredentialsConfig struct {
	// X/Twitter API bearer token. If empty, read from env X_BEARER_TOKEN or TWITTER_BEARER_TOKEN
	BearerToken string `yaml:"bearerToken"`
	// OAuth1.0a credentials for v1.1 timelines
	ConsumerKey    string `yaml:"consumerKey"`
	ConsumerSecret string `yaml:"consumerSecret"`
	AccessToken    string `yaml:"accessToken"`
	AccessSecret   string `yaml:"accessSecret"`
}

// HasV1 reports whether the full OAuth1.0a credential set is present.
func (c CredentialsConfig) HasV1() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

type FetchConfig struct {
	// Upper bound on posts per analysis, itself clamped to [1,300].
	MaxPosts       int           `yaml:"maxPosts"`
	TimeoutSeconds int           `yaml:"timeoutSeconds"`
	UseScraping    bool          `yaml:"useScraping"`
	Mirrors        []string      `yaml:"mirrors"`
	MaxPages       int           `yaml:"maxPages"`
	UserAgent      string        `yaml:"userAgent"`
	Browser        BrowserConfig `yaml:"browser"`
}

type BrowserConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Headless       bool   `yaml:"headless"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	BaseURL        string `yaml:"baseURL"`
}

type ScoringConfig struct {
	// engagement | counts | tier
	Strategy  string         `yaml:"strategy"`
	AllowList map[string]int `yaml:"allowList"`
	// 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "gemini" or "none"
	Model    string `yaml:"model"`
	// If empty, read from env GOOGLE_GEMINI_API_KEY or GEMINI_API_KEY
	APIKey string `yaml:"apiKey"`
}

type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLMinutes int `yaml:"ttlMinutes"`
}

type StorageConfig struct {
	// sqlite | postgres
	Driver            string `yaml:"driver"`
	DSN               string `yaml:"dsn"`
	DBPath            string `yaml:"dbPath"`
	CardRetentionDays int    `yaml:"cardRetentionDays"`
}

type ScheduleConfig struct {
	PruneSpec string `yaml:"pruneSpec"`
	CardsSpec string `yaml:"cardsSpec"`
}

// DefaultMirrors are the public mirror hosts tried in order.
var DefaultMirrors = []string{
	"https://nitter.net",
	"https://nitter.snopyta.org",
	"https://nitter.poast.org",
	"https://nitter.fdn.fr",
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000", MaxBodyBytes: 1 << 20},
		Fetch: FetchConfig{
			MaxPosts:       100,
			TimeoutSeconds: 30,
			UseScraping:    true,
			Mirrors:        append([]string(nil), DefaultMirrors...),
			MaxPages:       3,
			UserAgent:      "Mozilla/5.0 (compatible; AuralyticsBot/1.0; +https://github.com/auralytics)",
			Browser:        BrowserConfig{Enabled: false, Headless: true, TimeoutSeconds: 60, BaseURL: "https://mobile.twitter.com"},
		},
		Scoring:  ScoringConfig{Strategy: "engagement"},
		LLM:      LLMConfig{Provider: "none", Model: "gemini-2.5-flash"},
		Cache:    CacheConfig{Capacity: 1024, TTLMinutes: 24 * 60},
		Storage:  StorageConfig{Driver: "sqlite", DBPath: "./auralytics.db", CardRetentionDays: 30},
		Schedule: ScheduleConfig{PruneSpec: "@every 10m", CardsSpec: "@daily"},
		LogLevel: "info",
	}
}

// LoadDotEnv reads .env.local then .env from dir without overriding variables
// already present in the process environment. Missing files are ignored.
func LoadDotEnv(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.BearerToken == "" {
		c.Credentials.BearerToken = firstEnv("X_BEARER_TOKEN", "TWITTER_BEARER_TOKEN")
	}
	if c.Credentials.ConsumerKey == "" {
		c.Credentials.ConsumerKey = os.Getenv("X_CONSUMER_KEY")
	}
	if c.Credentials.ConsumerSecret == "" {
		c.Credentials.ConsumerSecret = os.Getenv("X_CONSUMER_SECRET")
	}
	if c.Credentials.AccessToken == "" {
		c.Credentials.AccessToken = os.Getenv("X_ACCESS_TOKEN")
	}
	if c.Credentials.AccessSecret == "" {
		c.Credentials.AccessSecret = os.Getenv("X_ACCESS_SECRET")
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv("GOOGLE_GEMINI_API_KEY", "GEMINI_API_KEY")
	}
	if c.LLM.Provider == "" || c.LLM.Provider == "none" {
		if c.LLM.APIKey != "" {
			c.LLM.Provider = "gemini"
		}
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_TWEETS_ANALYSIS")); err == nil && v > 0 {
		c.Fetch.MaxPosts = v
	}
	if v := os.Getenv("USE_SCRAPING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Fetch.UseScraping = b
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Storage.DSN == "" {
		c.Storage.DSN = v
		if c.Storage.Driver == "" || c.Storage.Driver == "sqlite" {
			c.Storage.Driver = "postgres"
		}
	}
	if v := os.Getenv("AURALYTICS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AURALYTICS_API_KEYS"); v != "" && len(c.Server.APIKeys) == 0 {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				c.Server.APIKeys = append(c.Server.APIKeys, k)
			}
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Load reads YAML config from path on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default() with env applied.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
