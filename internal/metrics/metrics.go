package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_command_runs_total",
		Help: "Total CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_command_errors_total",
		Help: "Total CLI command errors",
	}, []string{"command"})
	Analyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_analyses_total",
		Help: "Completed analyses by mode and scoring strategy",
	}, []string{"mode", "strategy"})
	FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_fetch_total",
		Help: "Fetch strategy attempts by source and outcome",
	}, []string{"source", "outcome"})
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auralytics_fetch_duration_seconds",
		Help:    "Fetch strategy duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	GeneratorFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auralytics_generator_fallbacks_total",
		Help: "Generator failures that fell back to heuristic scoring",
	})
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auralytics_cache_entries",
		Help: "Analyses currently held in the cache",
	})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auralytics_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(CommandRuns, CommandErrors, Analyses, FetchAttempts, FetchDuration,
		APIRetries, GeneratorFallbacks, CacheEntries, HTTPRequests)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }

// IncAnalysis counts a finished analysis.
func IncAnalysis(mode, strategy string) { Analyses.WithLabelValues(mode, strategy).Inc() }

// ObserveFetch records one fetch strategy attempt and its duration.
func ObserveFetch(source, outcome string, start time.Time) {
	FetchAttempts.WithLabelValues(source, outcome).Inc()
	FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncGeneratorFallback() { GeneratorFallbacks.Inc() }

func SetCacheEntries(n int) { CacheEntries.Set(float64(n)) }

func IncHTTPRequest(route string, code string) { HTTPRequests.WithLabelValues(route, code).Inc() }
