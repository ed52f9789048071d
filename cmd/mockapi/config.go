package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oxidecomputer/console-sub002/internal/api"
	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/events"
	"github.com/oxidecomputer/console-sub002/internal/observability"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

// Config holds the server configuration.
type Config struct {
	Addr            string        `yaml:"addr"`
	Latency         time.Duration `yaml:"latency"`
	TransitionDelay time.Duration `yaml:"transition_delay"`
	// FixturesPath replaces the embedded fixture set with a YAML file.
	FixturesPath   string              `yaml:"fixtures"`
	RateLimit      api.RateLimitConfig `yaml:"rate_limit"`
	TrustedProxies string              `yaml:"trusted_proxies"`
	CSRF           bool                `yaml:"csrf"`

	// AuditDSN selects a persistent audit log. Its meaning depends on the
	// build: a SQLite DSN with -tags sqlite, a Postgres URL with -tags
	// postgres. Empty keeps the log in memory.
	AuditDSN       string                `yaml:"audit_dsn"`
	AuditRetention audit.RetentionPolicy `yaml:"audit_retention"`

	NATSURL    string `yaml:"nats_url"`
	NATSPrefix string `yaml:"nats_subject_prefix"`

	Metrics observability.MetricsConfig `yaml:"metrics"`
	Log     observability.Config        `yaml:"log"`
}

// defaultConfig reads the environment on top of built-in defaults.
func defaultConfig() Config {
	cfg := Config{
		Addr:            envOr("MOCKAPI_ADDR", ":12220"),
		TransitionDelay: storage.DefaultTransitionDelay,
		FixturesPath:    os.Getenv("MOCKAPI_FIXTURES"),
		RateLimit:       api.DefaultRateLimitConfig(),
		TrustedProxies:  os.Getenv("MOCKAPI_TRUSTED_PROXIES"),
		CSRF:            envBool("MOCKAPI_CSRF", false),
		AuditDSN:        os.Getenv("MOCKAPI_AUDIT_DSN"),
		AuditRetention:  audit.DefaultRetentionPolicy(),
		NATSURL:         os.Getenv("MOCKAPI_NATS_URL"),
		NATSPrefix:      envOr("MOCKAPI_NATS_PREFIX", events.DefaultSubjectPrefix),
		Metrics:         observability.MetricsConfigFromEnv(),
		Log:             observability.ConfigFromEnv(),
	}
	if p := os.Getenv("PORT"); p != "" {
		cfg.Addr = ":" + p
	}
	cfg.Latency = envDuration("MOCKAPI_LATENCY", 0)
	cfg.TransitionDelay = envDuration("MOCKAPI_TRANSITION_DELAY", cfg.TransitionDelay)
	cfg.AuditRetention.MaxAge = envDuration("MOCKAPI_AUDIT_MAX_AGE", cfg.AuditRetention.MaxAge)
	return cfg
}

// loadConfig builds the configuration: environment defaults, then the YAML
// file named by -config, then any flags given explicitly.
func loadConfig(args []string, stderr io.Writer) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("mockapi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", os.Getenv("MOCKAPI_CONFIG"), "YAML config file")
	addr := fs.String("addr", cfg.Addr, "listen address (host:port)")
	latency := fs.Duration("latency", cfg.Latency, "artificial delay added to every API response")
	transition := fs.Duration("transition-delay", cfg.TransitionDelay, "time instances spend in transitional run states")
	fixturesPath := fs.String("fixtures", cfg.FixturesPath, "fixture YAML file (default: embedded set)")
	csrf := fs.Bool("csrf", cfg.CSRF, "require CSRF tokens for cookie-selected users")
	auditDSN := fs.String("audit-dsn", cfg.AuditDSN, "persistent audit log DSN")
	natsURL := fs.String("nats-url", cfg.NATSURL, "NATS server for mutation events")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "latency":
			cfg.Latency = *latency
		case "transition-delay":
			cfg.TransitionDelay = *transition
		case "fixtures":
			cfg.FixturesPath = *fixturesPath
		case "csrf":
			cfg.CSRF = *csrf
		case "audit-dsn":
			cfg.AuditDSN = *auditDSN
		case "nats-url":
			cfg.NATSURL = *natsURL
		}
	})

	if cfg.TrustedProxies != "" {
		proxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return cfg, fmt.Errorf("trusted proxies: %w", err)
		}
		cfg.RateLimit.TrustedProxies = proxies
	}
	if cfg.Latency < 0 || cfg.TransitionDelay < 0 {
		return cfg, fmt.Errorf("latency and transition delay must not be negative")
	}
	if cfg.Log.Output == nil {
		cfg.Log.Output = os.Stdout
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// envDuration accepts a Go duration ("250ms") or a bare number of
// milliseconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
