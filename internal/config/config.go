// Package config loads and validates rewriter configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Fetch strategies understood by FetchConfig.Strategy.
const (
	StrategyStatic   = "static"
	StrategyRendered = "rendered"
	StrategyAuto     = "auto"
)

// Export backends understood by ExportConfig.Backend.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Listing   ListingConfig   `mapstructure:"listing"`
	Search    SearchConfig    `mapstructure:"search"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Rewrite   RewriteConfig   `mapstructure:"rewrite"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Export    ExportConfig    `mapstructure:"export"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int      `mapstructure:"port"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	ProcessTimeoutSeconds int      `mapstructure:"process_timeout_seconds"`
	CORSOrigins           []string `mapstructure:"cors_origins"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the outbound browser-like requests.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	AcceptLanguage string  `mapstructure:"accept_language"`
	Referer        string  `mapstructure:"referer"`
	MaxRedirects   int     `mapstructure:"max_redirects"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// FetchConfig selects how pages are fetched: static HTML, rendered DOM, or auto promotion.
type FetchConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel     int `mapstructure:"max_parallel"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int `mapstructure:"promotion_threshold"`
}

// ExtractorConfig toggles optional extraction passes.
type ExtractorConfig struct {
	ReadabilityFallback bool `mapstructure:"readability_fallback"`
}

// ListingConfig describes the single source site.
type ListingConfig struct {
	URL            string `mapstructure:"url"`
	Origin         string `mapstructure:"origin"`
	PathSegment    string `mapstructure:"path_segment"`
	MaxArticles    int    `mapstructure:"max_articles"`
	DelayMs        int    `mapstructure:"delay_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SearchConfig controls the source finder cascade.
type SearchConfig struct {
	UpstreamEnabled bool   `mapstructure:"upstream_enabled"`
	Extended        bool   `mapstructure:"extended"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	ScholarURL      string `mapstructure:"scholar_url"`
	DuckDuckGoURL   string `mapstructure:"duckduckgo_url"`
	NewsURL         string `mapstructure:"news_url"`
}

// ProviderConfig configures one LLM provider. An empty APIKey disables the provider.
type ProviderConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	BaseURL        string   `mapstructure:"base_url"`
	Models         []string `mapstructure:"models"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// LLMConfig lists providers in cascade order.
type LLMConfig struct {
	Order       []string       `mapstructure:"order"`
	Temperature float64        `mapstructure:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
	Groq        ProviderConfig `mapstructure:"groq"`
	Anthropic   ProviderConfig `mapstructure:"anthropic"`
}

// RewriteConfig controls the rewrite orchestrator.
type RewriteConfig struct {
	SourceDelayMs   int  `mapstructure:"source_delay_ms"`
	ExcerptChars    int  `mapstructure:"excerpt_chars"`
	SanitizeHTML    bool `mapstructure:"sanitize_html"`
	ClaimTTLSeconds int  `mapstructure:"claim_ttl_seconds"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig enables the distributed claim lock when URL is set.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ExportConfig sets where rendered article exports are written.
type ExportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for lifecycle notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ScheduleConfig holds optional cron specs evaluated by the serve command.
type ScheduleConfig struct {
	ScrapeCron  string `mapstructure:"scrape_cron"`
	ProcessCron string `mapstructure:"process_cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from .env, disk and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("REWRITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.process_timeout_seconds", 300)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("http.accept_language", "en-US,en;q=0.9")
	v.SetDefault("http.referer", "https://www.google.com/")
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("http.per_host_rps", 0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("fetch.strategy", StrategyStatic)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("extractor.readability_fallback", false)
	v.SetDefault("listing.url", "https://beyondchats.com/blogs/")
	v.SetDefault("listing.origin", "https://beyondchats.com")
	v.SetDefault("listing.path_segment", "/blogs/")
	v.SetDefault("listing.max_articles", 5)
	v.SetDefault("listing.delay_ms", 1000)
	v.SetDefault("listing.timeout_seconds", 30)
	v.SetDefault("search.upstream_enabled", true)
	v.SetDefault("search.extended", true)
	v.SetDefault("search.timeout_seconds", 10)
	v.SetDefault("search.scholar_url", "https://scholar.google.com")
	v.SetDefault("search.duckduckgo_url", "https://lite.duckduckgo.com")
	v.SetDefault("search.news_url", "https://news.google.com")
	v.SetDefault("llm.order", []string{"gemini", "groq", "anthropic"})
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("llm.gemini.models", []string{"gemini-2.5-flash", "gemini-1.5-pro"})
	v.SetDefault("llm.gemini.timeout_seconds", 60)
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.groq.models",
		[]string{"llama-3.3-70b-versatile", "llama-3.1-70b-versatile", "mixtral-8x7b-32768"})
	v.SetDefault("llm.groq.timeout_seconds", 60)
	v.SetDefault("llm.anthropic.models", []string{})
	v.SetDefault("llm.anthropic.timeout_seconds", 60)
	v.SetDefault("rewrite.source_delay_ms", 1500)
	v.SetDefault("rewrite.excerpt_chars", 2000)
	v.SetDefault("rewrite.sanitize_html", true)
	v.SetDefault("rewrite.claim_ttl_seconds", 600)
	v.SetDefault("redis.key_prefix", "rewriter:claim:")
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.backend", BackendMemory)
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("logging.development", true)
}

// bindAliases lets the conventional unprefixed variables override their config keys.
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"server.port":           {"REWRITER_SERVER_PORT", "PORT"},
		"db.dsn":                {"REWRITER_DB_DSN", "DATABASE_URL"},
		"redis.url":             {"REWRITER_REDIS_URL", "REDIS_URL"},
		"llm.gemini.api_key":    {"REWRITER_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"llm.groq.api_key":      {"REWRITER_LLM_GROQ_API_KEY", "GROQ_API_KEY"},
		"llm.anthropic.api_key": {"REWRITER_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Fetch.Strategy {
	case StrategyStatic:
	case StrategyRendered, StrategyAuto:
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when fetch.strategy is %q", c.Fetch.Strategy)
		}
	default:
		return fmt.Errorf("fetch.strategy %q is not one of static, rendered, auto", c.Fetch.Strategy)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Listing.URL == "" || c.Listing.Origin == "" {
		return fmt.Errorf("listing.url and listing.origin are required")
	}
	if c.Listing.MaxArticles <= 0 {
		return fmt.Errorf("listing.max_articles must be > 0")
	}
	if c.Export.Enabled {
		switch c.Export.Backend {
		case BackendMemory:
		case BackendLocal:
			if c.Export.LocalDir == "" {
				return fmt.Errorf("export.local_dir is required for the local backend")
			}
		case BackendGCS:
			if c.Export.GCSBucket == "" {
				return fmt.Errorf("export.gcs_bucket is required for the gcs backend")
			}
		default:
			return fmt.Errorf("export.backend %q is not one of memory, local, gcs", c.Export.Backend)
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// HTTPTimeout converts the outbound request timeout to a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ClaimTTL bounds how long a processing claim may be held.
func (c Config) ClaimTTL() time.Duration {
	return time.Duration(c.Rewrite.ClaimTTLSeconds) * time.Second
}

// Millis converts a millisecond knob into a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second knob into a duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
