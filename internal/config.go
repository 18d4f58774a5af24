package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/norandom/blogd/internal/ingest"
	"github.com/norandom/blogd/internal/logging"
	"github.com/norandom/blogd/internal/ratelimit"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Content   ContentConfig     `yaml:"content"`
	Ingest    IngestConfig      `yaml:"ingest"`
	Cache     CacheConfig       `yaml:"cache"`
	Search    SearchConfig      `yaml:"search"`
	Watch     WatchConfig       `yaml:"watch"`
	Refresh   RefreshConfig     `yaml:"refresh"`
	RateLimit RateLimitConfig   `yaml:"ratelimit"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.Refresh.Validate(); err != nil {
		return err
	}
	return c.RateLimit.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level     `yaml:"log_level"`
	Log      logging.Config `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig holds the content directory layout and parsing knobs.
//
// Path is the root scanned for Markdown posts. Tenants is an optional
// whitelist of accepted tenant labels; when empty any label is accepted.
// Posts without a tenant label, or with one outside the whitelist, fall
// back to DefaultTenant.
type ContentConfig struct {
	Path                 string   `yaml:"path"`
	DefaultTenant        string   `yaml:"default_tenant"`
	Tenants              []string `yaml:"tenants"`
	ExcerptLength        int      `yaml:"excerpt_length"`
	AttachmentExtensions []string `yaml:"attachment_extensions"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.DefaultTenant, validation.Required),
		validation.Field(&c.ExcerptLength, validation.Min(1), validation.Max(10000)),
	); err != nil {
		return err
	}
	for _, ext := range c.AttachmentExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("content: attachment extension %q must start with a dot", ext)
		}
	}
	return nil
}

// IngestConfig bounds the parser worker pool.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// CacheConfig controls the stats cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	)
}

// SearchConfig bounds query handling in the search index.
type SearchConfig struct {
	MinQueryLength int `yaml:"min_query_length"`
	MaxResults     int `yaml:"max_results"`
	SuggestLimit   int `yaml:"suggest_limit"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinQueryLength, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&c.MaxResults, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.SuggestLimit, validation.Required, validation.Min(1), validation.Max(50)),
	)
}

// WatchConfig controls filesystem watching of the content directory.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond), validation.Max(time.Minute)),
	)
}

// RefreshConfig controls periodic full rescans. A zero interval disables
// the ticker; the watcher and the refresh endpoint still work.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the refresh configuration.
func (c *RefreshConfig) Validate() error {
	if c.Interval == 0 {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Second)),
	)
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Requests, validation.Required, validation.Min(1)),
		validation.Field(&c.Window, validation.Required, validation.Min(time.Second)),
	)
}

// limiterConfig converts the section into the ratelimit package's config.
func (c *RateLimitConfig) limiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled:  c.Enabled,
		Requests: c.Requests,
		Window:   c.Window,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Log: logging.Config{
				Format: logging.FormatJSON,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Path:                 "./posts",
			DefaultTenant:        "shared",
			ExcerptLength:        200,
			AttachmentExtensions: ingest.DefaultAttachmentExts,
		},
		Ingest: IngestConfig{
			Workers: ingest.DefaultWorkers,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Search: SearchConfig{
			MinQueryLength: 2,
			MaxResults:     100,
			SuggestLimit:   10,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:  false,
			Requests: 100,
			Window:   time.Minute,
		},
	}
}
