package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreTypeS3    = "s3"
	StoreTypeLocal = "local"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Store    StoreConfig    `mapstructure:"store"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Purge    PurgeConfig    `mapstructure:"purge"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type StoreConfig struct {
	Type string `mapstructure:"type"`

	// AWS S3 and S3-compatible endpoints
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`

	// Local filesystem
	LocalPath string `mapstructure:"local_path"`

	KeyPrefix string `mapstructure:"key_prefix"`

	// Per-request deadlines for store calls; uploads get their own, longer bound.
	Timeout       time.Duration `mapstructure:"timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

type FeedConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	SearchQuery       string        `mapstructure:"search_query"`
	MaxResults        int           `mapstructure:"max_results"`
	SortBy            string        `mapstructure:"sort_by"`
	SortOrder         string        `mapstructure:"sort_order"`
	FilterLast24Hours bool          `mapstructure:"filter_last_24_hours"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type SyncConfig struct {
	MaxPayloadBytes int64         `mapstructure:"max_payload_bytes"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
}

type PurgeConfig struct {
	Prefix        string `mapstructure:"prefix"`
	OlderThanDays int    `mapstructure:"older_than_days"`
	Pattern       string `mapstructure:"pattern"`
	PageSize      int    `mapstructure:"page_size"`
	BatchSize     int    `mapstructure:"batch_size"`
	DryRun        bool   `mapstructure:"dry_run"`
}

type ScheduleConfig struct {
	Sync  string `mapstructure:"sync"`
	Purge string `mapstructure:"purge"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

const (
	// MaxPageSize is the largest page S3 returns from ListObjectsV2 and accepts in DeleteObjects.
	MaxPageSize = 1000
	// MaxFeedResults is the largest page the arXiv query API serves in one response.
	MaxFeedResults = 2000
)

var (
	validSortBy    = []string{"relevance", "lastUpdatedDate", "submittedDate"}
	validSortOrder = []string{"ascending", "descending"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arxivsync")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")

	v.SetDefault("store.type", StoreTypeS3)
	v.SetDefault("store.region", "us-east-1")
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.access_key", "")
	v.SetDefault("store.secret_key", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.use_path_style", false)
	v.SetDefault("store.local_path", "")
	v.SetDefault("store.key_prefix", "arxiv-papers")
	v.SetDefault("store.timeout", 30*time.Second)
	v.SetDefault("store.upload_timeout", 2*time.Minute)

	v.SetDefault("feed.base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("feed.search_query", `ti:"AI" AND cat:cs.AI`)
	v.SetDefault("feed.max_results", 200)
	v.SetDefault("feed.sort_by", "submittedDate")
	v.SetDefault("feed.sort_order", "descending")
	v.SetDefault("feed.filter_last_24_hours", false)
	v.SetDefault("feed.user_agent", "ArxivPDFFetcher/1.0")
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.requests_per_second", 0.33)

	v.SetDefault("sync.max_payload_bytes", 50*1024*1024)
	v.SetDefault("sync.download_timeout", 30*time.Second)
	v.SetDefault("sync.concurrency", 1)

	v.SetDefault("purge.prefix", "")
	v.SetDefault("purge.older_than_days", 0)
	v.SetDefault("purge.pattern", "")
	v.SetDefault("purge.page_size", MaxPageSize)
	v.SetDefault("purge.batch_size", MaxPageSize)
	v.SetDefault("purge.dry_run", false)

	v.SetDefault("schedule.sync", "0 0 6 * * *")
	v.SetDefault("schedule.purge", "")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", 0)

	v.SetDefault("metrics.addr", ":9090")
}

// Load reads configuration from the optional YAML file at path, a .env file in the
// working directory and ARXIVSYNC_* environment variables, in increasing precedence.
// The result is not validated; callers apply their overrides and then call ValidateFor.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARXIVSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.region", "ARXIVSYNC_STORE_REGION", "AWS_REGION"); err != nil {
		return nil, fmt.Errorf("failed to bind region: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Command names the sections a run depends on.
type Command string

const (
	CommandList  Command = "list"
	CommandSync  Command = "sync"
	CommandPurge Command = "purge"
	CommandServe Command = "serve"
)

// ValidateFor checks only the sections cmd uses, so list runs without store settings.
func (c *Config) ValidateFor(cmd Command) error {
	var checks []func() error
	switch cmd {
	case CommandList:
		checks = []func() error{c.Feed.Validate}
	case CommandSync:
		checks = []func() error{c.Store.Validate, c.Feed.Validate, c.Sync.Validate}
	case CommandPurge:
		checks = []func() error{c.Store.Validate, c.Purge.Validate}
	case CommandServe:
		checks = []func() error{c.Store.Validate, c.Feed.Validate, c.Sync.Validate, c.Purge.Validate}
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	return c.ValidateFor(CommandServe)
}

func (s SyncConfig) Validate() error {
	if s.MaxPayloadBytes <= 0 {
		return fmt.Errorf("sync.max_payload_bytes must be positive")
	}
	if s.DownloadTimeout <= 0 {
		return fmt.Errorf("sync.download_timeout must be positive")
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	return nil
}

func (s StoreConfig) Validate() error {
	switch s.Type {
	case StoreTypeS3:
		if s.Region == "" {
			return fmt.Errorf("store.region is required")
		}
		if s.Bucket == "" {
			return fmt.Errorf("store.bucket is required")
		}
		if s.Timeout <= 0 {
			return fmt.Errorf("store.timeout must be positive")
		}
		if s.UploadTimeout <= 0 {
			return fmt.Errorf("store.upload_timeout must be positive")
		}
	case StoreTypeLocal:
		if s.LocalPath == "" {
			return fmt.Errorf("store.local_path is required for local store")
		}
	default:
		return fmt.Errorf("unknown store.type: %q", s.Type)
	}
	return nil
}

func (f FeedConfig) Validate() error {
	if f.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if f.MaxResults < 1 || f.MaxResults > MaxFeedResults {
		return fmt.Errorf("feed.max_results must be between 1 and %d", MaxFeedResults)
	}
	if !contains(validSortBy, f.SortBy) {
		return fmt.Errorf("feed.sort_by must be one of %v", validSortBy)
	}
	if !contains(validSortOrder, f.SortOrder) {
		return fmt.Errorf("feed.sort_order must be one of %v", validSortOrder)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	return nil
}

func (p PurgeConfig) Validate() error {
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return fmt.Errorf("purge.page_size must be between 1 and %d", MaxPageSize)
	}
	if p.BatchSize < 1 || p.BatchSize > MaxPageSize {
		return fmt.Errorf("purge.batch_size must be between 1 and %d", MaxPageSize)
	}
	if p.OlderThanDays < 0 {
		return fmt.Errorf("purge.older_than_days must not be negative")
	}
	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("purge.pattern: %w", err)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
