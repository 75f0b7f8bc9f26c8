// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bolpress/newsharvest/internal/extract"
	"github.com/bolpress/newsharvest/internal/planner"
)

// Fetch strategies selectable per source.
const (
	StrategyPlain     = "plain"
	StrategyChallenge = "challenge"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig  `mapstructure:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	DB      DBConfig       `mapstructure:"db"`
	Archive ArchiveConfig  `mapstructure:"archive"`
	PubSub  PubSubConfig   `mapstructure:"pubsub"`
	Harvest HarvestConfig  `mapstructure:"harvest"`
	Sources []SourceConfig `mapstructure:"sources"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the operational HTTP surface. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig controls access to the article database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// ArchiveConfig selects where raw page snapshots go. Backend "" disables
// archiving, "gcs" uses a bucket, "local" a directory.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for downstream event publishing. An empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// HarvestConfig governs pipeline behavior shared by all sources.
type HarvestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// FetchConfig holds per-source fetch knobs.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	DelayMinMs     int    `mapstructure:"delay_min_ms"`
	DelayMaxMs     int    `mapstructure:"delay_max_ms"`
	// Challenge strategy only.
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector      string `mapstructure:"wait_selector"`
	MaxParallel       int    `mapstructure:"max_parallel"`
}

// AgencyAliasConfig canonicalizes one known agency name variant.
type AgencyAliasConfig struct {
	Prefix    string `mapstructure:"prefix"`
	Squash    string `mapstructure:"squash"`
	Canonical string `mapstructure:"canonical"`
}

// SourceConfig describes one outlet: where its listings live, how articles
// are located and extracted, and how raw values normalize.
type SourceConfig struct {
	Name       string                       `mapstructure:"name"`
	BaseURL    string                       `mapstructure:"base_url"`
	Table      string                       `mapstructure:"table"`
	Strategy   string                       `mapstructure:"strategy"`
	Sections   []string                     `mapstructure:"sections"`
	PageBudget int                          `mapstructure:"page_budget"`
	Pagination planner.Pagination           `mapstructure:"pagination"`
	Listing    planner.Listing              `mapstructure:"listing"`
	Selectors  map[string]extract.FieldRule `mapstructure:"selectors"`
	BodyMarker string                       `mapstructure:"body_marker"`
	// SectionDepth > 0 takes that many leading URL path segments as the
	// section; <= 0 takes everything but the trailing slug.
	SectionDepth       int                 `mapstructure:"section_depth"`
	DateRules          []string            `mapstructure:"date_rules"`
	AgencyReplacements map[string]string   `mapstructure:"agency_replacements"`
	AgencyAliases      []AgencyAliasConfig `mapstructure:"agency_aliases"`
	Columns            []string            `mapstructure:"columns"`
	Fetch              FetchConfig         `mapstructure:"fetch"`
}

// Timeout returns the per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// DelayMin returns the minimum inter-request delay.
func (f FetchConfig) DelayMin() time.Duration {
	return time.Duration(f.DelayMinMs) * time.Millisecond
}

// DelayMax returns the maximum inter-request delay.
func (f FetchConfig) DelayMax() time.Duration {
	return time.Duration(f.DelayMaxMs) * time.Millisecond
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("logging.development", false)
	v.SetDefault("harvest.concurrency", 1)
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if c.Archive.Backend != "" && c.Archive.Backend != "gcs" && c.Archive.Backend != "local" {
		return fmt.Errorf("archive.backend must be empty, %q or %q", "gcs", "local")
	}
	if c.Archive.Backend == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required for the gcs backend")
	}
	if c.Archive.Backend == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir is required for the local backend")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic is required when pubsub.project_id is set")
	}
	for i, src := range c.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(s.Sections) == 0 {
		return fmt.Errorf("sections are required")
	}
	if s.PageBudget <= 0 {
		return fmt.Errorf("page_budget must be > 0")
	}
	switch s.Strategy {
	case "", StrategyPlain, StrategyChallenge:
	default:
		return fmt.Errorf("unknown fetch strategy %q", s.Strategy)
	}
	if s.Listing.LinkSelector == "" {
		return fmt.Errorf("listing.link_selector is required")
	}
	if len(s.Selectors) == 0 {
		return fmt.Errorf("selectors are required")
	}
	return nil
}
