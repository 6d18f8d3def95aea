// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-range-crawler/internal/extract"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Archive and publish drivers. DriverNone disables the side effect.
const (
	DriverNone    = "none"
	DriverMemory  = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
	PublishKafka  = "kafka"
	PublishPubSub = "pubsub"
)

// Retry strategies.
const (
	RetryFixed       = "fixed"
	RetryExponential = "exponential"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Extract ExtractConfig `mapstructure:"extract"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Publish PublishConfig `mapstructure:"publish"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig names the site being enumerated. Page URLs are BaseURL + id.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CrawlerConfig sets the id range and worker count. Lower <= 0 derives the
// lower bound from the store.
type CrawlerConfig struct {
	Workers          int           `mapstructure:"workers"`
	Lower            int64         `mapstructure:"lower"`
	Upper            int64         `mapstructure:"upper"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// HTTPConfig configures the page transport.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// RetryConfig configures how transient fetch failures are retried.
// MaxAttempts 0 retries forever.
type RetryConfig struct {
	Strategy    string        `mapstructure:"strategy"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Jitter      time.Duration `mapstructure:"jitter"`
}

// ExtractConfig holds the CSS selectors that locate the title.
type ExtractConfig struct {
	RegionSelector  string `mapstructure:"region_selector"`
	HeadingSelector string `mapstructure:"heading_selector"`
	LinkSelector    string `mapstructure:"link_selector"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Table    string         `mapstructure:"table"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path       string `mapstructure:"path"`
	QueueDepth int    `mapstructure:"queue_depth"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

// ArchiveConfig configures optional raw page archiving.
type ArchiveConfig struct {
	Driver      string           `mapstructure:"driver"`
	Prefix      string           `mapstructure:"prefix"`
	ContentType string           `mapstructure:"content_type"`
	Local       LocalArchiveConf `mapstructure:"local"`
	GCS         GCSArchiveConf   `mapstructure:"gcs"`
}

// LocalArchiveConf configures the filesystem archive.
type LocalArchiveConf struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSArchiveConf configures the GCS archive.
type GCSArchiveConf struct {
	Bucket string `mapstructure:"bucket"`
}

// PublishConfig configures optional record event publishing.
type PublishConfig struct {
	Driver string       `mapstructure:"driver"`
	Topic  string       `mapstructure:"topic"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	PubSub PubSubConfig `mapstructure:"pubsub"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// PubSubConfig configures the Pub/Sub publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// MetricsConfig controls the ops HTTP endpoint; an empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Option customizes Load.
type Option func(*viper.Viper) error

// WithFlag binds a command-line flag to a config key. The flag only wins when set.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
		return nil
	}
}

// Load builds a Config from defaults, an optional file, the environment and bound flags.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return Config{}, err
		}
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
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("source.base_url", "")
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.lower", 0)
	v.SetDefault("crawler.upper", 0)
	v.SetDefault("crawler.progress_interval", "30s")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", "rangecrawler/1.0")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("retry.strategy", RetryFixed)
	v.SetDefault("retry.delay", crawler.DefaultRetryDelay.String())
	v.SetDefault("retry.max_delay", "10m")
	v.SetDefault("retry.max_attempts", 0)
	v.SetDefault("retry.jitter", "0s")
	v.SetDefault("extract.region_selector", extract.DefaultRegionSelector)
	v.SetDefault("extract.heading_selector", extract.DefaultHeadingSelector)
	v.SetDefault("extract.link_selector", extract.DefaultLinkSelector)
	v.SetDefault("store.driver", StoreSQLite)
	v.SetDefault("store.table", "records")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_conns", 8)
	v.SetDefault("store.sqlite.path", "data/titles.db")
	v.SetDefault("store.sqlite.queue_depth", 64)
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.prefix", "rangecrawler")
	v.SetDefault("archive.driver", DriverNone)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("archive.local.base_dir", "data/archive")
	v.SetDefault("archive.gcs.bucket", "")
	v.SetDefault("publish.driver", DriverNone)
	v.SetDefault("publish.topic", "records")
	v.SetDefault("publish.kafka.brokers", []string{})
	v.SetDefault("publish.pubsub.project_id", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits. The id range is
// checked per run by RunConfig.
func (c Config) Validate() error {
	if err := validateBaseURL(c.Source.BaseURL); err != nil {
		return err
	}
	if c.Crawler.Workers <= 0 {
		return errors.New("crawler.workers must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return errors.New("http.requests_per_second must be >= 0")
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}
	return c.Publish.validate()
}

func validateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("source.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("source.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.base_url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("source.base_url has no host: %q", raw)
	}
	return nil
}

func (r RetryConfig) validate() error {
	switch r.Strategy {
	case RetryFixed, RetryExponential:
	default:
		return fmt.Errorf("retry.strategy must be %q or %q, got %q", RetryFixed, RetryExponential, r.Strategy)
	}
	if r.Delay <= 0 {
		return errors.New("retry.delay must be > 0")
	}
	if r.MaxAttempts < 0 {
		return errors.New("retry.max_attempts must be >= 0")
	}
	if r.Jitter < 0 {
		return errors.New("retry.jitter must be >= 0")
	}
	return nil
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(s.SQLite.Path) == "" {
			return errors.New("store.sqlite.path is required for the sqlite store")
		}
	case StorePostgres:
		if strings.TrimSpace(s.Postgres.DSN) == "" {
			return errors.New("store.postgres.dsn is required for the postgres store")
		}
	case StoreRedis:
		if strings.TrimSpace(s.Redis.Addr) == "" {
			return errors.New("store.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", s.Driver)
	}
	return nil
}

func (a ArchiveConfig) validate() error {
	switch a.Driver {
	case "", DriverNone, DriverMemory:
	case ArchiveLocal:
		if strings.TrimSpace(a.Local.BaseDir) == "" {
			return errors.New("archive.local.base_dir is required for the local archive")
		}
	case ArchiveGCS:
		if strings.TrimSpace(a.GCS.Bucket) == "" {
			return errors.New("archive.gcs.bucket is required for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown archive.driver %q", a.Driver)
	}
	return nil
}

func (p PublishConfig) validate() error {
	switch p.Driver {
	case "", DriverNone:
		return nil
	case DriverMemory:
	case PublishKafka:
		if len(p.Kafka.Brokers) == 0 {
			return errors.New("publish.kafka.brokers is required for the kafka publisher")
		}
	case PublishPubSub:
		if strings.TrimSpace(p.PubSub.ProjectID) == "" {
			return errors.New("publish.pubsub.project_id is required for the pubsub publisher")
		}
	default:
		return fmt.Errorf("unknown publish.driver %q", p.Driver)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return errors.New("publish.topic is required when publishing is enabled")
	}
	return nil
}

// RunConfig converts the crawler section into run parameters.
func (c Config) RunConfig() (crawler.RunConfig, error) {
	if c.Crawler.Upper <= 0 {
		return crawler.RunConfig{}, fmt.Errorf("%w: crawler.upper must be > 0", crawler.ErrInvalidConfig)
	}
	rc := crawler.RunConfig{Upper: c.Crawler.Upper, Workers: c.Crawler.Workers}
	if c.Crawler.Lower > 0 {
		lower := c.Crawler.Lower
		rc.Lower = &lower
	}
	return rc, nil
}

// RetryPolicy builds the configured retry policy.
func (c Config) RetryPolicy() crawler.RetryPolicy {
	if c.Retry.Strategy == RetryExponential {
		return crawler.NewExponentialRetryPolicy(c.Retry.Delay, c.Retry.MaxDelay, c.Retry.MaxAttempts)
	}
	return crawler.NewFixedRetryPolicy(c.Retry.Delay, c.Retry.MaxAttempts, c.Retry.Jitter)
}

// Selectors returns the extraction selectors.
func (c Config) Selectors() extract.Selectors {
	return extract.Selectors{
		Region:  c.Extract.RegionSelector,
		Heading: c.Extract.HeadingSelector,
		Link:    c.Extract.LinkSelector,
	}
}
