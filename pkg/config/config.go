package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/fetcher"
	"github.com/umputun/eventscope/pkg/quality"
	"github.com/umputun/eventscope/pkg/strategy"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:eventscope.db?cache=shared&mode=rwc&_txlock=immediate,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule struct {
		Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Run due crawls periodically"`
		Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=How often due sources are checked"`
	} `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`

	Crawl        CrawlConfig     `yaml:"crawl" json:"crawl" jsonschema:"description=Crawl pipeline configuration"`
	Fetch        FetchConfig     `yaml:"fetch" json:"fetch" jsonschema:"description=HTTP retrieval configuration"`
	Dates        DatesConfig     `yaml:"dates" json:"dates" jsonschema:"description=Date resolution configuration"`
	Quality      QualityConfig   `yaml:"quality" json:"quality" jsonschema:"description=Scoring and deduplication configuration"`
	Resolver     ResolverConfig  `yaml:"resolver" json:"resolver" jsonschema:"description=Field resolution configuration"`
	Sources      []SourceConfig  `yaml:"sources" json:"sources" jsonschema:"description=Event listing sources"`
	SiteProfiles []ProfileConfig `yaml:"site_profiles" json:"site_profiles" jsonschema:"description=Source-specific extraction profiles"`
}

// CrawlConfig holds crawl pipeline settings
type CrawlConfig struct {
	Workers            int           `yaml:"workers" json:"workers" jsonschema:"default=4,minimum=1,description=Sources crawled concurrently"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=3m,description=Timeout of a whole crawl of one source"`
	MaxPages           int           `yaml:"max_pages" json:"max_pages" jsonschema:"default=10,minimum=1,description=Page cap of paginated sources"`
	MaxHops            int           `yaml:"max_hops" json:"max_hops" jsonschema:"default=5,minimum=1,description=Load-more hop cap of infinite scroll sources"`
	PageSize           int           `yaml:"page_size" json:"page_size" jsonschema:"default=20,minimum=1,description=Listing size assumed by offset pagination"`
	MinBlockText       int           `yaml:"min_block_text" json:"min_block_text" jsonschema:"default=30,description=Minimum text length of a candidate block"`
	MaxBlockText       int           `yaml:"max_block_text" json:"max_block_text" jsonschema:"default=4000,description=Maximum text length of a candidate block"`
	EnrichDescriptions bool          `yaml:"enrich_descriptions" json:"enrich_descriptions" jsonschema:"default=false,description=Fill empty descriptions from event detail pages"`
	EnrichLimit        int           `yaml:"enrich_limit" json:"enrich_limit" jsonschema:"default=10,description=Maximum detail pages fetched per run"`
	EnrichMaxLength    int           `yaml:"enrich_max_length" json:"enrich_max_length" jsonschema:"default=1000,description=Maximum description length taken from a detail page"`
}

// FetchConfig holds retrieval settings
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=20s,description=Timeout of a single request"`
	MinDelay     time.Duration `yaml:"min_delay" json:"min_delay" jsonschema:"default=300ms,description=Minimum delay between requests to the same host"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay" jsonschema:"default=1.5s,description=Maximum delay between requests to the same host"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes" jsonschema:"default=10485760,description=Maximum response body size"`
	UserAgents   []string      `yaml:"user_agents" json:"user_agents" jsonschema:"description=User agents to rotate, built-in browser set if empty"`
	Retry        RetryConfig   `yaml:"retry" json:"retry" jsonschema:"description=Retry policy for transient failures"`
}

// RetryConfig holds retry policy settings
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts" jsonschema:"default=4,minimum=1,description=Total attempts including the first one"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay" jsonschema:"default=500ms,description=Delay before the second attempt"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay" jsonschema:"default=20s,description=Cap of the exponential delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier" jsonschema:"default=2.0,minimum=1,description=Delay growth factor"`
	Jitter       float64       `yaml:"jitter" json:"jitter" jsonschema:"default=0.3,minimum=0,maximum=1,description=Random delay spread as a fraction"`
	Cooldown429  time.Duration `yaml:"cooldown_429" json:"cooldown_429" jsonschema:"default=30s,description=Forced wait after a 429 response"`
	NonRetryable []int         `yaml:"non_retryable" json:"non_retryable" jsonschema:"description=Status codes attempted only once"`
}

// DatesConfig holds date resolution settings
type DatesConfig struct {
	Timezone       string        `yaml:"timezone" json:"timezone" jsonschema:"default=UTC,description=Zone of dates without offset"`
	PastThreshold  time.Duration `yaml:"past_threshold" json:"past_threshold" jsonschema:"default=24h,description=Events starting earlier are stale"`
	DefaultHorizon time.Duration `yaml:"default_horizon" json:"default_horizon" jsonschema:"default=336h,description=Placeholder distance when only a vague date is known"`
	AllowFallback  bool          `yaml:"allow_fallback" json:"allow_fallback" jsonschema:"default=true,description=Assign placeholder dates instead of rejecting"`
}

// QualityConfig holds scoring and dedup settings
type QualityConfig struct {
	Floor           int           `yaml:"floor" json:"floor" jsonschema:"default=45,minimum=0,maximum=100,description=Events scoring below are dropped"`
	DedupSimilarity float64       `yaml:"dedup_similarity" json:"dedup_similarity" jsonschema:"default=0.92,minimum=0,maximum=1,description=Title similarity of duplicates"`
	DedupWindow     time.Duration `yaml:"dedup_window" json:"dedup_window" jsonschema:"default=24h,description=Maximum start distance of duplicates"`
	Weights         WeightsConfig `yaml:"weights" json:"weights" jsonschema:"description=Confidence score components"`
}

// WeightsConfig holds confidence score components
type WeightsConfig struct {
	Title         int `yaml:"title" json:"title" jsonschema:"default=20"`
	Description   int `yaml:"description" json:"description" jsonschema:"default=15"`
	DateConfirmed int `yaml:"date_confirmed" json:"date_confirmed" jsonschema:"default=30"`
	DateFallback  int `yaml:"date_fallback" json:"date_fallback" jsonschema:"default=5"`
	Location      int `yaml:"location" json:"location" jsonschema:"default=15"`
	URL           int `yaml:"url" json:"url" jsonschema:"default=10"`
	Price         int `yaml:"price" json:"price" jsonschema:"default=5"`
	Structured    int `yaml:"structured" json:"structured" jsonschema:"default=10"`
}

// ResolverConfig holds field resolution settings
type ResolverConfig struct {
	Denylist       []string `yaml:"denylist" json:"denylist" jsonschema:"description=Extra titles that are never event titles"`
	Gazetteer      []string `yaml:"gazetteer" json:"gazetteer" jsonschema:"description=Known venue names"`
	MaxDescription int      `yaml:"max_description" json:"max_description" jsonschema:"default=1000,description=Maximum description length"`
}

// SourceConfig defines a configured source
type SourceConfig struct {
	Name         string        `yaml:"name" json:"name" jsonschema:"description=Display name, url if empty"`
	URL          string        `yaml:"url" json:"url" jsonschema:"required,description=Listing or feed url"`
	Kind         string        `yaml:"kind" json:"kind" jsonschema:"enum=page,enum=feed,default=page,description=Source kind"`
	Strategy     string        `yaml:"strategy" json:"strategy" jsonschema:"description=Strategy hint bypassing detection"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=6h,description=Minimum time between crawls"`
	Disabled     bool          `yaml:"disabled" json:"disabled" jsonschema:"default=false,description=Never crawl this source"`
}

// ProfileConfig defines a source-specific extraction profile
type ProfileConfig struct {
	Name        string         `yaml:"name" json:"name" jsonschema:"required,description=Profile id"`
	Domains     []string       `yaml:"domains" json:"domains" jsonschema:"required,description=Host substrings the profile applies to"`
	Strategy    string         `yaml:"strategy" json:"strategy" jsonschema:"default=static,description=Underlying retrieval strategy"`
	Blocks      string         `yaml:"blocks" json:"blocks" jsonschema:"description=CSS selector of event blocks"`
	Fields      FieldSelectors `yaml:"fields" json:"fields" jsonschema:"description=CSS selectors per field"`
	DateLayouts []string       `yaml:"date_layouts" json:"date_layouts" jsonschema:"description=Go time layouts of site-specific date text"`
}

// FieldSelectors lists css selectors per event field
type FieldSelectors struct {
	Title       []string `yaml:"title" json:"title"`
	Date        []string `yaml:"date" json:"date"`
	EndDate     []string `yaml:"end_date" json:"end_date"`
	Location    []string `yaml:"location" json:"location"`
	Description []string `yaml:"description" json:"description"`
	Price       []string `yaml:"price" json:"price"`
	URL         []string `yaml:"url" json:"url"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := newConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

// newConfig makes a config preset with defaults whose zero value is a legal setting,
// absent keys keep them and explicit zeros override them
func newConfig() Config {
	var cfg Config
	cfg.Schedule.Enabled = true
	cfg.Dates.AllowFallback = true
	cfg.Fetch.Retry.Jitter = 0.3
	cfg.Quality.Floor = 45
	return cfg
}

func setDefaults(cfg *Config) {
	// server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:eventscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// schedule
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = 5 * time.Minute
	}

	// crawl
	defInt(&cfg.Crawl.Workers, 4)
	defDuration(&cfg.Crawl.Timeout, 3*time.Minute)
	defInt(&cfg.Crawl.MaxPages, 10)
	defInt(&cfg.Crawl.MaxHops, 5)
	defInt(&cfg.Crawl.PageSize, 20)
	defInt(&cfg.Crawl.MinBlockText, 30)
	defInt(&cfg.Crawl.MaxBlockText, 4000)
	defInt(&cfg.Crawl.EnrichLimit, 10)
	defInt(&cfg.Crawl.EnrichMaxLength, 1000)

	// fetch
	defDuration(&cfg.Fetch.Timeout, 20*time.Second)
	defDuration(&cfg.Fetch.MinDelay, 300*time.Millisecond)
	defDuration(&cfg.Fetch.MaxDelay, 1500*time.Millisecond)
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 10 << 20
	}
	r := &cfg.Fetch.Retry
	defInt(&r.MaxAttempts, 4)
	defDuration(&r.BaseDelay, 500*time.Millisecond)
	defDuration(&r.MaxDelay, 20*time.Second)
	if r.Multiplier == 0 {
		r.Multiplier = 2.0
	}
	defDuration(&r.Cooldown429, 30*time.Second)
	if len(r.NonRetryable) == 0 {
		r.NonRetryable = fetcher.DefaultRetryPolicy().NonRetryable
	}

	// dates
	if cfg.Dates.Timezone == "" {
		cfg.Dates.Timezone = "UTC"
	}
	defDuration(&cfg.Dates.PastThreshold, 24*time.Hour)
	defDuration(&cfg.Dates.DefaultHorizon, 14*24*time.Hour)

	// quality
	if cfg.Quality.DedupSimilarity == 0 {
		cfg.Quality.DedupSimilarity = 0.92
	}
	defDuration(&cfg.Quality.DedupWindow, 24*time.Hour)
	if cfg.Quality.Weights == (WeightsConfig{}) {
		w := quality.DefaultWeights()
		cfg.Quality.Weights = WeightsConfig{Title: w.Title, Description: w.Description, DateConfirmed: w.DateConfirmed,
			DateFallback: w.DateFallback, Location: w.Location, URL: w.URL, Price: w.Price, Structured: w.Structured}
	}

	// resolver
	defInt(&cfg.Resolver.MaxDescription, 1000)

	// sources and profiles
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Name == "" {
			s.Name = s.URL
		}
		if s.Kind == "" {
			s.Kind = string(domain.SourcePage)
		}
		defDuration(&s.PollInterval, 6*time.Hour)
	}
	for i := range cfg.SiteProfiles {
		if cfg.SiteProfiles[i].Strategy == "" {
			cfg.SiteProfiles[i].Strategy = string(domain.StrategyStatic)
		}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Crawl.MinBlockText >= cfg.Crawl.MaxBlockText {
		return fmt.Errorf("crawl.min_block_text must be less than crawl.max_block_text")
	}
	if cfg.Fetch.MaxDelay < cfg.Fetch.MinDelay {
		return fmt.Errorf("fetch.max_delay must not be less than fetch.min_delay")
	}
	if cfg.Fetch.Retry.Multiplier < 1 {
		return fmt.Errorf("fetch.retry.multiplier must be at least 1")
	}
	if cfg.Fetch.Retry.Jitter < 0 || cfg.Fetch.Retry.Jitter > 1 {
		return fmt.Errorf("fetch.retry.jitter must be between 0 and 1")
	}
	if _, err := time.LoadLocation(cfg.Dates.Timezone); err != nil {
		return fmt.Errorf("dates.timezone %q: %w", cfg.Dates.Timezone, err)
	}
	if cfg.Quality.Floor < 0 || cfg.Quality.Floor > 100 {
		return fmt.Errorf("quality.floor must be between 0 and 100")
	}
	if cfg.Quality.DedupSimilarity < 0 || cfg.Quality.DedupSimilarity > 1 {
		return fmt.Errorf("quality.dedup_similarity must be between 0 and 1")
	}

	seen := map[string]bool{}
	for i, s := range cfg.Sources {
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("sources[%d]: invalid url %q", i, s.URL)
		}
		if seen[s.URL] {
			return fmt.Errorf("sources[%d]: duplicate url %q", i, s.URL)
		}
		seen[s.URL] = true
		if s.Kind != string(domain.SourcePage) && s.Kind != string(domain.SourceFeed) {
			return fmt.Errorf("sources[%d]: unknown kind %q", i, s.Kind)
		}
		if k := domain.StrategyKind(s.Strategy); s.Strategy != "" && (!k.Valid() || k == domain.StrategySourceSpecific) {
			return fmt.Errorf("sources[%d]: unsupported strategy %q", i, s.Strategy)
		}
	}

	for i, p := range cfg.SiteProfiles {
		if p.Name == "" {
			return fmt.Errorf("site_profiles[%d]: name is required", i)
		}
		if len(p.Domains) == 0 {
			return fmt.Errorf("site_profiles[%d]: domains are required", i)
		}
		if k := domain.StrategyKind(p.Strategy); !k.Valid() || k == domain.StrategySourceSpecific {
			return fmt.Errorf("site_profiles[%d]: unsupported strategy %q", i, p.Strategy)
		}
	}
	return nil
}

func defInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func defDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// FetcherConfig returns fetcher settings
func (c *Config) FetcherConfig() fetcher.Config {
	r := c.Fetch.Retry
	return fetcher.Config{
		Timeout:      c.Fetch.Timeout,
		UserAgents:   c.Fetch.UserAgents,
		MinDelay:     c.Fetch.MinDelay,
		MaxDelay:     c.Fetch.MaxDelay,
		MaxBodyBytes: c.Fetch.MaxBodyBytes,
		Retry: fetcher.RetryPolicy{MaxAttempts: r.MaxAttempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay,
			Multiplier: r.Multiplier, Jitter: r.Jitter, Cooldown: r.Cooldown429, NonRetryable: r.NonRetryable},
	}
}

// DatesConfig returns date engine settings
func (c *Config) DatesConfig() (dates.Config, error) {
	loc, err := time.LoadLocation(c.Dates.Timezone)
	if err != nil {
		return dates.Config{}, fmt.Errorf("load timezone %q: %w", c.Dates.Timezone, err)
	}
	return dates.Config{Location: loc, PastThreshold: c.Dates.PastThreshold, DefaultHorizon: c.Dates.DefaultHorizon,
		AllowFallback: c.Dates.AllowFallback}, nil
}

// Weights returns confidence score weights
func (c *Config) Weights() quality.Weights {
	w := c.Quality.Weights
	return quality.Weights{Title: w.Title, Description: w.Description, DateConfirmed: w.DateConfirmed,
		DateFallback: w.DateFallback, Location: w.Location, URL: w.URL, Price: w.Price, Structured: w.Structured}
}

// Profiles returns configured site profiles
func (c *Config) Profiles() []strategy.Profile {
	res := make([]strategy.Profile, 0, len(c.SiteProfiles))
	for _, p := range c.SiteProfiles {
		res = append(res, &strategy.SelectorProfile{
			Name:     p.Name,
			Domains:  p.Domains,
			Strategy: domain.StrategyKind(p.Strategy),
			Blocks:   p.Blocks,
			Fields: strategy.Selectors{Title: p.Fields.Title, Date: p.Fields.Date, EndDate: p.Fields.EndDate,
				Location: p.Fields.Location, Description: p.Fields.Description, Price: p.Fields.Price, URL: p.Fields.URL},
			DateLayouts: p.DateLayouts,
		})
	}
	return res
}

// DomainSources returns configured sources as domain sources, without ids
func (c *Config) DomainSources() []*domain.Source {
	res := make([]*domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		res = append(res, &domain.Source{
			Name:         s.Name,
			URL:          s.URL,
			Kind:         domain.SourceKind(s.Kind),
			StrategyHint: domain.StrategyKind(s.Strategy),
			PollInterval: s.PollInterval,
			Active:       !s.Disabled,
		})
	}
	return res
}
