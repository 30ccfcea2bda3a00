// Package config loads bytehot-diag configuration from defaults, an optional
// YAML or TOML file, and BYTEHOT_ environment variables, in that order.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/flow"
	"github.com/rydnr/bytehot-observe/pkg/bytehot/testgen"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: BYTEHOT_SNAPSHOT__MAX_EVENTS.
const EnvPrefix = "BYTEHOT_"

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	TestGen  TestGenConfig  `koanf:"testgen"`
	Docs     DocsConfig     `koanf:"docs"`
	Report   ReportConfig   `koanf:"report"`
	Redis    RedisConfig    `koanf:"redis"`
	CXDB     CXDBConfig     `koanf:"cxdb"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type SnapshotConfig struct {
	MaxEvents                 int           `koanf:"max_events" validate:"gte=0"`
	MaxTimeWindow             time.Duration `koanf:"max_time_window" validate:"gte=0"`
	IncludeCausalAnalysis     bool          `koanf:"include_causal_analysis"`
	IncludePerformanceMetrics bool          `koanf:"include_performance_metrics"`
	EventTypePatterns         []string      `koanf:"event_type_patterns"`
	MinCausalConfidence       float64       `koanf:"min_causal_confidence" validate:"gte=0,lte=1"`
}

type TestGenConfig struct {
	Framework                    string `koanf:"framework" validate:"required"`
	PackageName                  string `koanf:"package_name" validate:"required"`
	IncludeFullEventHistory      bool   `koanf:"include_full_event_history"`
	IncludeSystemStateAssertions bool   `koanf:"include_system_state_assertions"`
	MaxEventsInTest              int    `koanf:"max_events_in_test" validate:"gte=1"`
}

type DocsConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	URLCacheTTL       time.Duration `koanf:"url_cache_ttl" validate:"gt=0"`
	FlowCacheTTL      time.Duration `koanf:"flow_cache_ttl" validate:"gt=0"`
	RecentEventWindow time.Duration `koanf:"recent_event_window" validate:"gt=0"`
	MaxRecentEvents   int           `koanf:"max_recent_events" validate:"gte=1"`
}

type ReportConfig struct {
	// Dir, when set, receives one file per report and format.
	Dir       string   `koanf:"dir"`
	Formats   []string `koanf:"formats" validate:"dive,oneof=md json"`
	TestCases bool     `koanf:"test_cases"`
	Scrub     bool     `koanf:"scrub"`
	Verbose   bool     `koanf:"verbose"`
	Async     bool     `koanf:"async"`
	QueueSize int      `koanf:"queue_size" validate:"gte=1"`
}

type RedisConfig struct {
	// Addr enables the Redis event store when set.
	Addr     string `koanf:"addr" validate:"omitempty,hostname_port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Key      string `koanf:"key" validate:"required"`
}

type CXDBConfig struct {
	// Addr enables the cxdb sink when set.
	Addr      string   `koanf:"addr" validate:"omitempty,hostname_port"`
	ClientTag string   `koanf:"client_tag"`
	Labels    []string `koanf:"labels"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	snap := bytehot.DefaultSnapshotConfig()
	tg := testgen.DefaultConfig()
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Snapshot: SnapshotConfig{
			MaxEvents:                 snap.MaxEvents,
			MaxTimeWindow:             snap.MaxTimeWindow,
			IncludeCausalAnalysis:     snap.IncludeCausalAnalysis,
			IncludePerformanceMetrics: snap.IncludePerformanceMetrics,
			MinCausalConfidence:       snap.MinCausalConfidence,
		},
		TestGen: TestGenConfig{
			Framework:                    string(tg.Framework),
			PackageName:                  tg.PackageName,
			IncludeFullEventHistory:      tg.IncludeFullEventHistory,
			IncludeSystemStateAssertions: tg.IncludeSystemStateAssertions,
			MaxEventsInTest:              tg.MaxEventsInTest,
		},
		Docs: DocsConfig{
			BaseURL:           flow.DefaultBaseURL,
			URLCacheTTL:       flow.DefaultURLTTL,
			FlowCacheTTL:      flow.DefaultFlowTTL,
			RecentEventWindow: flow.DefaultRecentEventWindow,
			MaxRecentEvents:   flow.DefaultMaxRecentEvents,
		},
		Report: ReportConfig{
			Formats:   []string{"md", "json"},
			Scrub:     true,
			QueueSize: 256,
		},
		Redis: RedisConfig{Key: "bytehot:events"},
		CXDB:  CXDBConfig{ClientTag: "bytehot", Labels: []string{"bytehot", "bug-report"}},
	}
}

// Load builds the configuration. path may be empty; otherwise its extension
// picks the parser (.yaml, .yml or .toml).
func Load(path string) (*Config, error) {
	return load(path, EnvPrefix)
}

func load(path, prefix string) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "loading defaults")
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
	}

	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
	}), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment variables")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, errors.Newf("unsupported config format %q", filepath.Ext(path))
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the values only the domain packages
// can judge: framework names and event-type globs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if _, err := testgen.ParseFramework(c.TestGen.Framework); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if err := c.SnapshotConfig().Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// SnapshotConfig converts the snapshot section.
func (c *Config) SnapshotConfig() bytehot.SnapshotConfig {
	return bytehot.SnapshotConfig{
		MaxEvents:                 c.Snapshot.MaxEvents,
		MaxTimeWindow:             c.Snapshot.MaxTimeWindow,
		IncludeCausalAnalysis:     c.Snapshot.IncludeCausalAnalysis,
		IncludePerformanceMetrics: c.Snapshot.IncludePerformanceMetrics,
		EventTypePatterns:         c.Snapshot.EventTypePatterns,
		MinCausalConfidence:       c.Snapshot.MinCausalConfidence,
	}
}

// TestGenConfig converts the testgen section. The framework is assumed
// valid, as Load checked it.
func (c *Config) TestGenConfig() testgen.Config {
	framework, _ := testgen.ParseFramework(c.TestGen.Framework)
	return testgen.Config{
		Framework:                    framework,
		PackageName:                  c.TestGen.PackageName,
		IncludeFullEventHistory:      c.TestGen.IncludeFullEventHistory,
		IncludeSystemStateAssertions: c.TestGen.IncludeSystemStateAssertions,
		MaxEventsInTest:              c.TestGen.MaxEventsInTest,
	}
}

// DocProviderOptions converts the docs section.
func (c *Config) DocProviderOptions() []flow.Option {
	return []flow.Option{
		flow.WithBaseURL(c.Docs.BaseURL),
		flow.WithCacheTTLs(c.Docs.URLCacheTTL, c.Docs.FlowCacheTTL),
		flow.WithRecentEvents(c.Docs.RecentEventWindow, c.Docs.MaxRecentEvents),
	}
}
