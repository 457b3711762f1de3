package mlbench

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	lwconfig "github.com/lixenwraith/config"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds the two knobs spec.md's LoggerCore actually needs, plus the
// ambient settings a complete Go repo carries alongside them (the internal
// diagnostic logger and how many producers to size the swap ring for).
// Grounded on the teacher's Config, trimmed to this domain's fields.
type Config struct {
	// PollPeriod is how often the I/O goroutine wakes to gather swap
	// requests, drain buffers, and flush the Sink. spec.md §6 default 10ms.
	PollPeriod time.Duration `toml:"poll_period_ms"`

	// MaxThreads sizes the swap ring (2*MaxThreads slots). spec.md §6
	// default 1024. Producers beyond this count still work, but registering
	// one logs a capacity warning (spec.md §9 Open Question, resolved:
	// degrade gracefully).
	MaxThreads int `toml:"max_threads"`

	// InternalLogger receives the core's own diagnostics (capacity
	// warnings, refused StopLogging calls, fatal invariant violations).
	// Defaults to a no-op logger; set via Builder.InternalLogger.
	InternalLogger *zap.Logger `toml:"-"`
}

var defaultConfig = Config{
	PollPeriod: 10 * time.Millisecond,
	MaxThreads: 1024,
}

// DefaultConfig returns a copy of the package defaults.
func DefaultConfig() *Config {
	cfg := defaultConfig
	return &cfg
}

// Validate rejects configurations the core cannot safely run with.
// Grounded on the teacher's Config.validate.
func (c *Config) Validate() error {
	if c.PollPeriod <= 0 {
		return fmtErrorf("poll_period_ms must be positive: %s", c.PollPeriod)
	}
	if c.MaxThreads <= 0 {
		return fmtErrorf("max_threads must be positive: %d", c.MaxThreads)
	}
	return nil
}

// Clone returns a deep-enough copy for safe mutation; the InternalLogger
// pointer is shared intentionally, as zap.Logger is itself safe to share.
func (c *Config) Clone() *Config {
	cfg := *c
	return &cfg
}

// pollPeriodMs and its setter exist only so lixenwraith/config, which
// extracts TOML fields by reflecting over int64/string/float64/bool kinds,
// can populate PollPeriod (a time.Duration, i.e. an int64 under the hood)
// without a custom unmarshaler.
func (c *Config) pollPeriodMs() int64 { return int64(c.PollPeriod / time.Millisecond) }
func (c *Config) setPollPeriodMs(ms int64) { c.PollPeriod = time.Duration(ms) * time.Millisecond }

// NewConfigFromFile loads PollPeriod/MaxThreads from a TOML file via
// github.com/lixenwraith/config, falling back to defaults for anything the
// file doesn't set. Grounded on the teacher's NewConfigFromFile.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := lwconfig.New()
	type tomlShape struct {
		PollPeriodMs int64 `toml:"poll_period_ms"`
		MaxThreads   int64 `toml:"max_threads"`
	}
	shape := tomlShape{PollPeriodMs: cfg.pollPeriodMs(), MaxThreads: int64(cfg.MaxThreads)}

	if err := loader.RegisterStruct("mlbench.", shape); err != nil {
		return nil, fmt.Errorf("mlbench: failed to register config struct: %w", err)
	}
	if err := loader.Load(path, nil); err != nil && !errors.Is(err, lwconfig.ErrConfigNotFound) {
		return nil, fmt.Errorf("mlbench: failed to load config from %s: %w", path, err)
	}

	v := reflect.ValueOf(&shape).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("toml")
		if val, found := loader.Get("mlbench." + tag); found {
			if iv, ok := val.(int64); ok {
				v.Field(i).SetInt(iv)
			} else if iv, ok := val.(int); ok {
				v.Field(i).SetInt(int64(iv))
			}
		}
	}

	cfg.setPollPeriodMs(shape.PollPeriodMs)
	cfg.MaxThreads = int(shape.MaxThreads)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlConfig is the on-disk shape NewConfigFromYAML reads, kept separate
// from Config so InternalLogger (not serializable) never needs a
// yaml tag decision.
type yamlConfig struct {
	PollPeriodMs *int64 `yaml:"poll_period_ms"`
	MaxThreads   *int   `yaml:"max_threads"`
}

// NewConfigFromYAML loads PollPeriod/MaxThreads from a YAML file via
// gopkg.in/yaml.v3, the config format used by the cluster-deployed variant
// of a benchmark harness where a single TOML file per host (NewConfigFromFile)
// doesn't fit a templated config management pipeline. Fields absent from the
// file keep their default value.
func NewConfigFromYAML(path string) (*Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mlbench: failed to read yaml config %s: %w", path, err)
	}

	var shape yamlConfig
	if err := yaml.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("mlbench: failed to parse yaml config %s: %w", path, err)
	}

	if shape.PollPeriodMs != nil {
		cfg.setPollPeriodMs(*shape.PollPeriodMs)
	}
	if shape.MaxThreads != nil {
		cfg.MaxThreads = *shape.MaxThreads
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
