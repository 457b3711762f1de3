package mlbench

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ApplyConfigString applies "key=value" overrides to a clone of the core's
// live config, validates the result, and swaps it in atomically. Grounded
// on the teacher's override.go/ApplyOverride, with combineConfigErrors
// replaced by go.uber.org/multierr (SPEC_FULL.md §6.4).
func (c *Core) ApplyConfigString(overrides ...string) error {
	cfg := c.loadConfig().Clone()

	var errs error
	for _, o := range overrides {
		key, value, err := parseKeyValue(o)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := applyConfigField(cfg, key, value); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return errs
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	c.storeConfig(cfg)
	return nil
}

func parseKeyValue(override string) (key, value string, err error) {
	parts := strings.SplitN(override, "=", 2)
	if len(parts) != 2 {
		return "", "", fmtErrorf("invalid override %q, expected key=value", override)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func applyConfigField(cfg *Config, key, value string) error {
	switch key {
	case "poll_period_ms":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for poll_period_ms %q: %w", value, err)
		}
		cfg.PollPeriod = time.Duration(n) * time.Millisecond
	case "max_threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmtErrorf("invalid integer value for max_threads %q: %w", value, err)
		}
		cfg.MaxThreads = n
	default:
		return fmtErrorf("unknown configuration key %q", key)
	}
	return nil
}
