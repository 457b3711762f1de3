package mlbench

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Millisecond, cfg.PollPeriod)
	assert.Equal(t, 1024, cfg.MaxThreads)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollPeriod = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxThreads = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.MaxThreads = 4096
	assert.NotEqual(t, cfg.MaxThreads, clone.MaxThreads)
}

func TestNewConfigFromFileMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewConfigFromFile("/nonexistent/path/mlbench.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PollPeriod, cfg.PollPeriod)
	assert.Equal(t, DefaultConfig().MaxThreads, cfg.MaxThreads)
}

func TestNewConfigFromYAMLMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewConfigFromYAML("/nonexistent/path/mlbench.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PollPeriod, cfg.PollPeriod)
	assert.Equal(t, DefaultConfig().MaxThreads, cfg.MaxThreads)
}

func TestNewConfigFromYAMLOverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/mlbench.yaml"
	require.NoError(t, os.WriteFile(path, []byte("poll_period_ms: 25\nmax_threads: 256\n"), 0o644))

	cfg, err := NewConfigFromYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.PollPeriod)
	assert.Equal(t, 256, cfg.MaxThreads)
}

func TestNewConfigFromYAMLRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/mlbench.yaml"
	require.NoError(t, os.WriteFile(path, []byte("max_threads: 0\n"), 0o644))

	_, err := NewConfigFromYAML(path)
	assert.Error(t, err)
}
