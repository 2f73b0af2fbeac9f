package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xeventq.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
display = ":1"
pool_size = 200
compress = false
log_level = "debug"

[warn_rates]
"2s" = 3
`)
	cfg := defaultConfig()
	require.NoError(t, loadConfig(path, &cfg))

	assert.Equal(t, ":1", cfg.Display)
	assert.Equal(t, 200, cfg.PoolSize)
	assert.False(t, cfg.Compress)
	assert.Equal(t, uint16(400), cfg.Width, "defaults kept")

	level, err := cfg.level()
	require.NoError(t, err)
	assert.Equal(t, logiface.LevelDebug, level)

	rates, err := cfg.warnRates()
	require.NoError(t, err)
	assert.Equal(t, map[time.Duration]int{2 * time.Second: 3}, rates)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	cfg := defaultConfig()
	err := loadConfig(writeConfig(t, `colour = "blue"`), &cfg)
	assert.ErrorContains(t, err, "unknown keys")
}

func TestConfigInvalid(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogLevel = "loud"
	_, err := cfg.level()
	assert.Error(t, err)

	cfg = defaultConfig()
	rates, err := cfg.warnRates()
	require.NoError(t, err)
	assert.Equal(t, defaultRates, rates)

	cfg.Rates = map[string]int{}
	rates, err = cfg.warnRates()
	require.NoError(t, err)
	assert.Empty(t, rates)

	cfg.Rates = map[string]int{"soon": 1}
	_, err = cfg.warnRates()
	assert.Error(t, err)

	cfg.Rates = map[string]int{"1s": 5, "1m": 3}
	_, err = cfg.warnRates()
	assert.ErrorContains(t, err, "warn_rates")

	cfg.Rates = map[string]int{"1s": 0}
	_, err = cfg.warnRates()
	assert.Error(t, err)
}
