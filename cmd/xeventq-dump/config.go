package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/BurntSushi/xeventq"
	"github.com/joeycumines/logiface"
)

// config is read from an optional TOML file, e.g.
//
//	display = ":1"
//	pool_size = 200
//	compress = true
//	log_level = "debug"
//
//	[warn_rates]
//	"1s" = 5
//	"1m" = 20
type config struct {
	Display  string         `toml:"display"`
	PoolSize int            `toml:"pool_size"`
	Compress bool           `toml:"compress"`
	LogLevel string         `toml:"log_level"`
	Width    uint16         `toml:"width"`
	Height   uint16         `toml:"height"`
	Title    string         `toml:"title"`
	Rates    map[string]int `toml:"warn_rates"`
}

func defaultConfig() config {
	return config{
		Compress: true,
		LogLevel: "info",
		Width:    400,
		Height:   300,
		Title:    "xeventq-dump",
	}
}

func loadConfig(path string, cfg *config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("reading %s: unknown keys %v", path, undecoded)
	}
	return nil
}

func (c config) level() (logiface.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return logiface.LevelTrace, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "", "info":
		return logiface.LevelInformational, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "error":
		return logiface.LevelError, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", c.LogLevel)
}

// defaultRates apply when the file has no warn_rates table. An empty table
// disables rate limiting.
var defaultRates = map[time.Duration]int{time.Second: 5, time.Minute: 30}

func (c config) warnRates() (map[time.Duration]int, error) {
	if c.Rates == nil {
		return defaultRates, nil
	}
	rates := make(map[time.Duration]int, len(c.Rates))
	for k, v := range c.Rates {
		d, err := time.ParseDuration(k)
		if err != nil {
			return nil, fmt.Errorf("warn_rates: %w", err)
		}
		rates[d] = v
	}
	if err := xeventq.CheckWarnRates(rates); err != nil {
		return nil, fmt.Errorf("warn_rates: %w", err)
	}
	return rates, nil
}
