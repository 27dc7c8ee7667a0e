// Package config loads the ambient settings that size the lock and
// store layers: where the database file lives, and how long a lock
// attempt waits before giving up. Process bootstrap (env vars, CLI
// flags, working-directory discovery) is an external collaborator's
// job; this package only shapes and parses the on-disk settings file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/marktoda/astrotask/internal/lockfile"
)

// Config is the root of settings.toml.
type Config struct {
	Store Store `toml:"store"`
	Lock  Lock  `toml:"lock"`
}

// Store configures where the task database lives.
type Store struct {
	// Path is the database file path. Empty means the caller picks a
	// default (e.g. ".astrotask/tasks.db").
	Path string `toml:"path"`
}

// Lock configures the cooperative file lock's staleness and retry
// behavior, in durations readable from TOML as strings (e.g. "30s").
type Lock struct {
	StaleAfter  duration `toml:"stale_after"`
	RetryBudget duration `toml:"retry_budget"`
}

// duration unmarshals from a TOML string via time.ParseDuration, since
// toml has no native duration type.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", text, err)
	}
	*d = duration(parsed)
	return nil
}

// Default returns the zero-value-safe default configuration.
func Default() Config {
	return Config{
		Store: Store{Path: ".astrotask/tasks.db"},
		Lock: Lock{
			StaleAfter:  duration(lockfile.DefaultStaleAfter),
			RetryBudget: duration(lockfile.DefaultRetryBudget),
		},
	}
}

// Load reads and parses a settings file at path, filling any field left
// as its TOML zero value with the Default() value. A missing file is
// not an error: Load returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied configuration
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = Default().Store.Path
	}
	if cfg.Lock.StaleAfter == 0 {
		cfg.Lock.StaleAfter = Default().Lock.StaleAfter
	}
	if cfg.Lock.RetryBudget == 0 {
		cfg.Lock.RetryBudget = Default().Lock.RetryBudget
	}
	return cfg, nil
}

// LockOptions converts the parsed settings into lockfile.Options.
func (c Config) LockOptions() lockfile.Options {
	return lockfile.Options{
		StaleAfter:  time.Duration(c.Lock.StaleAfter),
		RetryBudget: time.Duration(c.Lock.RetryBudget),
	}
}
