// Package config loads the optional on-disk configuration that tunes
// ignore patterns, file-size limits, cache sizes/TTL, and the watcher
// debounce (§6.4). Everything else about a project (its root, its
// index) is derived, not configured; this package only covers knobs a
// user might reasonably want to override.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// IgnoreConfig extends the walker's built-in .gitignore handling with
// extra deny patterns, and optionally opts into walking initialized git
// submodules (§C "Submodule-aware walking").
type IgnoreConfig struct {
	Patterns       []string `toml:"patterns"`
	WalkSubmodules bool     `toml:"walk_submodules"`
}

// LimitsConfig bounds per-file work during a walk.
type LimitsConfig struct {
	MaxFileSizeBytes int64 `toml:"max_file_size_bytes"`
}

// CacheConfig sizes the daemon's shared L1 result cache and each
// project's L2 compiled-query cache (§3.4, §4.6).
type CacheConfig struct {
	ResultCacheCapacity   int `toml:"result_cache_capacity"`
	ResultCacheTTLSeconds int `toml:"result_cache_ttl_seconds"`
	QueryCacheCapacity    int `toml:"query_cache_capacity"`
}

// WatcherConfig controls the minimum quiet interval before accumulated
// filesystem events are flushed as a re-index batch (§4.7).
type WatcherConfig struct {
	DebounceMS int `toml:"debounce_ms"`
}

// Config is the full shape of config.toml. Every field has a usable
// zero-value-safe default via Default, so a missing or partial file
// never leaves the daemon unconfigured.
type Config struct {
	Ignore  IgnoreConfig  `toml:"ignore"`
	Limits  LimitsConfig  `toml:"limits"`
	Cache   CacheConfig   `toml:"cache"`
	Watcher WatcherConfig `toml:"watcher"`
}

// defaultIgnorePatterns mirrors the common directories a walk should
// never descend into, beyond whatever .gitignore already excludes.
var defaultIgnorePatterns = []string{
	"node_modules",
	".git",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"*.min.js",
	"*.min.css",
}

// Default returns the built-in configuration used when config.toml is
// absent or omits a section.
func Default() Config {
	return Config{
		Ignore: IgnoreConfig{
			Patterns:       append([]string(nil), defaultIgnorePatterns...),
			WalkSubmodules: false,
		},
		Limits: LimitsConfig{
			MaxFileSizeBytes: 10 * 1024 * 1024,
		},
		Cache: CacheConfig{
			ResultCacheCapacity:   10_000,
			ResultCacheTTLSeconds: 300,
			QueryCacheCapacity:    500,
		},
		Watcher: WatcherConfig{
			DebounceMS: 100,
		},
	}
}

// ResultCacheTTL is Cache.ResultCacheTTLSeconds as a Duration.
func (c Config) ResultCacheTTL() time.Duration {
	return time.Duration(c.Cache.ResultCacheTTLSeconds) * time.Second
}

// WatcherDebounce is Watcher.DebounceMS as a Duration.
func (c Config) WatcherDebounce() time.Duration {
	return time.Duration(c.Watcher.DebounceMS) * time.Millisecond
}

// Load reads config.toml at path, decoding on top of Default so any
// section or field the file omits keeps its built-in value. A missing
// file is not an error: it returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save encodes cfg as TOML and writes it to path with owner-only
// permissions, matching §6.1's on-disk state rule.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// Validate rejects configurations that would leave the daemon
// unusable rather than merely suboptimal.
func (c Config) Validate() error {
	if c.Limits.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("limits.max_file_size_bytes must be positive")
	}
	if c.Cache.ResultCacheCapacity <= 0 {
		return fmt.Errorf("cache.result_cache_capacity must be positive")
	}
	if c.Cache.ResultCacheTTLSeconds <= 0 {
		return fmt.Errorf("cache.result_cache_ttl_seconds must be positive")
	}
	if c.Cache.QueryCacheCapacity <= 0 {
		return fmt.Errorf("cache.query_cache_capacity must be positive")
	}
	if c.Watcher.DebounceMS <= 0 {
		return fmt.Errorf("watcher.debounce_ms must be positive")
	}
	return nil
}
