package resource

import "log/slog"

type weakCacheConfig struct {
	name   string
	logger *slog.Logger
}

// WeakCacheOption configures a WeakCache.
type WeakCacheOption func(*weakCacheConfig)

// WithCacheName sets the name used in log records.
//
// Parameters:
//   - name: the cache name
//
// Returns:
//   - WeakCacheOption: a function that applies the name
func WithCacheName(name string) WeakCacheOption {
	return func(c *weakCacheConfig) {
		c.name = name
	}
}

// WithCacheLogger sets the logger used for eviction records.
//
// Parameters:
//   - logger: the logger; nil keeps slog.Default()
//
// Returns:
//   - WeakCacheOption: a function that applies the logger
func WithCacheLogger(logger *slog.Logger) WeakCacheOption {
	return func(c *weakCacheConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
