package resource

import "log/slog"

type asyncLoaderConfig struct {
	executor Executor
	logger   *slog.Logger
	name     string
}

// AsyncLoaderOption configures an AsyncLoader.
type AsyncLoaderOption func(*asyncLoaderConfig)

// WithExecutor sets the background context load actions run on.
// The default is DefaultExecutor().
//
// Parameters:
//   - executor: the executor
//
// Returns:
//   - AsyncLoaderOption: a function that applies the executor
func WithExecutor(executor Executor) AsyncLoaderOption {
	return func(c *asyncLoaderConfig) {
		c.executor = executor
	}
}

// WithLoaderLogger sets the logger for load lifecycle records.
func WithLoaderLogger(logger *slog.Logger) AsyncLoaderOption {
	return func(c *asyncLoaderConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLoaderName sets the name used in log records.
func WithLoaderName(name string) AsyncLoaderOption {
	return func(c *asyncLoaderConfig) {
		c.name = name
	}
}
