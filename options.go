package tlog

import "log/slog"

// options defines all configuration options for the transactional log.
type options struct {
	engine       Engine
	logger       *slog.Logger
	keepInMemory bool
}

// Option is a function that configures the transactional log options.
type Option func(*options)

// WithEngine replaces the default single-segment storage engine with any
// conforming backend.
func WithEngine(engine Engine) Option {
	return func(o *options) {
		o.engine = engine
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithKeepInMemory makes the default engine record its first full scan and
// replay it to later readers. Ignored when WithEngine is used.
func WithKeepInMemory(keep bool) Option {
	return func(o *options) {
		o.keepInMemory = keep
	}
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		logger: slog.New(slog.DiscardHandler),
	}
}
