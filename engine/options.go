package engine

import (
	"log/slog"
	"runtime"

	"github.com/razeghi71/lazydf/logging"
)

// Option configures a Graph via functional options.
type Option func(*options)

type options struct {
	workers   int
	seed      int64
	chunkSize int64
	logger    *slog.Logger
}

// WithWorkers sets the number of worker slots. Values below 1 mean one
// slot per CPU.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithSeed sets the base seed; slot i draws from a PCG generator keyed by
// (seed, i).
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithChunkSize sets how many consecutive rows make one task.
func WithChunkSize(n int64) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithLogger replaces the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{workers: 1, chunkSize: 4096}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}
	if o.chunkSize < 1 {
		o.chunkSize = 4096
	}
	if o.logger == nil {
		o.logger = logging.New("engine")
	}
	return o
}

// VaryOption configures a single Vary call.
type VaryOption func(*varyOptions)

type varyOptions struct {
	name string
}

// WithVariationName sets the namespace of the variation's tags. It
// defaults to the varied column's name.
func WithVariationName(name string) VaryOption {
	return func(o *varyOptions) { o.name = name }
}
