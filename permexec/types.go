package permexec

// Options configures relation and key-graph construction and validation.
type Options struct {
	// WithWitnesses makes the relation keep a witness word and the set of
	// locations seen for every pair. Needed for incremental rebuilds and for
	// readable InvalidGraphError witnesses (default: true).
	WithWitnesses bool

	// MaxCoverStates bounds the number of (node, key subset) states one
	// exact-cover search may visit; 0 means unbounded (default: 0).
	MaxCoverStates int

	// Parallelism bounds ValidateAll's concurrency; <= 0 means one
	// goroutine per document (default: 8).
	Parallelism int

	// Logging configuration. Logger wins over LogLevel when both are set.
	LogLevel string // "error", "warn", "info", "debug"; empty disables logging (default: "")
	Logger   Logger

	// Sink receives cost measurements; nil discards them.
	Sink Sink
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		WithWitnesses:  true,
		MaxCoverStates: 0,
		Parallelism:    8,
		LogLevel:       "",
	}
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel != "" {
		return NewLogger(ParseLogLevel(o.LogLevel), nil)
	}
	return NopLogger()
}

func (o Options) sink() Sink {
	if o.Sink != nil {
		return o.Sink
	}
	return nopSink{}
}
