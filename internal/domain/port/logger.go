package port

import "context"

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Instrumentation times pipeline stages. The returned func ends the stage
// and records err when non-nil.
type Instrumentation interface {
	Measure(ctx context.Context, stage string) (context.Context, func(err error))
}
