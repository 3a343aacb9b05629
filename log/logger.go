// Package log is the structured logger handed to the server wiring and the
// router. Lower layers log through zerolog's context logger directly.
package log

import "context"

// Logger writes leveled entries with optional field maps. The context
// carries the trace and span ids the adapter stamps on every entry.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	// Fatal logs and exits the process.
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	// With returns a child logger that adds fields to every entry, e.g. the
	// session key for the lifetime of one request.
	With(fields map[string]interface{}) Logger
	// WithContext attaches the underlying logger to ctx so zerolog's log.Ctx
	// in the stores and gateways writes to the same sink.
	WithContext(ctx context.Context) context.Context
}
