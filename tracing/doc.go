// Package tracing integrates OpenTelemetry with the coretask runtime. Task
// iterations and event dispatches start spans; until Init is called the
// global no-op provider keeps them free.
package tracing
