package coretask

import (
	"log"

	"github.com/viant/afs"
	"github.com/viant/coretask/policy"
	"github.com/viant/coretask/progress"
	"github.com/viant/coretask/service/observer"
	"github.com/viant/coretask/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service
type Option func(s *Service)

// WithConfig sets the runtime configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithSink sets the observation sink, log sink by default
func WithSink(sink observer.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithLogger sets the logger shared by the scheduler, event loop and default sink
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPolicy overrides the configured event publish error policy
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithTracker sets the iteration tracker
func WithTracker(tracker *progress.Progress) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// WithFS sets the storage used by the fs event queue vendor
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path.
// Counter updates are traced alongside the configured sink.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.initTracing = func() error {
			return tracing.Init(serviceName, serviceVersion, outputFile)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		s.initTracing = func() error {
			return tracing.InitWithExporter(serviceName, serviceVersion, exporter)
		}
	}
}
