package coretask

import (
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/coretask/counter"
	"github.com/viant/coretask/service/observer"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWithTracing_InitFailure(t *testing.T) {
	logs := &syncBuffer{}
	badPath := filepath.Join(t.TempDir(), "missing", "spans.txt")
	srv := New(WithSink(observer.Discard), WithLogger(log.New(logs, "", 0)), WithTracing("coretask", "test", badPath))
	assert.Contains(t, logs.String(), "failed to initialise tracing")
	_, traced := srv.sink.(observer.Multi)
	assert.False(t, traced)
}

func TestWithTracingExporter_TracesObservations(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	srv := New(WithSink(observer.Discard), WithLogger(quietLogger()), WithTracingExporter("coretask", "test", exporter))
	assert.IsType(t, observer.Multi{}, srv.sink)

	srv.sink.Emit(&observer.Observation{Task: "task1", Core: 0, Counter: counter.Critical, Value: 1})
	var names []string
	for _, span := range exporter.GetSpans() {
		names = append(names, span.Name)
	}
	assert.Contains(t, names, "counter.update")
}
