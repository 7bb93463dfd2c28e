package stats

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tunnelguard/tunnelguard/client/internal/session"
)

// otelRecorder is the OpenTelemetry implementation of Recorder
type otelRecorder struct {
	reader        *sdkmetric.ManualReader
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	sessionErrors      metric.Int64Counter
	connectionTimeouts metric.Int64Counter
	reconnects         metric.Int64Counter
	pauses             metric.Int64Counter
}

// NewOtelRecorder returns an OpenTelemetry backed Recorder. It falls back to
// the noop recorder when instrument creation fails.
func NewOtelRecorder() Recorder {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter("tunnelguard.client")

	sessionErrors, err := meter.Int64Counter(
		"tunnelguard.client.session.errors",
		metric.WithDescription("Terminated sessions by error kind"),
	)
	if err != nil {
		return &noopRecorder{}
	}

	connectionTimeouts, err := meter.Int64Counter(
		"tunnelguard.client.connection.timeouts",
		metric.WithDescription("Connection attempts that hit the connection timeout"),
	)
	if err != nil {
		return &noopRecorder{}
	}

	reconnects, err := meter.Int64Counter(
		"tunnelguard.client.reconnects",
		metric.WithDescription("Rebuilt connection attempts"),
	)
	if err != nil {
		return &noopRecorder{}
	}

	pauses, err := meter.Int64Counter(
		"tunnelguard.client.pauses",
		metric.WithDescription("Entries into the paused state"),
	)
	if err != nil {
		return &noopRecorder{}
	}

	return &otelRecorder{
		reader:             reader,
		meterProvider:      meterProvider,
		meter:              meter,
		sessionErrors:      sessionErrors,
		connectionTimeouts: connectionTimeouts,
		reconnects:         reconnects,
		pauses:             pauses,
	}
}

func (m *otelRecorder) SessionError(kind session.ErrorKind) {
	m.sessionErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *otelRecorder) ConnectionTimeout() {
	m.connectionTimeouts.Add(context.Background(), 1)
}

func (m *otelRecorder) Reconnect() {
	m.reconnects.Add(context.Background(), 1)
}

func (m *otelRecorder) Pause() {
	m.pauses.Add(context.Background(), 1)
}

// Collect drains the manual reader, for debug dumps and tests.
func (m *otelRecorder) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := m.reader.Collect(ctx, &rm)
	return rm, err
}
