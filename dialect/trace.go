package dialect

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceDriver starts one span per statement.
type TraceDriver struct {
	Driver
	tracer trace.Tracer
}

// TraceOption configures the TraceDriver.
type TraceOption func(*TraceDriver)

// WithTracerProvider sets the provider spans are created from. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) TraceOption {
	return func(d *TraceDriver) {
		d.tracer = tp.Tracer("github.com/syssam/velox-ogm/dialect")
	}
}

// NewTraceDriver wraps a Driver with OpenTelemetry tracing.
func NewTraceDriver(drv Driver, opts ...TraceOption) *TraceDriver {
	d := &TraceDriver{
		Driver: drv,
		tracer: otel.Tracer("github.com/syssam/velox-ogm/dialect"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the statement inside a span.
func (d *TraceDriver) Run(ctx context.Context, stmt Statement) (*Result, error) {
	return traced(ctx, d.tracer, d.Dialect(), d.Driver, stmt)
}

// Tx starts a transaction whose statements are traced.
func (d *TraceDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &TraceTx{Tx: tx, tracer: d.tracer, dialect: d.Dialect()}, nil
}

// TraceTx wraps a transaction with tracing.
type TraceTx struct {
	Tx
	tracer  trace.Tracer
	dialect string
}

// Run executes the statement inside a span.
func (tx *TraceTx) Run(ctx context.Context, stmt Statement) (*Result, error) {
	return traced(ctx, tx.tracer, tx.dialect, tx.Tx, stmt)
}

func traced(ctx context.Context, tracer trace.Tracer, name string, ex ExecQuerier, stmt Statement) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ogm."+stmt.Op().String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", name),
			attribute.String("db.operation", stmt.Op().String()),
		),
	)
	defer span.End()
	res, err := ex.Run(ctx, stmt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res != nil {
		span.SetAttributes(attribute.Int("db.records", len(res.Records)))
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

var (
	_ Driver = (*TraceDriver)(nil)
	_ Tx     = (*TraceTx)(nil)
)
