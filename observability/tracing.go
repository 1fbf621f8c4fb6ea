package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "transcriber"

const (
	AttrMeetingID = "meeting_id"
	AttrState     = "state"
)

// Tracer starts run and state spans. Without an SDK installed the global
// provider is a no-op.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

func (t *Tracer) StartRun(ctx context.Context, meetingID int64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "transcriber.run",
		trace.WithAttributes(attribute.Int64(AttrMeetingID, meetingID)))
}

func (t *Tracer) StartState(ctx context.Context, state string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "transcriber.state."+state,
		trace.WithAttributes(attribute.String(AttrState, state)))
}

// End records err, if any, and ends span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
