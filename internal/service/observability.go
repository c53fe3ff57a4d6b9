package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
)

// CallEvent captures lightweight execution telemetry for one guarded call.
type CallEvent struct {
	Operation string
	AgentID   string
	Target    string
	Duration  time.Duration
	Success   bool
	Code      contract.ErrorCode
	StartedAt time.Time
}

// CallObserver receives call execution events.
type CallObserver interface {
	ObserveCall(ctx context.Context, event CallEvent)
}

// NoopCallObserver ignores all events.
type NoopCallObserver struct{}

func (NoopCallObserver) ObserveCall(context.Context, CallEvent) {}

type logCallObserver struct {
	logger *slog.Logger
}

// NewLogCallObserver writes call events to the provided writer.
func NewLogCallObserver(w io.Writer) CallObserver {
	if w == nil {
		return NoopCallObserver{}
	}
	return &logCallObserver{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// NewSlogCallObserver reports call events through an existing logger.
func NewSlogCallObserver(logger *slog.Logger) CallObserver {
	if logger == nil {
		return NoopCallObserver{}
	}
	return &logCallObserver{logger: logger}
}

func (o *logCallObserver) ObserveCall(ctx context.Context, event CallEvent) {
	attrs := []any{
		"operation", event.Operation,
		"agent_id", event.AgentID,
		"target", event.Target,
		"duration_ms", event.Duration.Milliseconds(),
		"success", event.Success,
	}
	if !event.Success {
		attrs = append(attrs, "error_code", string(event.Code))
		o.logger.WarnContext(ctx, "service_call", attrs...)
		return
	}
	o.logger.InfoContext(ctx, "service_call", attrs...)
}

type multiCallObserver []CallObserver

func (m multiCallObserver) ObserveCall(ctx context.Context, event CallEvent) {
	for _, o := range m {
		o.ObserveCall(ctx, event)
	}
}

// MultiCallObserver fans events out to every non-nil observer.
func MultiCallObserver(observers ...CallObserver) CallObserver {
	var out multiCallObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return NoopCallObserver{}
	case 1:
		return out[0]
	}
	return out
}
