package services

import (
	"context"
	"log/slog"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// EventObserver receives events after their mutation is committed, in
// sequence order. Observers run under the engine lock and must not call back
// into the engine.
type EventObserver interface {
	Observe(ctx context.Context, e types.Event)
}

type EventObserverFunc func(ctx context.Context, e types.Event)

func (f EventObserverFunc) Observe(ctx context.Context, e types.Event) { f(ctx, e) }

type slogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver writes one audit record per event.
func NewSlogObserver(logger *slog.Logger) EventObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return slogObserver{logger: logger}
}

func (o slogObserver) Observe(ctx context.Context, e types.Event) {
	attrs := []slog.Attr{
		slog.Int64("seq", e.Seq),
		slog.String("event_uuid", e.UUID),
	}
	if e.ActionID != nil {
		attrs = append(attrs, slog.Int64("action_id", int64(*e.ActionID)))
	}
	switch e.Kind {
	case types.EventRosterChanged:
		attrs = append(attrs, slog.Int("roster_size", len(e.Members)))
	case types.EventActionCreated, types.EventActionExecuted:
		attrs = append(attrs,
			slog.String("target", string(e.Target)),
			slog.String("description", e.Description),
			slog.Int("payload_size", len(e.Payload)),
		)
	case types.EventApproval:
		attrs = append(attrs, slog.String("approver", string(e.Approver)))
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "multisig."+string(e.Kind), attrs...)
}
