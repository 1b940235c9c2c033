package scan

import (
	"context"
)

// Event represents an event emitted during a scan lifecycle.
// All events carry the context of the operation that produced them, so
// listeners can participate in cancellation and tracing.
type Event interface {
	GetContext() context.Context
}

// EventStart indicates that a scan has started.
type EventStart struct {
	ctx context.Context

	Type Type
}

// NewEventStart creates a new [EventStart].
func NewEventStart(ctx context.Context, t Type) EventStart {
	return EventStart{ctx: ctx, Type: t}
}

func (e EventStart) GetContext() context.Context {
	return eventContext(e.ctx)
}

// EventEnd indicates that a scan has ended.
// This event carries the result of the scan, which could include an error if
// any pipeline stage failed.
type EventEnd Result

// NewEventEnd creates a new [EventEnd] wrapping the result.
func NewEventEnd(ctx context.Context, res Result) EventEnd {
	res.ctx = ctx

	return EventEnd(res)
}

func (e EventEnd) GetContext() context.Context {
	return eventContext(e.ctx)
}

// EventCancel indicates that a scan has been canceled.
type EventCancel struct {
	ctx context.Context
}

// NewEventCancel creates a new [EventCancel].
func NewEventCancel(ctx context.Context) EventCancel {
	return EventCancel{ctx: ctx}
}

func (e EventCancel) GetContext() context.Context {
	return eventContext(e.ctx)
}

// EventConfigure indicates that a runner has been configured (or re-configured).
type EventConfigure struct {
	ctx context.Context
}

// NewEventConfigure creates a new [EventConfigure].
func NewEventConfigure(ctx context.Context) EventConfigure {
	return EventConfigure{ctx: ctx}
}

func (e EventConfigure) GetContext() context.Context {
	return eventContext(e.ctx)
}

func eventContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
