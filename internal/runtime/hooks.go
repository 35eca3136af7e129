package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/projectionflow/internal/runtime/metadata"
)

// HandleContext describes one message being applied to projections.
type HandleContext struct {
	// MessageType is the route name the message was dispatched to.
	MessageType string
	// Projection is the projection type name.
	Projection string
	// Strategy is the configured strategy kind. Empty when the hook runs as
	// router middleware.
	Strategy string
	// HandlerName and MessageUUID are only known when the message came in
	// through a Service subscription.
	HandlerName string
	MessageUUID string
	Context     context.Context
	StartedAt   time.Time
	// Duration is set for OnDone and OnError.
	Duration time.Duration
}

// HandleHooks defines optional callbacks around a dispatch. Nil hooks are
// skipped.
type HandleHooks struct {
	OnStart func(ctx HandleContext)
	OnDone  func(ctx HandleContext)
	OnError func(ctx HandleContext, err error)
}

// Merge returns hooks that call h first and then other.
func (h HandleHooks) Merge(other HandleHooks) HandleHooks {
	return HandleHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func (h HandleHooks) start(ctx HandleContext) {
	if h.OnStart != nil {
		h.OnStart(ctx)
	}
}

func (h HandleHooks) finish(ctx HandleContext, err error) {
	if err != nil {
		if h.OnError != nil {
			h.OnError(ctx, err)
		}
		return
	}
	if h.OnDone != nil {
		h.OnDone(ctx)
	}
}

func chainHooks(a, b func(HandleContext)) func(HandleContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandleContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(HandleContext, error)) func(HandleContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandleContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// HooksMiddleware runs hooks around every handler of the router, using the
// message metadata to fill the context.
func HooksMiddleware(hooks HandleHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "handle_hooks",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return hooksMiddleware(hooks), nil
		},
	}
}

func hooksMiddleware(hooks HandleHooks) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			hc := HandleContext{
				MessageType: msg.Metadata.Get(metadatapkg.MessageType),
				HandlerName: message.HandlerNameFromCtx(msg.Context()),
				MessageUUID: msg.UUID,
				Context:     msg.Context(),
				StartedAt:   time.Now(),
			}
			hooks.start(hc)

			msgs, err := h(msg)

			hc.Duration = time.Since(hc.StartedAt)
			hooks.finish(hc, err)
			return msgs, err
		}
	}
}

// LoggingHooks logs every dispatch: start and success at debug, failures at
// error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) HandleHooks {
	return HandleHooks{
		OnStart: func(ctx HandleContext) {
			logger.Debug("Projection handling started", hookFields(ctx))
		},
		OnDone: func(ctx HandleContext) {
			fields := hookFields(ctx)
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Debug("Projection handling completed", fields)
		},
		OnError: func(ctx HandleContext, err error) {
			fields := hookFields(ctx)
			fields["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Error("Projection handling failed", err, fields)
		},
	}
}

// AlertingHooks calls alert for every failed dispatch.
func AlertingHooks(alert func(ctx HandleContext, err error)) HandleHooks {
	return HandleHooks{OnError: alert}
}

func hookFields(ctx HandleContext) loggingpkg.LogFields {
	fields := loggingpkg.LogFields{"message_type": ctx.MessageType}
	if ctx.Projection != "" {
		fields["projection_type"] = ctx.Projection
	}
	if ctx.Strategy != "" {
		fields["strategy"] = ctx.Strategy
	}
	if ctx.HandlerName != "" {
		fields["handler"] = ctx.HandlerName
	}
	if ctx.MessageUUID != "" {
		fields["message_uuid"] = ctx.MessageUUID
	}
	return fields
}
