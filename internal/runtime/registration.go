package runtime

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/projectionflow/internal/runtime/metadata"
)

type handlerRegistration struct {
	Name         string
	ConsumeQueue string
	Subscriber   message.Subscriber
	Projection   string
	Routes       func() []string
	Handler      message.NoPublishHandlerFunc
}

// DenormalizerRegistration subscribes a Denormalizer to a queue.
type DenormalizerRegistration[P any] struct {
	Name         string
	ConsumeQueue string
	Denormalizer *Denormalizer[P]
	// Subscriber overrides the Service subscriber.
	Subscriber message.Subscriber
}

// RegisterDenormalizer feeds every message from cfg.ConsumeQueue to the
// Denormalizer. The route is taken from the message_type metadata key;
// messages without a route are acknowledged and skipped.
func RegisterDenormalizer[P any](svc *Service, cfg DenormalizerRegistration[P]) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if cfg.Denormalizer == nil {
		return errspkg.ErrDenormalizerRequired
	}
	d := cfg.Denormalizer
	name := cfg.Name
	if name == "" {
		name = binding.TypeName[P]() + "-Denormalizer"
	}

	return svc.registerHandler(handlerRegistration{
		Name:         name,
		ConsumeQueue: cfg.ConsumeQueue,
		Subscriber:   cfg.Subscriber,
		Projection:   binding.TypeName[P](),
		Routes:       d.Routes,
		Handler: func(msg *message.Message) error {
			messageType := msg.Metadata.Get(metadatapkg.MessageType)
			if messageType == "" {
				return &UnprocessableMessageError{Payload: msg.Payload, Err: errspkg.ErrMessageTypeMissing}
			}
			msg.Metadata.Set(metadatapkg.Handler, name)
			ctx := withDelivery(msg.Context(), name, msg.UUID)
			return d.HandlePayload(ctx, messageType, msg.Payload, msg.Metadata.Get(metadatapkg.ContentType))
		},
	})
}

// MessageHandlerRegistration wires a raw Watermill consumer next to the
// denormalizers, for side effects that are not projections.
type MessageHandlerRegistration struct {
	Name         string
	ConsumeQueue string
	Handler      message.NoPublishHandlerFunc
	Subscriber   message.Subscriber
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	return svc.registerHandler(handlerRegistration{
		Name:         cfg.Name,
		ConsumeQueue: cfg.ConsumeQueue,
		Subscriber:   cfg.Subscriber,
		Handler:      cfg.Handler,
	})
}

func (s *Service) registerHandler(cfg handlerRegistration) error {
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.ConsumeQueue == "" {
		return errspkg.ErrConsumeQueueRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = s.subscriber
	}

	stats := newHandlerStats()
	info := &HandlerInfo{
		Name:         cfg.Name,
		ConsumeQueue: cfg.ConsumeQueue,
		Projection:   cfg.Projection,
		Stats:        stats,
	}
	if cfg.Routes != nil {
		info.Routes = cfg.Routes()
	}

	s.handlersMu.Lock()
	s.handlers = append(s.handlers, info)
	s.handlersMu.Unlock()

	s.router.AddNoPublisherHandler(
		cfg.Name,
		cfg.ConsumeQueue,
		cfg.Subscriber,
		wrapHandlerWithStats(cfg.Handler, stats, s.getErrorClassifier(), s.Logger),
	)
	return nil
}

// Handlers lists the registered consumers.
func (s *Service) Handlers() []*HandlerInfo {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	out := make([]*HandlerInfo, len(s.handlers))
	copy(out, s.handlers)
	return out
}

func wrapHandlerWithStats(handler message.NoPublishHandlerFunc, stats *HandlerStats, classifier ErrorClassifier, log loggingpkg.ServiceLogger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		err := handler(msg)
		if errors.Is(err, errspkg.ErrMessageNotRouted) {
			stats.onIgnored()
			log.Debug("No projection route for message, acknowledging", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"message_type": msg.Metadata.Get(metadatapkg.MessageType),
			})
			return nil
		}
		stats.onFinish(time.Since(start), err, classifier)
		return err
	}
}
