package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/projectionflow/internal/runtime/codec"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	idspkg "github.com/drblury/projectionflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/projectionflow/internal/runtime/metadata"
)

// Producer emits messages that a Denormalizer on the other side of the
// transport can route.
type Producer interface {
	Publish(ctx context.Context, topic string, msg any, md metadatapkg.Metadata) error
}

// NewMessage encodes msg and stamps the routing headers: message_type (the
// name MessageName reports unless md already carries one) and content_type.
func NewMessage(msg any, md metadatapkg.Metadata) (*message.Message, error) {
	if msg == nil {
		return nil, errspkg.ErrMessageRequired
	}

	payload, contentType, err := codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message payload: %w", err)
	}

	out := message.NewMessage(idspkg.CreateULID(), payload)
	md.Apply(out)
	if out.Metadata.Get(metadatapkg.MessageType) == "" {
		out.Metadata.Set(metadatapkg.MessageType, MessageName(msg))
	}
	out.Metadata.Set(metadatapkg.ContentType, contentType)
	return out, nil
}

// Publish encodes msg and publishes it to topic.
func Publish(ctx context.Context, publisher message.Publisher, topic string, msg any, md metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	out, err := NewMessage(msg, md)
	if err != nil {
		return err
	}

	if ctx != nil {
		out.SetContext(ctx)
	}

	return publisher.Publish(topic, out)
}

// Publish emits msg using the Service publisher.
func (s *Service) Publish(ctx context.Context, topic string, msg any, md metadatapkg.Metadata) error {
	if s == nil {
		return errors.New("projection service is nil")
	}
	return Publish(ctx, s.publisher, topic, msg, md)
}
