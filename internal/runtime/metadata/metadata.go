package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// Keys the projection runtime reads from and writes to message headers.
const (
	MessageType   = "message_type"
	ContentType   = "content_type"
	CorrelationID = "correlation_id"
	Handler       = "projection_handler"
)

// Content types understood by the payload codecs.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/protobuf"
)

// Metadata is the header map carried next to a message payload.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key, value string) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// MessageType returns the routing discriminator, if any.
func (m Metadata) MessageType() string { return m[MessageType] }

// FromWatermill copies Watermill headers.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// Apply writes m onto a Watermill message, overwriting existing keys.
func (m Metadata) Apply(msg *message.Message) {
	if msg.Metadata == nil {
		msg.Metadata = make(message.Metadata, len(m))
	}
	for k, v := range m {
		msg.Metadata.Set(k, v)
	}
}
