// Package codec turns transport payloads into typed messages and back.
package codec

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/projectionflow/internal/runtime/jsoncodec"
	"github.com/drblury/projectionflow/internal/runtime/metadata"
)

var (
	protoJSONUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
	protoJSONMarshal   = protojson.MarshalOptions{EmitUnpopulated: true}
)

// Decoder builds a message of type M from a payload. contentType is the
// value of the content_type metadata key and may be empty.
type Decoder[M any] interface {
	Decode(payload []byte, contentType string) (M, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc[M any] func(payload []byte, contentType string) (M, error)

func (f DecoderFunc[M]) Decode(payload []byte, contentType string) (M, error) {
	return f(payload, contentType)
}

// JSON decodes payloads with sonic. Pointer message types are allocated
// before decoding.
func JSON[M any]() Decoder[M] {
	return DecoderFunc[M](func(payload []byte, _ string) (M, error) {
		out := allocate[M]()
		target := any(&out)
		if isPointer[M]() {
			target = any(out)
		}
		if err := jsoncodec.Unmarshal(payload, target); err != nil {
			var zero M
			return zero, fmt.Errorf("decode %s: %w", reflect.TypeFor[M](), err)
		}
		return out, nil
	})
}

// Proto decodes protobuf messages. Binary payloads are selected by the
// protobuf content type; everything else is read as protojson.
func Proto[M proto.Message]() Decoder[M] {
	return protoDecoder[M]()
}

func protoDecoder[M any]() Decoder[M] {
	return DecoderFunc[M](func(payload []byte, contentType string) (M, error) {
		var zero M
		prototype, ok := any(zero).(proto.Message)
		if !ok {
			return zero, fmt.Errorf("decode %s: not a protobuf message", reflect.TypeFor[M]())
		}
		msg := prototype.ProtoReflect().New().Interface()

		var err error
		if contentType == metadata.ContentTypeProtobuf {
			err = proto.Unmarshal(payload, msg)
		} else {
			err = protoJSONUnmarshal.Unmarshal(payload, msg)
		}
		if err != nil {
			return zero, fmt.Errorf("decode %s: %w", reflect.TypeFor[M](), err)
		}
		return msg.(M), nil
	})
}

var protoMessageType = reflect.TypeFor[proto.Message]()

// For picks Proto for protobuf message types and JSON for everything else.
func For[M any]() Decoder[M] {
	if reflect.TypeFor[M]().Implements(protoMessageType) {
		return protoDecoder[M]()
	}
	return JSON[M]()
}

// Encode renders msg for publishing and reports the content type to attach.
// Protobuf messages are written as protojson.
func Encode(msg any) ([]byte, string, error) {
	if pm, ok := msg.(proto.Message); ok {
		payload, err := protoJSONMarshal.Marshal(pm)
		if err != nil {
			return nil, "", fmt.Errorf("encode %T: %w", msg, err)
		}
		return payload, metadata.ContentTypeJSON, nil
	}
	payload, err := jsoncodec.Marshal(msg)
	if err != nil {
		return nil, "", fmt.Errorf("encode %T: %w", msg, err)
	}
	return payload, metadata.ContentTypeJSON, nil
}

// EncodeBinary renders a protobuf message in wire format.
func EncodeBinary(msg proto.Message) ([]byte, string, error) {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, "", fmt.Errorf("encode %T: %w", msg, err)
	}
	return payload, metadata.ContentTypeProtobuf, nil
}

func isPointer[M any]() bool {
	return reflect.TypeFor[M]().Kind() == reflect.Pointer
}

func allocate[M any]() M {
	var out M
	if isPointer[M]() {
		out = reflect.New(reflect.TypeFor[M]().Elem()).Interface().(M)
	}
	return out
}
