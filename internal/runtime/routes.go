package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/codec"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
)

// route erases the message type of a registration so routes for different
// message types share one table.
type route[P any] interface {
	name() string
	messageType() string
	kind() strategy.Kind
	warm()
	bind(msg any) (func(context.Context, strategy.Store[P]) error, error)
	decode(payload []byte, contentType string) (any, error)
}

type typedRoute[M, P any] struct {
	routeName string
	factory   *strategy.Factory[M, P]
	decoder   codec.Decoder[M]
	// strategy builds on first call and returns the same value afterwards,
	// also under concurrent first dispatch.
	strategy func() strategy.Strategy[M, P]
}

func newTypedRoute[M, P any](name string, factory *strategy.Factory[M, P], decoder codec.Decoder[M]) *typedRoute[M, P] {
	return &typedRoute[M, P]{
		routeName: name,
		factory:   factory,
		decoder:   decoder,
		strategy:  sync.OnceValue(factory.Create),
	}
}

func (r *typedRoute[M, P]) name() string { return r.routeName }

func (r *typedRoute[M, P]) messageType() string { return binding.TypeName[M]() }

func (r *typedRoute[M, P]) kind() strategy.Kind { return r.factory.Kind() }

func (r *typedRoute[M, P]) warm() { r.strategy() }

func (r *typedRoute[M, P]) bind(msg any) (func(context.Context, strategy.Store[P]) error, error) {
	typed, ok := msg.(M)
	if !ok {
		return nil, fmt.Errorf("%w: route %s expects %s, got %T", errspkg.ErrMessageTypeMismatch, r.routeName, r.messageType(), msg)
	}
	s := r.strategy()
	return func(ctx context.Context, store strategy.Store[P]) error {
		return s.Handle(ctx, typed, store)
	}, nil
}

func (r *typedRoute[M, P]) decode(payload []byte, contentType string) (any, error) {
	return r.decoder.Decode(payload, contentType)
}
