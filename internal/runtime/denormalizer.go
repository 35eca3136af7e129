package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/codec"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	metricspkg "github.com/drblury/projectionflow/internal/runtime/metrics"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
)

const tracerName = "github.com/drblury/projectionflow"

// Named lets a message choose the route it is dispatched to. Messages that
// do not implement it are routed by their Go type name.
type Named interface {
	MessageName() string
}

// MessageName returns the route name msg is dispatched under.
func MessageName(msg any) string {
	if n, ok := msg.(Named); ok {
		if name := n.MessageName(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", msg)
}

// DenormalizerOption customises a Denormalizer.
type DenormalizerOption func(*denormalizerOptions)

type denormalizerOptions struct {
	metrics *metricspkg.Recorder
	tracer  trace.Tracer
	hooks   HandleHooks
}

// WithMetrics records every dispatch on r.
func WithMetrics(r *metricspkg.Recorder) DenormalizerOption {
	return func(o *denormalizerOptions) { o.metrics = r }
}

// WithTracer replaces the global otel tracer.
func WithTracer(t trace.Tracer) DenormalizerOption {
	return func(o *denormalizerOptions) { o.tracer = t }
}

// WithHooks adds lifecycle hooks. Repeated options are merged in order.
func WithHooks(h HandleHooks) DenormalizerOption {
	return func(o *denormalizerOptions) { o.hooks = o.hooks.Merge(h) }
}

// Denormalizer routes messages to the strategy configured for their type and
// applies them to projections of type P held by a per-message store.
type Denormalizer[P any] struct {
	stores  strategy.StoreFactory[P]
	log     loggingpkg.ServiceLogger
	metrics *metricspkg.Recorder
	tracer  trace.Tracer
	hooks   HandleHooks

	mu     sync.RWMutex
	routes map[string]route[P]
	order  []string
}

// NewDenormalizer creates a Denormalizer without routes. A nil logger
// discards output.
func NewDenormalizer[P any](stores strategy.StoreFactory[P], log loggingpkg.ServiceLogger, opts ...DenormalizerOption) *Denormalizer[P] {
	if log == nil {
		log = loggingpkg.NopLogger()
	}
	cfg := denormalizerOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	return &Denormalizer[P]{
		stores:  stores,
		log:     log.With(loggingpkg.LogFields{"projection_type": binding.TypeName[P]()}),
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
		hooks:   cfg.hooks,
		routes:  make(map[string]route[P]),
	}
}

// RouteOption customises a single route.
type RouteOption func(*routeOptions)

type routeOptions struct {
	name    string
	decoder any
}

// WithName registers the route under name instead of the Go type name.
func WithName(name string) RouteOption {
	return func(o *routeOptions) { o.name = name }
}

// WithDecoder sets the payload decoder used when the route is fed from a
// transport. The decoder must produce the route's message type.
func WithDecoder[M any](dec codec.Decoder[M]) RouteOption {
	return func(o *routeOptions) { o.decoder = dec }
}

// On returns the factory configuring how messages of type M change P.
// Calling it again for the same route returns the same factory.
func On[M, P any](d *Denormalizer[P], opts ...RouteOption) *strategy.Factory[M, P] {
	messageType := binding.TypeName[M]()
	cfg := routeOptions{name: messageType}
	for _, opt := range opts {
		opt(&cfg)
	}

	decoder := codec.For[M]()
	if cfg.decoder != nil {
		typed, ok := cfg.decoder.(codec.Decoder[M])
		if !ok {
			panic(errspkg.NewConfigurationError(messageType, "", "decoder %T does not produce %s", cfg.decoder, messageType))
		}
		decoder = typed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.routes[cfg.name]; ok {
		typed, ok := existing.(*typedRoute[M, P])
		if !ok {
			panic(errspkg.NewConfigurationError(messageType, "", "route %q is already registered for %s", cfg.name, existing.messageType()))
		}
		return typed.factory
	}

	factory := strategy.NewFactory[M, P](d.log)
	d.routes[cfg.name] = newTypedRoute(cfg.name, factory, decoder)
	d.order = append(d.order, cfg.name)
	return factory
}

// OnNamed is On with an explicit route name, for messages that carry a
// discriminator through Named or transport metadata.
func OnNamed[M, P any](d *Denormalizer[P], name string, opts ...RouteOption) *strategy.Factory[M, P] {
	return On[M](d, append(opts, WithName(name))...)
}

// Routes lists the registered route names in registration order.
func (d *Denormalizer[P]) Routes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Finalize builds every registered strategy now instead of on first use.
// Builder changes made afterwards are not picked up.
func (d *Denormalizer[P]) Finalize() {
	d.mu.RLock()
	routes := make([]route[P], 0, len(d.order))
	for _, name := range d.order {
		routes = append(routes, d.routes[name])
	}
	d.mu.RUnlock()

	for _, r := range routes {
		r.warm()
	}
}

// Handle applies msg to the projections. Messages without a route return
// ErrMessageNotRouted and no store is opened.
func (d *Denormalizer[P]) Handle(ctx context.Context, msg any) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	r, ok := d.lookup(msg)
	if !ok {
		return fmt.Errorf("%w: %s", errspkg.ErrMessageNotRouted, MessageName(msg))
	}
	return d.dispatch(ctx, r, msg)
}

// HandlePayload decodes payload with the codec of the named route and
// applies the result.
func (d *Denormalizer[P]) HandlePayload(ctx context.Context, name string, payload []byte, contentType string) error {
	r, ok := d.route(name)
	if !ok {
		return fmt.Errorf("%w: %s", errspkg.ErrMessageNotRouted, name)
	}
	msg, err := r.decode(payload, contentType)
	if err != nil {
		return &UnprocessableMessageError{MessageType: name, Payload: payload, Err: err}
	}
	return d.dispatch(ctx, r, msg)
}

// Dispatch is Handle for a statically typed message.
func Dispatch[M, P any](ctx context.Context, d *Denormalizer[P], msg M) error {
	return d.Handle(ctx, msg)
}

func (d *Denormalizer[P]) route(name string) (route[P], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.routes[name]
	return r, ok
}

func (d *Denormalizer[P]) lookup(msg any) (route[P], bool) {
	if r, ok := d.route(MessageName(msg)); ok {
		return r, true
	}
	return d.route(fmt.Sprintf("%T", msg))
}

func (d *Denormalizer[P]) dispatch(ctx context.Context, r route[P], msg any) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	kind := string(r.kind())
	hc := HandleContext{
		MessageType: r.name(),
		Projection:  binding.TypeName[P](),
		Strategy:    kind,
		StartedAt:   time.Now(),
	}
	if delivery, ok := deliveryFrom(ctx); ok {
		hc.HandlerName = delivery.handler
		hc.MessageUUID = delivery.uuid
	}

	ctx, span := d.tracer.Start(ctx, "projectionflow.handle", trace.WithAttributes(
		attribute.String("projection.message_type", hc.MessageType),
		attribute.String("projection.type", hc.Projection),
		attribute.String("projection.strategy", kind),
	))
	hc.Context = ctx
	done := d.metrics.Start(hc.MessageType, kind)
	d.hooks.start(hc)

	defer func() {
		hc.Duration = time.Since(hc.StartedAt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		done(err)
		d.hooks.finish(hc, err)
	}()

	return d.run(ctx, r, msg)
}

// run owns the store lifecycle: create, handle, commit on success and always
// close.
func (d *Denormalizer[P]) run(ctx context.Context, r route[P], msg any) (err error) {
	apply, err := r.bind(msg)
	if err != nil {
		return err
	}
	if d.stores == nil {
		return errspkg.ErrStoreFactoryRequired
	}

	fields := loggingpkg.LogFields{"message_type": r.name()}
	d.log.Trace("Handling message", fields)

	store, err := d.stores.Create(ctx)
	if err != nil {
		d.log.Error("Failed to create projection store", err, fields)
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				d.log.Error("Failed to close projection store", cerr, fields)
				err = errors.Join(err, cerr)
			}
		}()
	}

	if err := apply(ctx, store); err != nil {
		return err
	}

	if committer, ok := store.(strategy.Committer); ok {
		if err := committer.Commit(ctx); err != nil {
			d.log.Error("Failed to commit projection store", err, fields)
			return err
		}
	}
	return nil
}

type deliveryKey struct{}

type delivery struct {
	handler string
	uuid    string
}

func withDelivery(ctx context.Context, handler, uuid string) context.Context {
	return context.WithValue(ctx, deliveryKey{}, delivery{handler: handler, uuid: uuid})
}

func deliveryFrom(ctx context.Context) (delivery, bool) {
	d, ok := ctx.Value(deliveryKey{}).(delivery)
	return d, ok
}
