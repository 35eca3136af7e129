/*
Package runtime provides the projection engine behind projectionflow.

# Architecture Overview

A Denormalizer owns a route table keyed by message type name. Each route
holds a strategy.Factory that records how messages of one type change
projections of one type: insert a new row, update matching rows, upsert a
keyed row, remove matching rows, or translate into other messages first.
The strategy itself is built lazily on the first dispatch and reused after
that, so configuration can be finished after routes are registered.

Every dispatch opens a store session from the StoreFactory, runs the
strategy, commits on success and always closes the session.

# Package Structure

## Denormalizer (denormalizer.go, routes.go)

  - On / OnNamed: register a route and return its strategy factory
  - Handle / Dispatch: apply an in-process message
  - HandlePayload: decode a transport payload with the route codec
  - Finalize: build every strategy up front

## Service (service.go, registration.go)

The Service struct hosts a Watermill router, the configured transport and
the middleware chain. RegisterDenormalizer subscribes a Denormalizer to a
queue and routes each message by its message_type header.

## Middleware (middleware.go)

  - CorrelationID: stamps a ULID when the producer did not
  - LogMessages: debug logging of payloads
  - Tracer: OpenTelemetry spans per message
  - Metrics: Watermill router metrics on Prometheus
  - Retry: exponential backoff for transient store failures
  - PoisonQueue: forwards permanent failures
  - Recoverer: panic recovery

## Stats & Hooks (models.go, hooks.go)

Per-handler counters, latency percentiles and error categories, plus
OnStart, OnDone and OnError callbacks around each dispatch.

## Publishing (publisher.go)

Encodes messages and sets the routing headers the Denormalizer reads.

# Sub-packages

  - binding/: typed field references and cached struct schemas
  - codec/: JSON and protobuf payload decoders
  - config/: Service configuration with validation
  - errors/: Sentinel errors and error types
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Message header keys
  - metrics/: Prometheus collectors for dispatches
  - strategy/: Filters, mappers, keys, builders and the five strategies

# Usage Example

	d := runtime.NewDenormalizer[OrderView](stores, logger)
	runtime.On[OrderPlaced](d).Save().
		WithKey(strategy.KeyBy(orderID, func(m OrderPlaced) string { return m.OrderID })).
		With(strategy.Add(total, func(m OrderPlaced) int64 { return m.Amount }))

	svc := runtime.NewService(cfg, logger, ctx, runtime.ServiceDependencies{})
	_ = runtime.RegisterDenormalizer(svc, runtime.DenormalizerRegistration[OrderView]{
		Name:         "order-view",
		ConsumeQueue: "orders",
		Denormalizer: d,
	})
	_ = svc.Start(ctx)
*/
package runtime
