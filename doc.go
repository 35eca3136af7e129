// Package projectionflow keeps read models up to date from a stream of domain
// messages. Instead of writing CRUD code per message, you declare for each
// message type how it changes a projection: AddNew inserts a row, Update
// rewrites matching rows, Save upserts one keyed row, Remove deletes matching
// rows and Translate turns a message into other messages first.
//
// A Denormalizer holds those declarations for one projection type. On
// returns the strategy factory for a message type; its builders take
// Filters (which rows), Mappers (what to write) and Keys (both at once).
// Fields are referenced with Bind or Accessor so every name and type is
// checked when the route is configured, not when the first message arrives.
// The strategy behind a route is built on first use and reused afterwards;
// Finalize builds all of them up front.
//
// Every handled message gets its own store session from a StoreFactory. The
// session is committed when the strategy succeeds and closed either way.
// OpenStore picks an in-memory, SQLite, PostgreSQL or bbolt store from Config.
//
// # Consuming from a broker
//
// Service hosts a Watermill router on one of the registered transports:
//   - channel: In-memory Go channels for testing
//   - kafka: Consumer groups on Kafka
//   - rabbitmq: AMQP durable queues
//   - nats: NATS core subscriptions
//   - aws: SQS with LocalStack support
//
// RegisterDenormalizer subscribes a Denormalizer to a queue and routes each
// message by its message_type header. Publish and NewMessage set that header
// for you.
//
// # Middleware
//
// The default chain stamps correlation IDs, logs payloads, opens a trace
// span, records Prometheus metrics, retries transient failures and forwards
// permanent ones (decode, mapping, ambiguous key) to the poison queue. Custom
// middleware can be added via ServiceDependencies.Middlewares, and
// HooksMiddleware wires OnStart, OnDone and OnError callbacks around every
// handler.
package projectionflow
