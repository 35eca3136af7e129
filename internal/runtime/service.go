package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/projectionflow/internal/runtime/config"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	"github.com/drblury/projectionflow/transport"
	_ "github.com/drblury/projectionflow/transport/transports"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	// Transport replaces the transport built from the registry.
	Transport *transport.Transport
	// TransportRegistry defaults to transport.DefaultRegistry.
	TransportRegistry *transport.Registry
	ErrorClassifier   ErrorClassifier
	// MetricsRegisterer defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// Service hosts denormalizers on a Watermill router: it subscribes to the
// configured transport and feeds every message to the registered
// Denormalizer through the middleware chain.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher    message.Publisher
	subscriber   message.Subscriber
	router       *message.Router
	capabilities transport.Capabilities

	handlers   []*HandlerInfo
	handlersMu sync.RWMutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	errorClassifier   ErrorClassifier
	metricsRegisterer prometheus.Registerer
}

// NewService constructs a Service for the supplied configuration. It panics
// when the transport or router cannot be built. Register denormalizers on
// the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	if conf == nil {
		panic(errspkg.ErrConfigRequired)
	}
	if log == nil {
		panic(errspkg.ErrLoggerRequired)
	}
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating projection service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	s := &Service{
		Conf:              conf,
		Logger:            log,
		errorClassifier:   deps.ErrorClassifier,
		metricsRegisterer: deps.MetricsRegisterer,
	}
	if s.metricsRegisterer == nil {
		s.metricsRegisterer = prometheus.DefaultRegisterer
	}

	registry := deps.TransportRegistry
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	var tr transport.Transport
	if deps.Transport != nil {
		tr = *deps.Transport
	} else {
		built, err := registry.Build(ctx, conf, wmLogger)
		if err != nil {
			panic(fmt.Errorf("build %s transport: %w", conf.PubSubSystem, err))
		}
		tr = built
	}
	s.publisher = tr.Publisher
	s.subscriber = tr.Subscriber

	s.capabilities = registry.GetCapabilities(conf.PubSubSystem)
	if !s.capabilities.SupportsOrdering {
		log.Info("Transport does not guarantee delivery order, projections updated by several message types may observe them out of order", loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
		})
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		panic(err)
	}

	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	s.registerConfiguredMiddlewares(deps)

	return s
}

// Start runs the underlying Watermill router until the provided context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once the router consumes messages.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router and closes the transport.
func (s *Service) Close() error {
	return errors.Join(
		s.router.Close(),
		transport.Transport{Publisher: s.publisher, Subscriber: s.subscriber}.Close(),
	)
}

// Capabilities describes the delivery guarantees of the configured transport.
func (s *Service) Capabilities() transport.Capabilities {
	return s.capabilities
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			panic(fmt.Sprintf("failed to register middleware %s: %v", name, err))
		}
	}
}

func (s *Service) getErrorClassifier() ErrorClassifier {
	if s.errorClassifier == nil {
		return DefaultErrorClassifier
	}
	return s.errorClassifier
}

// RegisterHTTPHandler serves handler on port once the Service starts.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
