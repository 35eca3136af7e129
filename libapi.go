package projectionflow

import (
	"context"

	"golang.org/x/exp/constraints"
	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/drblury/projectionflow/internal/runtime"
	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/codec"
	configpkg "github.com/drblury/projectionflow/internal/runtime/config"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	idspkg "github.com/drblury/projectionflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/projectionflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/projectionflow/internal/runtime/metadata"
	metricspkg "github.com/drblury/projectionflow/internal/runtime/metrics"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
	storepkg "github.com/drblury/projectionflow/store"
	transportpkg "github.com/drblury/projectionflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Denormalizer[P any]             = runtimepkg.Denormalizer[P]
	DenormalizerOption              = runtimepkg.DenormalizerOption
	DenormalizerRegistration[P any] = runtimepkg.DenormalizerRegistration[P]
	RouteOption                     = runtimepkg.RouteOption
	Named                           = runtimepkg.Named
	MessageHandlerRegistration      = runtimepkg.MessageHandlerRegistration

	Factory[M, P any]       = strategy.Factory[M, P]
	Strategy[M, P any]      = strategy.Strategy[M, P]
	StrategyKind            = strategy.Kind
	InsertBuilder[M, P any] = strategy.InsertBuilder[M, P]
	UpdateBuilder[M, P any] = strategy.UpdateBuilder[M, P]
	SaveBuilder[M, P any]   = strategy.SaveBuilder[M, P]
	RemoveBuilder[M, P any] = strategy.RemoveBuilder[M, P]

	Store[P any]            = strategy.Store[P]
	StoreFactory[P any]     = strategy.StoreFactory[P]
	StoreFactoryFunc[P any] = strategy.StoreFactoryFunc[P]
	Committer               = strategy.Committer
	FilterValue             = strategy.FilterValue

	Field[P, V any]   = binding.Field[P, V]
	Filter[M any]     = strategy.Filter[M]
	Filters[M any]    = strategy.Filters[M]
	Mapper[M, P any]  = strategy.Mapper[M, P]
	Mappers[M, P any] = strategy.Mappers[M, P]
	Key[M, P any]     = strategy.Key[M, P]
	Keys[M, P any]    = strategy.Keys[M, P]
	Number            = strategy.Number

	Decoder[M any]     = codec.Decoder[M]
	DecoderFunc[M any] = codec.DecoderFunc[M]

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	Producer = runtimepkg.Producer

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	UnprocessableMessageError = runtimepkg.UnprocessableMessageError
	ConfigurationError        = errspkg.ConfigurationError
	MappingError              = errspkg.MappingError
	AmbiguousMatchError       = errspkg.AmbiguousMatchError
	TranslateError            = errspkg.TranslateError
	ConfigValidationError     = errspkg.ConfigValidationError

	HandlerInfo  = runtimepkg.HandlerInfo
	HandlerStats = runtimepkg.HandlerStats

	// Dispatch lifecycle hooks
	HandleContext = runtimepkg.HandleContext
	HandleHooks   = runtimepkg.HandleHooks

	// Error classification
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory

	MetricsRecorder = metricspkg.Recorder

	// Projection stores selected from Config
	ProjectionStore[P any] = storepkg.Factory[P]

	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	RegisterMessageHandler = runtimepkg.RegisterMessageHandler

	WithMetrics = runtimepkg.WithMetrics
	WithTracer  = runtimepkg.WithTracer
	WithHooks   = runtimepkg.WithHooks
	WithName    = runtimepkg.WithName
	MessageName = runtimepkg.MessageName

	NewMetricsRecorder = metricspkg.NewRecorder
	FormatFilters      = strategy.FormatFilters

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	// Dispatch lifecycle hooks
	HooksMiddleware = runtimepkg.HooksMiddleware
	LoggingHooks    = runtimepkg.LoggingHooks
	AlertingHooks   = runtimepkg.AlertingHooks

	IsPermanent            = runtimepkg.IsPermanent
	DefaultErrorClassifier = runtimepkg.DefaultErrorClassifier

	NewMessage = runtimepkg.NewMessage
	Publish    = runtimepkg.Publish

	// Transport capabilities
	GetCapabilities = transportpkg.GetCapabilities

	// Transports are registered by name; import a transport package for its
	// side effect to make it available to NewService.
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal
	Encode    = jsoncodec.Encode
	Decode    = jsoncodec.Decode

	ErrServiceRequired        = errspkg.ErrServiceRequired
	ErrHandlerRequired        = errspkg.ErrHandlerRequired
	ErrConsumeQueueRequired   = errspkg.ErrConsumeQueueRequired
	ErrHandlerNameRequired    = errspkg.ErrHandlerNameRequired
	ErrPublisherRequired      = errspkg.ErrPublisherRequired
	ErrTopicRequired          = errspkg.ErrTopicRequired
	ErrDenormalizerRequired   = errspkg.ErrDenormalizerRequired
	ErrStoreFactoryRequired   = errspkg.ErrStoreFactoryRequired
	ErrConfigRequired         = errspkg.ErrConfigRequired
	ErrLoggerRequired         = errspkg.ErrLoggerRequired
	ErrMessageRequired        = errspkg.ErrMessageRequired
	ErrMessageTypeMissing     = errspkg.ErrMessageTypeMissing
	ErrMessageNotRouted       = errspkg.ErrMessageNotRouted
	ErrMessageTypeMismatch    = errspkg.ErrMessageTypeMismatch
	ErrConfiguration          = errspkg.ErrConfiguration
	ErrMapping                = errspkg.ErrMapping
	ErrAmbiguousMatch         = errspkg.ErrAmbiguousMatch
	ErrTranslate              = errspkg.ErrTranslate
	ErrUnsupportedStoreDriver = errspkg.ErrUnsupportedStoreDriver

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Metadata keys read and written by the projection runtime.
const (
	MetadataKeyMessageType   = metadatapkg.MessageType
	MetadataKeyContentType   = metadatapkg.ContentType
	MetadataKeyCorrelationID = metadatapkg.CorrelationID
	MetadataKeyHandler       = metadatapkg.Handler
)

// Strategy kinds reported by Factory.Kind.
const (
	KindEmpty     = strategy.KindEmpty
	KindInsert    = strategy.KindInsert
	KindUpdate    = strategy.KindUpdate
	KindSave      = strategy.KindSave
	KindRemove    = strategy.KindRemove
	KindTranslate = strategy.KindTranslate
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryNone     = runtimepkg.ErrorCategoryNone
	ErrorCategoryDecode   = runtimepkg.ErrorCategoryDecode
	ErrorCategoryMapping  = runtimepkg.ErrorCategoryMapping
	ErrorCategoryConflict = runtimepkg.ErrorCategoryConflict
	ErrorCategoryStore    = runtimepkg.ErrorCategoryStore
	ErrorCategoryOther    = runtimepkg.ErrorCategoryOther
)

func NewDenormalizer[P any](stores StoreFactory[P], log ServiceLogger, opts ...DenormalizerOption) *Denormalizer[P] {
	return runtimepkg.NewDenormalizer(stores, log, opts...)
}

// On returns the strategy factory for messages of type M.
func On[M, P any](d *Denormalizer[P], opts ...RouteOption) *Factory[M, P] {
	return runtimepkg.On[M](d, opts...)
}

func OnNamed[M, P any](d *Denormalizer[P], name string, opts ...RouteOption) *Factory[M, P] {
	return runtimepkg.OnNamed[M](d, name, opts...)
}

func Dispatch[M, P any](ctx context.Context, d *Denormalizer[P], msg M) error {
	return runtimepkg.Dispatch(ctx, d, msg)
}

func WithDecoder[M any](dec Decoder[M]) RouteOption {
	return runtimepkg.WithDecoder(dec)
}

func RegisterDenormalizer[P any](svc *Service, cfg DenormalizerRegistration[P]) error {
	return runtimepkg.RegisterDenormalizer(svc, cfg)
}

// OpenStore opens the projection store selected by cfg.StoreDriver.
func OpenStore[P any](ctx context.Context, cfg *Config) (ProjectionStore[P], error) {
	return storepkg.Open[P](ctx, cfg)
}

func NewFactory[M, P any](log ServiceLogger) *Factory[M, P] {
	return strategy.NewFactory[M, P](log)
}

func Translate[M, T, P any](f *Factory[M, P], translate func(M) ([]T, error)) *Factory[T, P] {
	return strategy.Translate(f, translate)
}

func TranslateOne[M, T, P any](f *Factory[M, P], convert func(M) T) *Factory[T, P] {
	return strategy.TranslateOne(f, convert)
}

func Bind[P, V any](name string) (Field[P, V], error) {
	return binding.Bind[P, V](name)
}

func MustBind[P, V any](name string) Field[P, V] {
	return binding.MustBind[P, V](name)
}

func Accessor[P, V any](name string, ref func(*P) *V) Field[P, V] {
	return binding.Accessor(name, ref)
}

func Do[M, P any](action func(msg M, projection *P) error) Mapper[M, P] {
	return strategy.Do(action)
}

func Set[M, P, V any](field Field[P, V], value V) Mapper[M, P] {
	return strategy.Set[M](field, value)
}

func Map[M, P, V any](field Field[P, V], extract func(M) V) Mapper[M, P] {
	return strategy.Map(field, extract)
}

func MapByName[M, P, V any](field Field[P, V]) (Mapper[M, P], error) {
	return strategy.MapByName[M](field)
}

// MustMapByName panics when M has no field matching field.
func MustMapByName[M, P, V any](field Field[P, V]) Mapper[M, P] {
	return must(strategy.MapByName[M](field))
}

func Add[M, P any, V Number](field Field[P, V], extract func(M) V) Mapper[M, P] {
	return strategy.Add(field, extract)
}

func AddByName[M, P any, V Number](field Field[P, V]) (Mapper[M, P], error) {
	return strategy.AddByName[M](field)
}

func MustAddByName[M, P any, V Number](field Field[P, V]) Mapper[M, P] {
	return must(strategy.AddByName[M](field))
}

func Substract[M, P any, V Number](field Field[P, V], extract func(M) V) Mapper[M, P] {
	return strategy.Substract(field, extract)
}

func SubstractByName[M, P any, V Number](field Field[P, V]) (Mapper[M, P], error) {
	return strategy.SubstractByName[M](field)
}

func MustSubstractByName[M, P any, V Number](field Field[P, V]) Mapper[M, P] {
	return must(strategy.SubstractByName[M](field))
}

func Increment[M, P any, V constraints.Integer](field Field[P, V]) Mapper[M, P] {
	return strategy.Increment[M](field)
}

func Decrement[M, P any, V constraints.Integer](field Field[P, V]) Mapper[M, P] {
	return strategy.Decrement[M](field)
}

func NewFilter[M any](field string, extract func(M) any) Filter[M] {
	return strategy.NewFilter(field, extract)
}

func FilterBy[M, P, V any](field Field[P, V], extract func(M) V) Filter[M] {
	return strategy.FilterBy(field, extract)
}

func FilterConst[M, P, V any](field Field[P, V], value V) Filter[M] {
	return strategy.FilterConst[M](field, value)
}

func FilterByName[M, P, V any](field Field[P, V]) (Filter[M], error) {
	return strategy.FilterByName[M](field)
}

func MustFilterByName[M, P, V any](field Field[P, V]) Filter[M] {
	return must(strategy.FilterByName[M](field))
}

func KeyBy[M, P, V any](field Field[P, V], extract func(M) V) Key[M, P] {
	return strategy.KeyBy(field, extract)
}

func KeyConst[M, P, V any](field Field[P, V], value V) Key[M, P] {
	return strategy.KeyConst[M](field, value)
}

func KeyByName[M, P, V any](field Field[P, V]) (Key[M, P], error) {
	return strategy.KeyByName[M](field)
}

func MustKeyByName[M, P, V any](field Field[P, V]) Key[M, P] {
	return must(strategy.KeyByName[M](field))
}

func JSONDecoder[M any]() Decoder[M] {
	return codec.JSON[M]()
}

func ProtoDecoder[M proto.Message]() Decoder[M] {
	return codec.Proto[M]()
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
