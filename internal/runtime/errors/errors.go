package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired        = sterrors.New("projectionflow: projection service is required")
	ErrConsumeQueueRequired   = sterrors.New("projectionflow: consume queue is required")
	ErrHandlerNameRequired    = sterrors.New("projectionflow: handler name is required")
	ErrHandlerRequired        = sterrors.New("projectionflow: handler is required")
	ErrPublisherRequired      = sterrors.New("projectionflow: publisher is required")
	ErrTopicRequired          = sterrors.New("projectionflow: topic is required")
	ErrDenormalizerRequired   = sterrors.New("projectionflow: denormalizer is required")
	ErrStoreFactoryRequired   = sterrors.New("projectionflow: store factory is required")
	ErrConfigRequired         = sterrors.New("projectionflow: configuration is required")
	ErrLoggerRequired         = sterrors.New("projectionflow: logger is required")
	ErrMessageRequired        = sterrors.New("projectionflow: message is required")
	ErrMessageTypeMissing     = sterrors.New("projectionflow: message type metadata is missing")
	ErrMessageNotRouted       = sterrors.New("projectionflow: no projection route registered for message")
	ErrMessageTypeMismatch    = sterrors.New("projectionflow: message does not match the route type")
	ErrConfiguration          = sterrors.New("projectionflow: invalid projection configuration")
	ErrMapping                = sterrors.New("projectionflow: failed to map message on projection")
	ErrAmbiguousMatch         = sterrors.New("projectionflow: more than one projection matches the key")
	ErrTranslate              = sterrors.New("projectionflow: failed to translate message")
	ErrUnsupportedStoreDriver = sterrors.New("projectionflow: unsupported store driver")
)

// ConfigurationError reports a binding or builder problem detected while a
// route is being configured.
type ConfigurationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrConfiguration, e.Type, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(typeName, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Type: typeName, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MappingError wraps a failure raised while applying a mapper. Message and
// Projection carry the type names involved.
type MappingError struct {
	Message    string
	Projection string
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("projectionflow: failed to map message %s on projection %s: %v", e.Message, e.Projection, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrMapping }

// AmbiguousMatchError is returned by upserts when the key filters select more
// than one stored projection.
type AmbiguousMatchError struct {
	Count   int
	Filters string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s: %d projections match %s", ErrAmbiguousMatch, e.Count, e.Filters)
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguousMatch }

// TranslateError wraps a failure of the user supplied translate function.
type TranslateError struct {
	Message string
	Err     error
}

func (e *TranslateError) Error() string {
	return fmt.Sprintf("projectionflow: failed to translate message %s: %v", e.Message, e.Err)
}

func (e *TranslateError) Unwrap() error { return e.Err }

func (e *TranslateError) Is(target error) bool { return target == ErrTranslate }

// ConfigValidationError marks a Config that failed validation.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "projectionflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
