// Package strategy holds the projection handling strategies and the fluent
// builders that configure them.
package strategy

import (
	"context"
	"fmt"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// Kind names a strategy variant in logs and metrics.
type Kind string

const (
	KindEmpty     Kind = "empty"
	KindInsert    Kind = "insert"
	KindUpdate    Kind = "update"
	KindSave      Kind = "save"
	KindRemove    Kind = "remove"
	KindTranslate Kind = "translate"
)

// Strategy applies one message of type M to the projections of type P held
// by store.
type Strategy[M, P any] interface {
	Handle(ctx context.Context, msg M, store Store[P]) error
}

// base carries what every strategy logs with.
type base[M, P any] struct {
	log logging.ServiceLogger
}

func newBase[M, P any](log logging.ServiceLogger, kind Kind) base[M, P] {
	return base[M, P]{log: log.With(logging.LogFields{
		"message_type":    binding.TypeName[M](),
		"projection_type": binding.TypeName[P](),
		"strategy":        string(kind),
	})}
}

func (b base[M, P]) apply(mappers Mappers[M, P], msg M, projection *P) error {
	if err := mappers.Apply(msg, projection); err != nil {
		b.log.Error("Failed to map a message on a projection", err, logging.LogFields{
			"message":    describe(msg),
			"projection": describe(projection),
		})
		return err
	}
	return nil
}

func (b base[M, P]) storeFailed(op string, err error, fields logging.LogFields) error {
	b.log.Error("Projection store "+op+" failed", err, fields)
	return err
}

func describe(v any) logging.LazyValue {
	return logging.Lazy(func() any { return fmt.Sprintf("%+v", v) })
}

func describeFilters(values []FilterValue) logging.LazyValue {
	return logging.Lazy(func() any { return FormatFilters(values) })
}

type emptyStrategy[M, P any] struct {
	base[M, P]
}

func (s emptyStrategy[M, P]) Handle(context.Context, M, Store[P]) error {
	s.log.Trace("No projection strategy configured, message ignored", nil)
	return nil
}
