package strategy

import (
	"context"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// translateStrategy fans one message out into derived messages and hands
// each of them, in order, to the nested strategy against the same store.
// A failure stops the sequence; earlier writes are left to the store's unit
// of work.
type translateStrategy[M, T, P any] struct {
	base[M, P]
	translate func(M) ([]T, error)
	nested    Strategy[T, P]
}

func (s *translateStrategy[M, T, P]) Handle(ctx context.Context, msg M, store Store[P]) error {
	derived, err := s.translate(msg)
	if err != nil {
		err = &errspkg.TranslateError{Message: binding.TypeName[M](), Err: err}
		s.log.Error("Failed to translate message", err, logging.LogFields{"message": describe(msg)})
		return err
	}
	s.log.Debug("Translated message", logging.LogFields{
		"derived_type":  binding.TypeName[T](),
		"derived_count": len(derived),
	})
	for _, next := range derived {
		if err := s.nested.Handle(ctx, next, store); err != nil {
			return err
		}
	}
	return nil
}
