package strategy

import (
	"context"

	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// insertStrategy creates a fresh projection for every message. It never
// reads from the store.
type insertStrategy[M, P any] struct {
	base[M, P]
	mappers Mappers[M, P]
}

func (s *insertStrategy[M, P]) Handle(ctx context.Context, msg M, store Store[P]) error {
	projection := new(P)
	if err := s.apply(s.mappers, msg, projection); err != nil {
		return err
	}
	s.log.Debug("Inserting projection", logging.LogFields{"projection": describe(projection)})
	if err := store.Insert(ctx, projection); err != nil {
		return s.storeFailed("insert", err, logging.LogFields{"projection": describe(projection)})
	}
	return nil
}
