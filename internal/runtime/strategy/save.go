package strategy

import (
	"context"

	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// saveStrategy upserts a single projection identified by its keys. Key
// mappers only run when the projection is created.
type saveStrategy[M, P any] struct {
	base[M, P]
	keyFilters Filters[M]
	keyMappers Mappers[M, P]
	mappers    Mappers[M, P]
}

func (s *saveStrategy[M, P]) Handle(ctx context.Context, msg M, store Store[P]) error {
	values := s.keyFilters.Values(msg)
	found, err := store.Read(ctx, values)
	if err != nil {
		return s.storeFailed("read", err, logging.LogFields{"filters": describeFilters(values)})
	}

	switch len(found) {
	case 0:
		projection := new(P)
		if err := s.apply(s.keyMappers, msg, projection); err != nil {
			return err
		}
		if err := s.apply(s.mappers, msg, projection); err != nil {
			return err
		}
		s.log.Debug("Saving new projection", logging.LogFields{"projection": describe(projection)})
		if err := store.Insert(ctx, projection); err != nil {
			return s.storeFailed("insert", err, logging.LogFields{"projection": describe(projection)})
		}
	case 1:
		projection := found[0]
		if err := s.apply(s.mappers, msg, projection); err != nil {
			return err
		}
		s.log.Debug("Saving existing projection", logging.LogFields{"projection": describe(projection)})
		if err := store.Update(ctx, projection); err != nil {
			return s.storeFailed("update", err, logging.LogFields{"projection": describe(projection)})
		}
	default:
		err := &errspkg.AmbiguousMatchError{Count: len(found), Filters: FormatFilters(values)}
		s.log.Error("Cannot save projection", err, nil)
		return err
	}
	return nil
}
