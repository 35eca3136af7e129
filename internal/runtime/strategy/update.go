package strategy

import (
	"context"

	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// updateStrategy rewrites every projection matching the filters. No match is
// not an error.
type updateStrategy[M, P any] struct {
	base[M, P]
	filters Filters[M]
	mappers Mappers[M, P]
}

func (s *updateStrategy[M, P]) Handle(ctx context.Context, msg M, store Store[P]) error {
	values := s.filters.Values(msg)
	found, err := store.Read(ctx, values)
	if err != nil {
		return s.storeFailed("read", err, logging.LogFields{"filters": describeFilters(values)})
	}
	s.log.Debug("Updating projections", logging.LogFields{
		"filters": describeFilters(values),
		"matched": len(found),
	})
	for _, projection := range found {
		if projection == nil {
			continue
		}
		if err := s.apply(s.mappers, msg, projection); err != nil {
			return err
		}
		if err := store.Update(ctx, projection); err != nil {
			return s.storeFailed("update", err, logging.LogFields{"projection": describe(projection)})
		}
	}
	return nil
}
