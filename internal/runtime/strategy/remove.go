package strategy

import (
	"context"

	"github.com/drblury/projectionflow/internal/runtime/logging"
)

type removeStrategy[M, P any] struct {
	base[M, P]
	filters Filters[M]
}

func (s *removeStrategy[M, P]) Handle(ctx context.Context, msg M, store Store[P]) error {
	values := s.filters.Values(msg)
	s.log.Debug("Removing projections", logging.LogFields{"filters": describeFilters(values)})
	if err := store.Remove(ctx, values); err != nil {
		return s.storeFailed("remove", err, logging.LogFields{"filters": describeFilters(values)})
	}
	return nil
}
