package strategy

import (
	"context"
	"fmt"
	"strings"
)

// FilterValue is one equality predicate handed to a store. A slice of them
// is an AND, kept in declaration order.
type FilterValue struct {
	Field string
	Value any
}

func (v FilterValue) String() string { return fmt.Sprintf("%s=%v", v.Field, v.Value) }

// FormatFilters renders filter values for logs and errors.
func FormatFilters(values []FilterValue) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " AND ") + "]"
}

// Store persists projections of type P. One Store instance serves exactly
// one handled message.
type Store[P any] interface {
	Read(ctx context.Context, filters []FilterValue) ([]*P, error)
	Insert(ctx context.Context, projection *P) error
	Update(ctx context.Context, projection *P) error
	Remove(ctx context.Context, filters []FilterValue) error
}

// Committer is implemented by stores that buffer writes in a unit of work.
// Commit runs only after the strategy succeeded.
type Committer interface {
	Commit(ctx context.Context) error
}

// StoreFactory opens a fresh Store for each handled message. Stores that
// also implement io.Closer are closed once the message is done, whatever the
// outcome.
type StoreFactory[P any] interface {
	Create(ctx context.Context) (Store[P], error)
}

// StoreFactoryFunc adapts a function to StoreFactory.
type StoreFactoryFunc[P any] func(ctx context.Context) (Store[P], error)

func (f StoreFactoryFunc[P]) Create(ctx context.Context) (Store[P], error) { return f(ctx) }
