// Package memory keeps projections in process memory. Each handled message
// gets a unit of work that sees its own pending changes and publishes them
// to the table on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
)

// ErrUnknownProjection is returned by Update for a projection that was
// neither read nor inserted in the same unit of work and has no primary key
// to identify it.
var ErrUnknownProjection = errors.New("memory: projection is not tracked by this store")

// Table holds the committed rows of one projection type.
type Table[P any] struct {
	schema *binding.Schema
	// writer serialises units of work; Create waits on it with the caller's
	// context.
	writer chan struct{}

	mu   sync.RWMutex
	rows []P
}

// NewTable creates an empty table. P must be a struct type.
func NewTable[P any]() (*Table[P], error) {
	schema, err := binding.SchemaOf[P]()
	if err != nil {
		return nil, err
	}
	return &Table[P]{schema: schema, writer: make(chan struct{}, 1)}, nil
}

// MustNewTable is NewTable for package-level declarations and tests.
func MustNewTable[P any]() *Table[P] {
	t, err := NewTable[P]()
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns a copy of the committed rows.
func (t *Table[P]) Rows() []P {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]P, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len reports the number of committed rows.
func (t *Table[P]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Find returns copies of the committed rows matching every filter.
func (t *Table[P]) Find(filters ...strategy.FilterValue) []P {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []P
	for i := range t.rows {
		if matches(t.schema, &t.rows[i], filters) {
			out = append(out, t.rows[i])
		}
	}
	return out
}

// Factory opens a unit of work on a Table for every handled message.
type Factory[P any] struct {
	table *Table[P]
}

// NewFactory wraps table.
func NewFactory[P any](table *Table[P]) *Factory[P] {
	return &Factory[P]{table: table}
}

// Table returns the backing table.
func (f *Factory[P]) Table() *Table[P] { return f.table }

// Create waits until no other unit of work is open and snapshots the table.
func (f *Factory[P]) Create(ctx context.Context) (strategy.Store[P], error) {
	select {
	case f.table.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Store[P]{table: f.table, working: f.table.Rows(), tracked: make(map[*P]int)}, nil
}

// Close has nothing to release.
func (f *Factory[P]) Close() error { return nil }

// Store is one unit of work on a Table.
type Store[P any] struct {
	table   *Table[P]
	working []P
	// tracked maps projections handed out by Read or accepted by Insert to
	// their working row.
	tracked map[*P]int
	done    bool
	closed  bool
}

func (s *Store[P]) Read(_ context.Context, filters []strategy.FilterValue) ([]*P, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if err := checkFilters(s.table.schema, filters); err != nil {
		return nil, err
	}
	var out []*P
	for i := range s.working {
		if !matches(s.table.schema, &s.working[i], filters) {
			continue
		}
		p := new(P)
		*p = s.working[i]
		s.tracked[p] = i
		out = append(out, p)
	}
	return out, nil
}

func (s *Store[P]) Insert(_ context.Context, projection *P) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.working = append(s.working, *projection)
	s.tracked[projection] = len(s.working) - 1
	return nil
}

func (s *Store[P]) Update(_ context.Context, projection *P) error {
	if err := s.usable(); err != nil {
		return err
	}
	i, ok := s.tracked[projection]
	if !ok {
		i, ok = s.byPrimaryKey(projection)
	}
	if !ok {
		return ErrUnknownProjection
	}
	s.working[i] = *projection
	return nil
}

func (s *Store[P]) Remove(_ context.Context, filters []strategy.FilterValue) error {
	if err := s.usable(); err != nil {
		return err
	}
	if err := checkFilters(s.table.schema, filters); err != nil {
		return err
	}
	kept := s.working[:0:0]
	index := make(map[int]int, len(s.working))
	for i := range s.working {
		if matches(s.table.schema, &s.working[i], filters) {
			continue
		}
		index[i] = len(kept)
		kept = append(kept, s.working[i])
	}
	for p, i := range s.tracked {
		if j, ok := index[i]; ok {
			s.tracked[p] = j
		} else {
			delete(s.tracked, p)
		}
	}
	s.working = kept
	return nil
}

// Commit publishes the working rows to the table.
func (s *Store[P]) Commit(context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.table.mu.Lock()
	s.table.rows = s.working
	s.table.mu.Unlock()
	s.done = true
	return nil
}

// Close discards uncommitted changes and releases the table. It is safe to
// call more than once.
func (s *Store[P]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.working = nil
	s.tracked = nil
	<-s.table.writer
	return nil
}

func (s *Store[P]) usable() error {
	switch {
	case s.closed:
		return errors.New("memory: store is closed")
	case s.done:
		return errors.New("memory: store is already committed")
	}
	return nil
}

func (s *Store[P]) byPrimaryKey(projection *P) (int, bool) {
	pk, ok := s.table.schema.PrimaryKey()
	if !ok {
		return 0, false
	}
	want := pk.Value(reflect.ValueOf(projection).Elem()).Interface()
	for i := range s.working {
		if binding.Equal(pk.Value(reflect.ValueOf(&s.working[i]).Elem()), want) {
			return i, true
		}
	}
	return 0, false
}

func matches[P any](schema *binding.Schema, row *P, filters []strategy.FilterValue) bool {
	v := reflect.ValueOf(row).Elem()
	for _, f := range filters {
		if !schema.Matches(v, f.Field, f.Value) {
			return false
		}
	}
	return true
}

func checkFilters(schema *binding.Schema, filters []strategy.FilterValue) error {
	for _, f := range filters {
		if _, ok := schema.Column(f.Field); !ok {
			return fmt.Errorf("memory: %s has no field %q", schema.Type, f.Field)
		}
	}
	return nil
}
