package strategy

import (
	"context"
	"sync"

	"github.com/drblury/projectionflow/internal/runtime/binding"
)

type testMessage struct {
	ValueInt16 int16
	ValueInt32 int32
	ValueInt64 int64
	Name       string
}

type translatedMessage struct {
	TranslatedValue int32
}

type testProjection struct {
	ValueInt16 int16
	ValueInt32 int32
	ValueInt64 int64
	Name       string
	Count      int
	Ratio      float64
}

var (
	fieldInt16 = binding.MustBind[testProjection, int16]("ValueInt16")
	fieldInt32 = binding.MustBind[testProjection, int32]("ValueInt32")
	fieldInt64 = binding.MustBind[testProjection, int64]("ValueInt64")
	fieldName  = binding.MustBind[testProjection, string]("Name")
	fieldCount = binding.Accessor("Count", func(p *testProjection) *int { return &p.Count })
	fieldRatio = binding.Accessor("Ratio", func(p *testProjection) *float64 { return &p.Ratio })
)

// recordingStore captures every call and serves canned read results.
type recordingStore struct {
	mu sync.Mutex

	readResult []*testProjection
	readErr    error
	insertErr  error
	updateErr  error
	removeErr  error

	reads   [][]FilterValue
	inserts []*testProjection
	updates []*testProjection
	removes [][]FilterValue
}

func (s *recordingStore) Read(_ context.Context, filters []FilterValue) ([]*testProjection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, filters)
	return s.readResult, s.readErr
}

func (s *recordingStore) Insert(_ context.Context, p *testProjection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, p)
	return s.insertErr
}

func (s *recordingStore) Update(_ context.Context, p *testProjection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, p)
	return s.updateErr
}

func (s *recordingStore) Remove(_ context.Context, filters []FilterValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes = append(s.removes, filters)
	return s.removeErr
}
