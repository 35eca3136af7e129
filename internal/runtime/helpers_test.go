package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	configpkg "github.com/drblury/projectionflow/internal/runtime/config"
	loggingpkg "github.com/drblury/projectionflow/internal/runtime/logging"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
	"github.com/drblury/projectionflow/transport/transporttest"
)

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := newTestLogger()
	router, err := message.NewRouter(message.RouterConfig{}, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		t.Fatalf("router init failed: %v", err)
	}
	return &Service{
		Conf:       &configpkg.Config{},
		Logger:     log,
		router:     router,
		publisher:  &transporttest.Publisher{},
		subscriber: &transporttest.Subscriber{},
	}
}

type orderPlaced struct {
	OrderID string
	Amount  int64
}

type orderCancelled struct {
	OrderID string
}

// renamedEvent routes by its discriminator, not its Go type.
type renamedEvent struct {
	Name    string
	OrderID string
}

func (e renamedEvent) MessageName() string { return e.Name }

type orderView struct {
	OrderID string
	Amount  int64
	Note    string
}

var (
	viewOrderID = binding.MustBind[orderView, string]("OrderID")
	viewAmount  = binding.MustBind[orderView, int64]("Amount")
	viewNote    = binding.MustBind[orderView, string]("Note")
)

// lifecycleStore records every call, including the optional commit and
// close capabilities.
type lifecycleStore struct {
	mu sync.Mutex

	rows      []*orderView
	insertErr error
	commitErr error
	closeErr  error

	inserts int
	commits int
	closes  int
}

func (s *lifecycleStore) Read(_ context.Context, filters []strategy.FilterValue) ([]*orderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*orderView
	for _, r := range s.rows {
		if len(filters) == 0 || (filters[0].Field == "OrderID" && filters[0].Value == r.OrderID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *lifecycleStore) Insert(_ context.Context, p *orderView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.rows = append(s.rows, p)
	return nil
}

func (s *lifecycleStore) Update(context.Context, *orderView) error { return nil }

func (s *lifecycleStore) Remove(context.Context, []strategy.FilterValue) error { return nil }

func (s *lifecycleStore) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return s.commitErr
}

func (s *lifecycleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

// storeFactory hands out one store per Create and counts the calls.
type storeFactory struct {
	created atomic.Int32
	err     error
	next    func() *lifecycleStore
	opened  []*lifecycleStore
	mu      sync.Mutex
}

func (f *storeFactory) Create(context.Context) (strategy.Store[orderView], error) {
	f.created.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	s := &lifecycleStore{}
	if f.next != nil {
		s = f.next()
	}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
	return s, nil
}

func (f *storeFactory) last(t *testing.T) *lifecycleStore {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		t.Fatal("no store was opened")
	}
	return f.opened[len(f.opened)-1]
}

var errBoom = errors.New("boom")
