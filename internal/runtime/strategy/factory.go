package strategy

import (
	"slices"
	"sync"

	"github.com/drblury/projectionflow/internal/runtime/logging"
)

// Factory records how messages of type M are applied to projections of type
// P. The last terminal call (AddNew, Update, Save, Remove or Translate) wins;
// an unconfigured factory produces a no-op strategy.
type Factory[M, P any] struct {
	log logging.ServiceLogger

	mu    sync.Mutex
	kind  Kind
	build func() Strategy[M, P]
}

// NewFactory creates an unconfigured factory. A nil logger discards output.
func NewFactory[M, P any](log logging.ServiceLogger) *Factory[M, P] {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Factory[M, P]{log: log, kind: KindEmpty}
}

// Kind reports the configured variant.
func (f *Factory[M, P]) Kind() Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

// Create builds a new Strategy from the current configuration.
func (f *Factory[M, P]) Create() Strategy[M, P] {
	f.mu.Lock()
	build := f.build
	f.mu.Unlock()
	if build == nil {
		return emptyStrategy[M, P]{base: newBase[M, P](f.log, KindEmpty)}
	}
	return build()
}

func (f *Factory[M, P]) configure(kind Kind, build func() Strategy[M, P]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kind = kind
	f.build = build
}

// AddNew inserts a new projection for every message.
func (f *Factory[M, P]) AddNew() *InsertBuilder[M, P] {
	b := &InsertBuilder[M, P]{}
	f.configure(KindInsert, func() Strategy[M, P] {
		cfg := b.snapshot()
		return &insertStrategy[M, P]{base: newBase[M, P](f.log, KindInsert), mappers: cfg.mappers}
	})
	return b
}

// Update rewrites the projections matching the configured filters.
func (f *Factory[M, P]) Update() *UpdateBuilder[M, P] {
	b := &UpdateBuilder[M, P]{}
	f.configure(KindUpdate, func() Strategy[M, P] {
		cfg := b.snapshot()
		return &updateStrategy[M, P]{base: newBase[M, P](f.log, KindUpdate), filters: cfg.filters, mappers: cfg.mappers}
	})
	return b
}

// Save upserts the single projection identified by the configured keys.
func (f *Factory[M, P]) Save() *SaveBuilder[M, P] {
	b := &SaveBuilder[M, P]{}
	f.configure(KindSave, func() Strategy[M, P] {
		cfg := b.snapshot()
		return &saveStrategy[M, P]{
			base:       newBase[M, P](f.log, KindSave),
			keyFilters: cfg.keys.Filters(),
			keyMappers: cfg.keys.Mappers(),
			mappers:    cfg.mappers,
		}
	})
	return b
}

// Remove deletes the projections matching the configured filters.
func (f *Factory[M, P]) Remove() *RemoveBuilder[M, P] {
	b := &RemoveBuilder[M, P]{}
	f.configure(KindRemove, func() Strategy[M, P] {
		cfg := b.snapshot()
		return &removeStrategy[M, P]{base: newBase[M, P](f.log, KindRemove), filters: cfg.filters}
	})
	return b
}

// Translate turns each M into zero or more T and configures how those are
// handled through the returned factory. The derived messages are produced
// eagerly and dispatched in order.
func Translate[M, T, P any](f *Factory[M, P], translate func(M) ([]T, error)) *Factory[T, P] {
	if translate == nil {
		panic("projectionflow: translate function cannot be nil")
	}
	nested := NewFactory[T, P](f.log)
	f.configure(KindTranslate, func() Strategy[M, P] {
		return &translateStrategy[M, T, P]{
			base:      newBase[M, P](f.log, KindTranslate),
			translate: translate,
			nested:    nested.Create(),
		}
	})
	return nested
}

// TranslateOne is Translate for one-to-one conversions.
func TranslateOne[M, T, P any](f *Factory[M, P], convert func(M) T) *Factory[T, P] {
	if convert == nil {
		panic("projectionflow: translate function cannot be nil")
	}
	return Translate(f, func(msg M) ([]T, error) { return []T{convert(msg)}, nil })
}

// settings is the builder state shared by the narrowed builders.
type settings[M, P any] struct {
	mu      sync.Mutex
	filters Filters[M]
	mappers Mappers[M, P]
	keys    Keys[M, P]
}

type frozen[M, P any] struct {
	filters Filters[M]
	mappers Mappers[M, P]
	keys    Keys[M, P]
}

func (s *settings[M, P]) snapshot() frozen[M, P] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return frozen[M, P]{
		filters: slices.Clone(s.filters),
		mappers: slices.Clone(s.mappers),
		keys:    slices.Clone(s.keys),
	}
}

func (s *settings[M, P]) addFilters(filters []Filter[M]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filters...)
}

func (s *settings[M, P]) addMappers(mappers []Mapper[M, P]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappers = append(s.mappers, mappers...)
}

func (s *settings[M, P]) addKeys(keys []Key[M, P]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, keys...)
}
