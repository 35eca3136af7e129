// Package boltstore keeps projections in a bbolt bucket, JSON-encoded and
// keyed by their primary key. Every handled message runs in one read-write
// bbolt transaction.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/jsoncodec"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
)

var (
	// ErrDuplicateKey is returned by Insert when the primary key is taken.
	ErrDuplicateKey = errors.New("boltstore: primary key already exists")
	// ErrNotFound is returned by Update when the primary key is not stored.
	ErrNotFound = errors.New("boltstore: projection not found")
)

// Options configures a Factory.
type Options struct {
	// Bucket defaults to the snake_case projection type name.
	Bucket string
}

// Factory opens one bbolt write transaction per handled message.
type Factory[P any] struct {
	db     *bolt.DB
	bucket []byte
	schema *binding.Schema
	pk     binding.Column
	owned  bool
}

// NewFactory uses db, which the caller keeps ownership of. P must have a
// primary key column.
func NewFactory[P any](db *bolt.DB, opts Options) (*Factory[P], error) {
	if db == nil {
		return nil, errors.New("boltstore: db is required")
	}
	schema, err := binding.SchemaOf[P]()
	if err != nil {
		return nil, err
	}
	pk, ok := schema.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("boltstore: %s has no primary key", schema.Type)
	}
	if opts.Bucket == "" {
		opts.Bucket = binding.TableName[P]()
	}
	return &Factory[P]{db: db, bucket: []byte(opts.Bucket), schema: schema, pk: pk}, nil
}

// Open opens or creates the bbolt file at path. The returned Factory closes
// it on Close.
func Open[P any](path string, opts Options) (*Factory[P], error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	f, err := NewFactory[P](db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	f.owned = true
	return f, nil
}

// Bucket returns the bucket name.
func (f *Factory[P]) Bucket() string { return string(f.bucket) }

// DB returns the underlying database.
func (f *Factory[P]) DB() *bolt.DB { return f.db }

// Create begins a write transaction. bbolt allows one writer at a time, so
// Create blocks while another message is being handled.
func (f *Factory[P]) Create(ctx context.Context) (strategy.Store[P], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := f.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("boltstore: begin: %w", err)
	}
	b, err := tx.CreateBucketIfNotExists(f.bucket)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("boltstore: bucket %s: %w", f.bucket, err)
	}
	return &Store[P]{f: f, tx: tx, b: b}, nil
}

// Close closes the database when the Factory opened it.
func (f *Factory[P]) Close() error {
	if !f.owned {
		return nil
	}
	return f.db.Close()
}

// Store is one bbolt write transaction.
type Store[P any] struct {
	f  *Factory[P]
	tx *bolt.Tx
	b  *bolt.Bucket
}

func (s *Store[P]) Read(_ context.Context, filters []strategy.FilterValue) ([]*P, error) {
	if err := s.checkFilters(filters); err != nil {
		return nil, err
	}
	var out []*P
	err := s.scan(filters, func(_ []byte, p *P) {
		out = append(out, p)
	})
	return out, err
}

func (s *Store[P]) Insert(_ context.Context, projection *P) error {
	key := s.key(projection)
	if s.b.Get(key) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	return s.put(key, projection)
}

func (s *Store[P]) Update(_ context.Context, projection *P) error {
	key := s.key(projection)
	if s.b.Get(key) == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.put(key, projection)
}

func (s *Store[P]) Remove(_ context.Context, filters []strategy.FilterValue) error {
	if err := s.checkFilters(filters); err != nil {
		return err
	}
	var keys [][]byte
	err := s.scan(filters, func(k []byte, _ *P) {
		keys = append(keys, append([]byte(nil), k...))
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.b.Delete(k); err != nil {
			return fmt.Errorf("boltstore: delete %s: %w", k, err)
		}
	}
	return nil
}

// Commit commits the transaction.
func (s *Store[P]) Commit(context.Context) error {
	return s.tx.Commit()
}

// Close rolls back unless Commit ran.
func (s *Store[P]) Close() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, bolt.ErrTxClosed) {
		return err
	}
	return nil
}

func (s *Store[P]) scan(filters []strategy.FilterValue, fn func(k []byte, p *P)) error {
	return s.b.ForEach(func(k, raw []byte) error {
		p := new(P)
		if err := jsoncodec.Unmarshal(raw, p); err != nil {
			return fmt.Errorf("boltstore: decode %s: %w", k, err)
		}
		v := reflect.ValueOf(p).Elem()
		for _, f := range filters {
			if !s.f.schema.Matches(v, f.Field, f.Value) {
				return nil
			}
		}
		fn(k, p)
		return nil
	})
}

func (s *Store[P]) put(key []byte, projection *P) error {
	raw, err := jsoncodec.Marshal(projection)
	if err != nil {
		return fmt.Errorf("boltstore: encode %s: %w", key, err)
	}
	if err := s.b.Put(key, raw); err != nil {
		return fmt.Errorf("boltstore: put %s: %w", key, err)
	}
	return nil
}

func (s *Store[P]) key(projection *P) []byte {
	return fmt.Append(nil, s.f.pk.Value(reflect.ValueOf(projection).Elem()).Interface())
}

func (s *Store[P]) checkFilters(filters []strategy.FilterValue) error {
	for _, f := range filters {
		if _, ok := s.f.schema.Column(f.Field); !ok {
			return fmt.Errorf("boltstore: %s has no field %q", s.f.schema.Type, f.Field)
		}
	}
	return nil
}
