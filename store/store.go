// Package store opens the projection store selected by configuration.
package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	configpkg "github.com/drblury/projectionflow/internal/runtime/config"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
	"github.com/drblury/projectionflow/store/boltstore"
	"github.com/drblury/projectionflow/store/memory"
	"github.com/drblury/projectionflow/store/sqlstore"
)

// Factory is a StoreFactory that holds resources until closed.
type Factory[P any] interface {
	strategy.StoreFactory[P]
	io.Closer
}

// Open builds the store factory named by cfg.StoreDriver for projection
// type P. SQL tables are created when missing.
func Open[P any](ctx context.Context, cfg *configpkg.Config) (Factory[P], error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}
	driver := strings.ToLower(cfg.StoreDriver)
	switch driver {
	case "", configpkg.StoreMemory:
		table, err := memory.NewTable[P]()
		if err != nil {
			return nil, err
		}
		return memory.NewFactory(table), nil
	case configpkg.StoreSQLite, configpkg.StorePostgres:
		dialect, _ := sqlstore.DialectFor(driver)
		f, err := sqlstore.Open[P](ctx, dialect, cfg.StoreDSN, sqlstore.Options{Table: cfg.StoreTable})
		if err != nil {
			return nil, err
		}
		if err := f.EnsureTable(ctx); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil
	case configpkg.StoreBolt:
		f, err := boltstore.Open[P](cfg.StoreDSN, boltstore.Options{Bucket: cfg.StoreTable})
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: %s", errspkg.ErrUnsupportedStoreDriver, cfg.StoreDriver)
	}
}
