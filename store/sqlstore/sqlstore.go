// Package sqlstore persists projections in a SQL table through
// database/sql. Every handled message runs in its own transaction, committed
// when the strategy succeeds and rolled back otherwise.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	"github.com/drblury/projectionflow/internal/runtime/strategy"
)

// ErrNoPrimaryKey is returned by Update when the projection type has no
// primary key column.
var ErrNoPrimaryKey = errors.New("sqlstore: projection has no primary key")

// Options configures a Factory.
type Options struct {
	// Table defaults to the snake_case projection type name.
	Table   string
	Dialect Dialect
	// TxOptions is passed to BeginTx.
	TxOptions *sql.TxOptions
}

// Factory opens a transaction-scoped Store per handled message.
type Factory[P any] struct {
	db     *sql.DB
	opts   Options
	schema *binding.Schema
	owned  bool

	selectSQL string
	insertSQL string
	updateSQL string
}

// NewFactory prepares the statements for projection type P on db. The
// caller keeps ownership of db.
func NewFactory[P any](db *sql.DB, opts Options) (*Factory[P], error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is required")
	}
	if opts.Dialect.Driver == "" {
		return nil, errors.New("sqlstore: dialect is required")
	}
	schema, err := binding.SchemaOf[P]()
	if err != nil {
		return nil, err
	}
	if opts.Table == "" {
		opts.Table = binding.TableName[P]()
	}
	f := &Factory[P]{db: db, opts: opts, schema: schema}
	f.prepareSQL()
	return f, nil
}

// Open connects with the dialect's driver and returns a Factory that closes
// the connection pool on Close.
func Open[P any](ctx context.Context, dialect Dialect, dsn string, opts Options) (*Factory[P], error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect.Name, err)
	}
	opts.Dialect = dialect
	f, err := NewFactory[P](db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	f.owned = true
	return f, nil
}

func (f *Factory[P]) prepareSQL() {
	table := quote(f.opts.Table)
	cols := make([]string, len(f.schema.Columns))
	params := make([]string, len(f.schema.Columns))
	for i, c := range f.schema.Columns {
		cols[i] = quote(c.Name)
		params[i] = f.opts.Dialect.placeholder(i + 1)
	}
	f.selectSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	f.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(params, ", "))

	pk, ok := f.schema.PrimaryKey()
	if !ok {
		return
	}
	var sets []string
	n := 1
	for _, c := range f.schema.Columns {
		if c.PrimaryKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", quote(c.Name), f.opts.Dialect.placeholder(n)))
		n++
	}
	if len(sets) == 0 {
		return
	}
	f.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", table, strings.Join(sets, ", "), quote(pk.Name), f.opts.Dialect.placeholder(n))
}

// Table returns the table name.
func (f *Factory[P]) Table() string { return f.opts.Table }

// DB returns the connection pool.
func (f *Factory[P]) DB() *sql.DB { return f.db }

// EnsureTable creates the projection table when it does not exist.
func (f *Factory[P]) EnsureTable(ctx context.Context) error {
	defs := make([]string, len(f.schema.Columns))
	for i, c := range f.schema.Columns {
		def := quote(c.Name) + " " + f.opts.Dialect.columnType(c.Type)
		if c.PrimaryKey {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(f.opts.Table), strings.Join(defs, ", "))
	if _, err := f.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlstore: create table %s: %w", f.opts.Table, err)
	}
	return nil
}

// Create begins the transaction backing one handled message.
func (f *Factory[P]) Create(ctx context.Context) (strategy.Store[P], error) {
	tx, err := f.db.BeginTx(ctx, f.opts.TxOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}
	return &Store[P]{f: f, tx: tx}, nil
}

// Close closes the connection pool when the Factory opened it.
func (f *Factory[P]) Close() error {
	if !f.owned {
		return nil
	}
	return f.db.Close()
}

// Store is a transaction on the projection table.
type Store[P any] struct {
	f  *Factory[P]
	tx *sql.Tx
}

func (s *Store[P]) Read(ctx context.Context, filters []strategy.FilterValue) ([]*P, error) {
	where, args, err := s.where(filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.tx.QueryContext(ctx, s.f.selectSQL+where, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: select from %s: %w", s.f.opts.Table, err)
	}
	defer rows.Close()

	var out []*P
	for rows.Next() {
		p := new(P)
		v := reflect.ValueOf(p).Elem()
		dest := make([]any, len(s.f.schema.Columns))
		for i, c := range s.f.schema.Columns {
			dest[i] = c.Value(v).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", s.f.opts.Table, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store[P]) Insert(ctx context.Context, projection *P) error {
	v := reflect.ValueOf(projection).Elem()
	args := make([]any, len(s.f.schema.Columns))
	for i, c := range s.f.schema.Columns {
		args[i] = c.Value(v).Interface()
	}
	if _, err := s.tx.ExecContext(ctx, s.f.insertSQL, args...); err != nil {
		return fmt.Errorf("sqlstore: insert into %s: %w", s.f.opts.Table, err)
	}
	return nil
}

func (s *Store[P]) Update(ctx context.Context, projection *P) error {
	if s.f.updateSQL == "" {
		return ErrNoPrimaryKey
	}
	v := reflect.ValueOf(projection).Elem()
	args := make([]any, 0, len(s.f.schema.Columns))
	var key any
	for _, c := range s.f.schema.Columns {
		if c.PrimaryKey {
			key = c.Value(v).Interface()
			continue
		}
		args = append(args, c.Value(v).Interface())
	}
	if _, err := s.tx.ExecContext(ctx, s.f.updateSQL, append(args, key)...); err != nil {
		return fmt.Errorf("sqlstore: update %s: %w", s.f.opts.Table, err)
	}
	return nil
}

func (s *Store[P]) Remove(ctx context.Context, filters []strategy.FilterValue) error {
	where, args, err := s.where(filters)
	if err != nil {
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "DELETE FROM "+quote(s.f.opts.Table)+where, args...); err != nil {
		return fmt.Errorf("sqlstore: delete from %s: %w", s.f.opts.Table, err)
	}
	return nil
}

// Commit commits the transaction.
func (s *Store[P]) Commit(context.Context) error {
	return s.tx.Commit()
}

// Close rolls back unless Commit ran.
func (s *Store[P]) Close() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (s *Store[P]) where(filters []strategy.FilterValue) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		c, ok := s.f.schema.Column(f.Field)
		if !ok {
			return "", nil, fmt.Errorf("sqlstore: %s has no column for field %q", s.f.opts.Table, f.Field)
		}
		conds[i] = fmt.Sprintf("%s = %s", quote(c.Name), s.f.opts.Dialect.placeholder(i+1))
		args[i] = f.Value
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
