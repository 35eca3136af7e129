package sqlstore

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect holds the SQL differences between the supported databases.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver      string
	placeholder func(n int) string
	columnType  func(t reflect.Type) string
}

// SQLite uses the pure Go modernc.org/sqlite driver.
var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	placeholder: func(int) string { return "?" },
	columnType: func(t reflect.Type) string {
		switch {
		case t == timeType:
			return "DATETIME"
		case t.Kind() == reflect.Bool:
			return "BOOLEAN"
		case isInteger(t.Kind()):
			return "INTEGER"
		case isFloat(t.Kind()):
			return "REAL"
		case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
			return "BLOB"
		default:
			return "TEXT"
		}
	},
}

// Postgres uses the pgx stdlib driver.
var Postgres = Dialect{
	Name:        "postgres",
	Driver:      "pgx",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	columnType: func(t reflect.Type) string {
		switch {
		case t == timeType:
			return "TIMESTAMPTZ"
		case t.Kind() == reflect.Bool:
			return "BOOLEAN"
		case t.Kind() == reflect.Int8, t.Kind() == reflect.Int16, t.Kind() == reflect.Uint8:
			return "SMALLINT"
		case t.Kind() == reflect.Int32, t.Kind() == reflect.Uint16:
			return "INTEGER"
		case isInteger(t.Kind()):
			return "BIGINT"
		case t.Kind() == reflect.Float32:
			return "REAL"
		case t.Kind() == reflect.Float64:
			return "DOUBLE PRECISION"
		case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
			return "BYTEA"
		default:
			return "TEXT"
		}
	},
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case SQLite.Name:
		return SQLite, true
	case Postgres.Name, "postgresql", "pgx":
		return Postgres, true
	}
	return Dialect{}, false
}

var timeType = reflect.TypeFor[time.Time]()

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
