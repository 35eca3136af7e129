package binding

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
)

// Column describes one persisted field of a projection struct.
type Column struct {
	// Field is the Go field name, the identity used in filter values.
	Field string
	// Name is the storage name: the db tag, or the snake_case field name.
	Name       string
	Type       reflect.Type
	PrimaryKey bool
	index      []int
}

// Value returns the column of the struct value v.
func (c Column) Value(v reflect.Value) reflect.Value { return v.FieldByIndex(c.index) }

// Schema is the column layout of a projection struct type. It is computed
// once per type.
type Schema struct {
	Type    reflect.Type
	Columns []Column
	lookup  map[string]int
	pk      int
}

var schemas sync.Map

// SchemaOf returns the cached Schema of struct type P. Columns are the
// exported fields, promoted fields of embedded structs included. A
// `db:"name"` tag renames a column, `db:"-"` skips it and `db:",pk"` marks
// the primary key. Without a tag a field named ID is the primary key.
func SchemaOf[P any]() (*Schema, error) {
	return schemaFor(reflect.TypeFor[P]())
}

func schemaFor(t reflect.Type) (*Schema, error) {
	if cached, ok := schemas.Load(t); ok {
		return cached.(*Schema), nil
	}
	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

func buildSchema(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, errspkg.NewConfigurationError(t.String(), "", "%s is not a struct type", t.Kind())
	}
	s := &Schema{Type: t, lookup: make(map[string]int), pk: -1}
	implicitPK := -1
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() || throughPointer(t, sf.Index) {
			continue
		}
		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = SnakeCase(sf.Name)
		}
		col := Column{Field: sf.Name, Name: name, Type: sf.Type, index: sf.Index}
		if opts == "pk" {
			if s.pk >= 0 {
				return nil, errspkg.NewConfigurationError(t.String(), sf.Name, "more than one primary key")
			}
			col.PrimaryKey = true
			s.pk = len(s.Columns)
		}
		if sf.Name == "ID" {
			implicitPK = len(s.Columns)
		}
		if _, dup := s.lookup[name]; dup {
			return nil, errspkg.NewConfigurationError(t.String(), sf.Name, "duplicate column %q", name)
		}
		s.lookup[sf.Name] = len(s.Columns)
		s.lookup[name] = len(s.Columns)
		s.Columns = append(s.Columns, col)
	}
	if len(s.Columns) == 0 {
		return nil, errspkg.NewConfigurationError(t.String(), "", "no exported fields")
	}
	if s.pk < 0 && implicitPK >= 0 {
		s.pk = implicitPK
		s.Columns[implicitPK].PrimaryKey = true
	}
	return s, nil
}

func throughPointer(t reflect.Type, index []int) bool {
	step := t
	for _, i := range index[:len(index)-1] {
		f := step.Field(i).Type
		if f.Kind() == reflect.Pointer {
			return true
		}
		step = f
	}
	return false
}

// Column finds a column by Go field name or storage name.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.lookup[name]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// PrimaryKey returns the primary key column, if any.
func (s *Schema) PrimaryKey() (Column, bool) {
	if s.pk < 0 {
		return Column{}, false
	}
	return s.Columns[s.pk], true
}

// Matches reports whether the struct value v equals want on the named
// column. Unknown columns never match.
func (s *Schema) Matches(v reflect.Value, field string, want any) bool {
	col, ok := s.Column(field)
	if !ok {
		return false
	}
	return Equal(col.Value(v), want)
}

// Equal compares a field value with a filter value. Numbers of different
// Go types compare by value; other kinds must be convertible to the field
// type.
func Equal(field reflect.Value, want any) bool {
	wv := reflect.ValueOf(want)
	if !wv.IsValid() {
		return isNil(field)
	}
	if wv.Type() == field.Type() && wv.Comparable() {
		return wv.Equal(field)
	}
	switch {
	case isInt(field.Kind()) && isInt(wv.Kind()):
		return field.Int() == wv.Int()
	case isUint(field.Kind()) && isUint(wv.Kind()):
		return field.Uint() == wv.Uint()
	case isInt(field.Kind()) && isUint(wv.Kind()):
		return field.Int() >= 0 && uint64(field.Int()) == wv.Uint()
	case isUint(field.Kind()) && isInt(wv.Kind()):
		return wv.Int() >= 0 && field.Uint() == uint64(wv.Int())
	case isFloat(field.Kind()) && (isFloat(wv.Kind()) || isInt(wv.Kind())):
		return field.Float() == toFloat(wv)
	case field.Kind() == wv.Kind() && wv.Type().ConvertibleTo(field.Type()):
		converted := wv.Convert(field.Type())
		return converted.Comparable() && converted.Equal(field)
	}
	return false
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func isInt(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Int64 }

func isUint(k reflect.Kind) bool { return k >= reflect.Uint && k <= reflect.Uintptr }

func isFloat(k reflect.Kind) bool { return k == reflect.Float32 || k == reflect.Float64 }

func toFloat(v reflect.Value) float64 {
	if isInt(v.Kind()) {
		return float64(v.Int())
	}
	return v.Float()
}

// SnakeCase converts a Go identifier to snake_case, keeping initialisms
// together: "CustomerID" becomes "customer_id".
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TableName is the default storage name for projection type P: the
// snake_case type name without package.
func TableName[P any]() string {
	return SnakeCase(reflect.TypeFor[P]().Name())
}
