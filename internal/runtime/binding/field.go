// Package binding resolves projection and message fields once, at
// configuration time, into typed getters and setters.
package binding

import (
	"reflect"

	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
)

// Field is a typed handle on one field V of projection type P. The name is
// the identity reported to stores in filter values.
type Field[P, V any] struct {
	name string
	ref  func(*P) *V
}

// Name returns the field identity.
func (f Field[P, V]) Name() string { return f.name }

func (f Field[P, V]) String() string { return f.name }

// Get reads the field from p.
func (f Field[P, V]) Get(p *P) V { return *f.ref(p) }

// Set writes v into p.
func (f Field[P, V]) Set(p *P, v V) { *f.ref(p) = v }

// Ref returns a pointer to the field inside p.
func (f Field[P, V]) Ref(p *P) *V { return f.ref(p) }

// Valid reports whether f was produced by Bind or Accessor.
func (f Field[P, V]) Valid() bool { return f.ref != nil }

// Accessor builds a Field from an explicit pointer accessor, for example
// binding.Accessor("Total", func(r *Row) *int64 { return &r.Total }).
func Accessor[P, V any](name string, ref func(*P) *V) Field[P, V] {
	if ref == nil {
		panic("projectionflow: field accessor cannot be nil")
	}
	return Field[P, V]{name: name, ref: ref}
}

// Bind resolves the exported field name on struct type P. It fails when the
// field does not exist, is unexported, is promoted through an embedded
// pointer or does not have exactly type V.
func Bind[P, V any](name string) (Field[P, V], error) {
	index, err := resolve(reflect.TypeFor[P](), name, reflect.TypeFor[V]())
	if err != nil {
		return Field[P, V]{}, err
	}
	return Field[P, V]{
		name: name,
		ref: func(p *P) *V {
			return reflect.ValueOf(p).Elem().FieldByIndex(index).Addr().Interface().(*V)
		},
	}, nil
}

// MustBind is Bind for package-level declarations. It panics on error.
func MustBind[P, V any](name string) Field[P, V] {
	f, err := Bind[P, V](name)
	if err != nil {
		panic(err)
	}
	return f
}

// Lookup resolves a same-named field on message type M, which may be a
// struct or a pointer to one. A nil pointer message yields the zero value.
func Lookup[M, V any](name string) (func(M) V, error) {
	mt := reflect.TypeFor[M]()
	isPtr := mt.Kind() == reflect.Pointer
	owner := mt
	if isPtr {
		owner = mt.Elem()
	}
	index, err := resolve(owner, name, reflect.TypeFor[V]())
	if err != nil {
		return nil, err
	}
	return func(msg M) V {
		var out V
		rv := reflect.ValueOf(msg)
		if isPtr {
			if rv.IsNil() {
				return out
			}
			rv = rv.Elem()
		}
		reflect.ValueOf(&out).Elem().Set(rv.FieldByIndex(index))
		return out
	}, nil
}

// TypeName is the name used for T in errors and logs.
func TypeName[T any]() string { return reflect.TypeFor[T]().String() }

func resolve(owner reflect.Type, name string, want reflect.Type) ([]int, error) {
	if owner.Kind() != reflect.Struct {
		return nil, errspkg.NewConfigurationError(owner.String(), name, "%s is not a struct type", owner.Kind())
	}
	sf, ok := owner.FieldByName(name)
	if !ok {
		return nil, errspkg.NewConfigurationError(owner.String(), name, "field not found")
	}
	if !sf.IsExported() {
		return nil, errspkg.NewConfigurationError(owner.String(), name, "field is unexported")
	}
	step := owner
	for _, i := range sf.Index[:len(sf.Index)-1] {
		embedded := step.Field(i).Type
		if embedded.Kind() == reflect.Pointer {
			return nil, errspkg.NewConfigurationError(owner.String(), name, "field is promoted through embedded pointer %s", embedded)
		}
		step = embedded
	}
	if sf.Type != want {
		return nil, errspkg.NewConfigurationError(owner.String(), name, "field has type %s, not %s", sf.Type, want)
	}
	return sf.Index, nil
}
