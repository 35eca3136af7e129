package strategy

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/drblury/projectionflow/internal/runtime/binding"
	errspkg "github.com/drblury/projectionflow/internal/runtime/errors"
)

// Number is the set of field types the arithmetic mappers accept.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mapper mutates a projection from a message.
type Mapper[M, P any] struct {
	field  string
	action func(M, *P) error
}

// Do wraps an arbitrary action. Every other mapper is built on it.
func Do[M, P any](action func(msg M, projection *P) error) Mapper[M, P] {
	if action == nil {
		panic("projectionflow: mapper action cannot be nil")
	}
	return Mapper[M, P]{action: action}
}

func onField[M, P, V any](field binding.Field[P, V], action func(M, *P) error) Mapper[M, P] {
	m := Do(action)
	m.field = field.Name()
	return m
}

// Set assigns a fixed value.
func Set[M, P, V any](field binding.Field[P, V], value V) Mapper[M, P] {
	return onField(field, func(_ M, p *P) error {
		field.Set(p, value)
		return nil
	})
}

// Map copies a value taken from the message.
func Map[M, P, V any](field binding.Field[P, V], extract func(M) V) Mapper[M, P] {
	return onField(field, func(msg M, p *P) error {
		field.Set(p, extract(msg))
		return nil
	})
}

// MapByName copies the message field of the same name.
func MapByName[M, P, V any](field binding.Field[P, V]) (Mapper[M, P], error) {
	get, err := binding.Lookup[M, V](field.Name())
	if err != nil {
		return Mapper[M, P]{}, err
	}
	return Map(field, get), nil
}

// Add adds a message value to the current field value.
func Add[M, P any, V Number](field binding.Field[P, V], extract func(M) V) Mapper[M, P] {
	return onField(field, func(msg M, p *P) error {
		*field.Ref(p) += extract(msg)
		return nil
	})
}

// AddByName adds the message field of the same name.
func AddByName[M, P any, V Number](field binding.Field[P, V]) (Mapper[M, P], error) {
	get, err := binding.Lookup[M, V](field.Name())
	if err != nil {
		return Mapper[M, P]{}, err
	}
	return Add(field, get), nil
}

// Substract subtracts a message value from the current field value.
func Substract[M, P any, V Number](field binding.Field[P, V], extract func(M) V) Mapper[M, P] {
	return onField(field, func(msg M, p *P) error {
		*field.Ref(p) -= extract(msg)
		return nil
	})
}

// SubstractByName subtracts the message field of the same name.
func SubstractByName[M, P any, V Number](field binding.Field[P, V]) (Mapper[M, P], error) {
	get, err := binding.Lookup[M, V](field.Name())
	if err != nil {
		return Mapper[M, P]{}, err
	}
	return Substract(field, get), nil
}

// Increment adds one to an integer field.
func Increment[M, P any, V constraints.Integer](field binding.Field[P, V]) Mapper[M, P] {
	return Add(field, func(M) V { return 1 })
}

// Decrement subtracts one from an integer field.
func Decrement[M, P any, V constraints.Integer](field binding.Field[P, V]) Mapper[M, P] {
	return Substract(field, func(M) V { return 1 })
}

// Field is the target field name, empty for Do mappers.
func (m Mapper[M, P]) Field() string { return m.field }

// Apply runs the mapper. Returned errors and panics are reported as
// *errors.MappingError.
func (m Mapper[M, P]) Apply(msg M, projection *P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.fail(fmt.Errorf("panic: %v", r))
		}
	}()
	if err := m.action(msg, projection); err != nil {
		return m.fail(err)
	}
	return nil
}

func (m Mapper[M, P]) fail(err error) error {
	var mapped *errspkg.MappingError
	if errors.As(err, &mapped) {
		return err
	}
	if m.field != "" {
		err = fmt.Errorf("field %s: %w", m.field, err)
	}
	return &errspkg.MappingError{
		Message:    binding.TypeName[M](),
		Projection: binding.TypeName[P](),
		Err:        err,
	}
}

// Mappers apply in declaration order; later mappers observe earlier writes.
type Mappers[M, P any] []Mapper[M, P]

// Apply stops at the first failing mapper.
func (ms Mappers[M, P]) Apply(msg M, projection *P) error {
	for _, m := range ms {
		if err := m.Apply(msg, projection); err != nil {
			return err
		}
	}
	return nil
}
