package strategy

import "github.com/drblury/projectionflow/internal/runtime/binding"

// Key identifies a projection for upserts. The filter finds an existing
// record; the mapper stamps the same value onto a newly created one.
type Key[M, P any] struct {
	Filter Filter[M]
	Mapper Mapper[M, P]
}

// KeyBy keys on a value taken from the message.
func KeyBy[M, P, V any](field binding.Field[P, V], extract func(M) V) Key[M, P] {
	return Key[M, P]{Filter: FilterBy(field, extract), Mapper: Map(field, extract)}
}

// KeyConst keys on a fixed value.
func KeyConst[M, P, V any](field binding.Field[P, V], value V) Key[M, P] {
	return Key[M, P]{Filter: FilterConst[M](field, value), Mapper: Set[M](field, value)}
}

// KeyByName keys on the message field of the same name.
func KeyByName[M, P, V any](field binding.Field[P, V]) (Key[M, P], error) {
	get, err := binding.Lookup[M, V](field.Name())
	if err != nil {
		return Key[M, P]{}, err
	}
	return KeyBy(field, get), nil
}

// Keys is an ordered list of keys.
type Keys[M, P any] []Key[M, P]

// Filters returns the lookup side of every key.
func (ks Keys[M, P]) Filters() Filters[M] {
	out := make(Filters[M], len(ks))
	for i, k := range ks {
		out[i] = k.Filter
	}
	return out
}

// Mappers returns the assignment side of every key.
func (ks Keys[M, P]) Mappers() Mappers[M, P] {
	out := make(Mappers[M, P], len(ks))
	for i, k := range ks {
		out[i] = k.Mapper
	}
	return out
}
