package strategy

import "github.com/drblury/projectionflow/internal/runtime/binding"

// Filter extracts one FilterValue from a message.
type Filter[M any] struct {
	field   string
	extract func(M) any
}

// NewFilter is the untyped form used by the typed constructors below.
func NewFilter[M any](field string, extract func(M) any) Filter[M] {
	if extract == nil {
		panic("projectionflow: filter extractor cannot be nil")
	}
	return Filter[M]{field: field, extract: extract}
}

// FilterBy matches field against a value taken from the message.
func FilterBy[M, P, V any](field binding.Field[P, V], extract func(M) V) Filter[M] {
	if extract == nil {
		panic("projectionflow: filter extractor cannot be nil")
	}
	return Filter[M]{field: field.Name(), extract: func(msg M) any { return extract(msg) }}
}

// FilterConst matches field against a fixed value.
func FilterConst[M, P, V any](field binding.Field[P, V], value V) Filter[M] {
	return Filter[M]{field: field.Name(), extract: func(M) any { return value }}
}

// FilterByName matches field against the message field of the same name.
func FilterByName[M, P, V any](field binding.Field[P, V]) (Filter[M], error) {
	get, err := binding.Lookup[M, V](field.Name())
	if err != nil {
		return Filter[M]{}, err
	}
	return FilterBy(field, get), nil
}

// Field is the projection field the filter constrains.
func (f Filter[M]) Field() string { return f.field }

// Value evaluates the filter for msg.
func (f Filter[M]) Value(msg M) FilterValue {
	return FilterValue{Field: f.field, Value: f.extract(msg)}
}

// Filters is an ordered conjunction.
type Filters[M any] []Filter[M]

// Values evaluates every filter in declaration order.
func (fs Filters[M]) Values(msg M) []FilterValue {
	out := make([]FilterValue, len(fs))
	for i, f := range fs {
		out[i] = f.Value(msg)
	}
	return out
}
