package strategy

// InsertBuilder configures AddNew.
type InsertBuilder[M, P any] struct{ settings[M, P] }

// With appends value mappers.
func (b *InsertBuilder[M, P]) With(mappers ...Mapper[M, P]) *InsertBuilder[M, P] {
	b.addMappers(mappers)
	return b
}

// UpdateBuilder configures Update.
type UpdateBuilder[M, P any] struct{ settings[M, P] }

// WhenEqual appends selection filters.
func (b *UpdateBuilder[M, P]) WhenEqual(filters ...Filter[M]) *UpdateBuilder[M, P] {
	b.addFilters(filters)
	return b
}

// With appends value mappers.
func (b *UpdateBuilder[M, P]) With(mappers ...Mapper[M, P]) *UpdateBuilder[M, P] {
	b.addMappers(mappers)
	return b
}

// SaveBuilder configures Save.
type SaveBuilder[M, P any] struct{ settings[M, P] }

// WithKey appends identifying keys.
func (b *SaveBuilder[M, P]) WithKey(keys ...Key[M, P]) *SaveBuilder[M, P] {
	b.addKeys(keys)
	return b
}

// With appends value mappers. They run on both created and existing
// projections.
func (b *SaveBuilder[M, P]) With(mappers ...Mapper[M, P]) *SaveBuilder[M, P] {
	b.addMappers(mappers)
	return b
}

// RemoveBuilder configures Remove.
type RemoveBuilder[M, P any] struct{ settings[M, P] }

// WhenEqual appends selection filters.
func (b *RemoveBuilder[M, P]) WhenEqual(filters ...Filter[M]) *RemoveBuilder[M, P] {
	b.addFilters(filters)
	return b
}
