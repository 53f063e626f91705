package entities

import (
	"context"
	"fmt"
)

// Collection é uma sequência ordenada de modelos.
type Collection []*Model

func NewCollection(data []map[string]any, opts ...ModelOption) Collection {
	c := make(Collection, 0, len(data))
	for _, item := range data {
		c = append(c, NewModel(item, opts...))
	}
	return c
}

func (c Collection) IDs() []int64 {
	ids := make([]int64, 0, len(c))
	for _, m := range c {
		ids = append(ids, m.GetID())
	}
	return ids
}

func (c Collection) References() []Reference {
	refs := make([]Reference, 0, len(c))
	for _, m := range c {
		refs = append(refs, m.Reference())
	}
	return refs
}

// Types returns the distinct entity types in first-seen order.
func (c Collection) Types() []string {
	seen := make(map[string]bool)
	var types []string
	for _, m := range c {
		if !seen[m.GetType()] {
			seen[m.GetType()] = true
			types = append(types, m.GetType())
		}
	}
	return types
}

func (c Collection) Find(id int64) (*Model, bool) {
	for _, m := range c {
		if m.GetID() == id {
			return m, true
		}
	}
	return nil, false
}

// Preload resolves the named relation for every model with one ResolveMany
// call per related type, instead of one call per model.
func (c Collection) Preload(ctx context.Context, names ...string) error {
	if len(c) == 0 {
		return nil
	}

	for _, name := range names {
		var pending []Reference
		seen := make(map[Reference]bool)

		for _, m := range c {
			field, ok := m.record()[name]
			if !ok || !field.IsStub() || m.IsResolved(name) {
				continue
			}
			for _, ref := range field.refs {
				if !seen[ref] {
					seen[ref] = true
					pending = append(pending, ref)
				}
			}
		}

		if len(pending) == 0 {
			continue
		}

		source, ok := c.withResolver()
		if !ok {
			return fmt.Errorf("Collection.Preload - %q: %w", name, ErrNoResolver)
		}
		resolver := source.Resolver()

		index := make(map[Reference]*Model, len(pending))
		types, idsByType := groupReferences(pending)
		for _, entityType := range types {
			items, err := resolver.ResolveMany(ctx, entityType, idsByType[entityType], source.FetchOptions())
			if err != nil {
				return fmt.Errorf("Collection.Preload - failed to resolve %q: %w", name, err)
			}
			for _, item := range items {
				index[item.Reference()] = item
			}
		}

		for _, m := range c {
			field, ok := m.record()[name]
			if !ok || !field.IsStub() || m.IsResolved(name) {
				continue
			}

			if ref, ok := field.Reference(); ok {
				if related, found := index[ref]; found {
					m.memoise(name, related)
				}
				continue
			}

			related := make(Collection, 0, len(field.refs))
			for _, ref := range field.refs {
				if item, found := index[ref]; found {
					related = append(related, item)
				}
			}
			m.memoise(name, related)
		}
	}

	return nil
}

// withResolver returns the first model that has a resolver attached.
func (c Collection) withResolver() (*Model, bool) {
	for _, m := range c {
		if m != nil && m.Resolver() != nil {
			return m, true
		}
	}
	return nil, false
}
