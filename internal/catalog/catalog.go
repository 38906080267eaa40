// Package catalog is the single source of truth for valid spending
// category values. Category strings are canonical and case-sensitive; the
// Uncategorized bucket is implicit and never appears in a catalog.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// Source lists the valid category values, in canonical order.
type Source interface {
	List(ctx context.Context) ([]string, error)
}

// DefaultCategories is the built-in catalog used when no external source is
// configured.
var DefaultCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transport",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Rent",
	"Health",
	"Education",
	"Travel",
	"Investments",
	"Transfers",
	"Personal Care",
	"Miscellaneous",
}

// Static serves a fixed, in-memory category list.
type Static struct {
	categories []string
}

// NewStatic builds a static catalog. With no arguments it serves
// DefaultCategories.
func NewStatic(categories ...string) *Static {
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	out := make([]string, len(categories))
	copy(out, categories)
	return &Static{categories: out}
}

func (s *Static) List(ctx context.Context) ([]string, error) {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

// Validate checks that category is present in the source's set.
// Returns core.ErrInvalidCategory when it is not; the Uncategorized
// sentinel is never a valid stored value either.
func Validate(ctx context.Context, src Source, category string) error {
	categories, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range categories {
		if c == category {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", core.ErrInvalidCategory, category)
}

const cacheKey = "categories"

// Cached is a read-through decorator over another Source. The category set
// changes rarely, so a stale read is harmless; failures fall through to the
// underlying source on the next call.
type Cached struct {
	source Source
	cache  cache.Cache[[]string]
}

func NewCached(source Source, c cache.Cache[[]string]) *Cached {
	return &Cached{source: source, cache: c}
}

func (c *Cached) List(ctx context.Context) ([]string, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	categories, err := c.source.List(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, categories)
	slog.DebugContext(ctx, "Category catalog cached", "count", len(categories))
	return categories, nil
}

// Invalidate drops the cached category list.
func (c *Cached) Invalidate() {
	c.cache.Delete(cacheKey)
}
