// Package category resolves free-text category filters against the two-level
// menu taxonomy. Primary categories are wrapped in parentheses, e.g. "(Sushi)";
// subcategories are bare, e.g. "Signature Rolls".
package category

import (
	"context"
	"fmt"
	"strings"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/cache"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/models"
)

const listProcedure = "list_primary_categories"

// Resolver maps user or model supplied category text to a CategoryRef.
type Resolver struct {
	primaries *cache.Lazy[[]string]
	logger    logger.Logger
}

// NewResolver builds a Resolver over an injected primary-category cache.
func NewResolver(primaries *cache.Lazy[[]string], log logger.Logger) *Resolver {
	return &Resolver{primaries: primaries, logger: log}
}

// PrimaryLoader lists the distinct primary categories from the raw dataset.
func PrimaryLoader(inv procedures.Invoker, dataset string) cache.Loader[[]string] {
	return func(ctx context.Context) ([]string, error) {
		result, err := inv.Invoke(ctx, dataset, listProcedure, nil)
		if err != nil {
			metrics.CategoryCacheLoads.WithLabelValues("primary_categories", "error").Inc()
			return nil, err
		}
		out := make([]string, 0, len(result.Rows))
		for _, row := range result.Rows {
			if name, ok := row["primary_category"].(string); ok && strings.TrimSpace(name) != "" {
				out = append(out, name)
			}
		}
		metrics.CategoryCacheLoads.WithLabelValues("primary_categories", "ok").Inc()
		return out, nil
	}
}

// Resolve returns an empty reference for a nil or blank input. Input that
// normalizes to a known primary returns that primary in its canonical form.
// Parenthesized input that matches no primary is rejected; anything else is
// treated as a subcategory.
func (r *Resolver) Resolve(ctx context.Context, input *string) (models.CategoryRef, error) {
	if input == nil || strings.TrimSpace(*input) == "" {
		return models.CategoryRef{}, nil
	}

	primaries, err := r.primaries.Get(ctx)
	if err != nil {
		return models.CategoryRef{}, fmt.Errorf("load primary categories: %w", err)
	}

	raw := strings.TrimSpace(*input)
	key := Normalize(raw)
	for _, p := range primaries {
		if Normalize(p) == key {
			primary := p
			return models.CategoryRef{PrimaryCategory: &primary}, nil
		}
	}

	if isWrapped(raw) {
		r.logger.Info("unknown primary category", map[string]interface{}{"category": raw})
		return models.CategoryRef{}, apperrors.NewUnknownCategoryError(raw, primaries)
	}

	sub := collapseSpaces(raw)
	return models.CategoryRef{Subcategory: &sub}, nil
}

// Normalize lowercases, strips one pair of surrounding parentheses and
// collapses inner whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if isWrapped(s) {
		s = s[1 : len(s)-1]
	}
	return strings.ToLower(collapseSpaces(s))
}

func isWrapped(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
