package category

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/cache"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/models"
)

var knownPrimaries = []string{"(Beer)", "(Sushi)", "(Food)", "(Liquor)", "(Wine)", "(N/A Beverages)"}

func newSeededResolver(t *testing.T) *Resolver {
	return NewResolver(cache.NewSeeded(knownPrimaries), logger.NewTestLogger(t))
}

func strPtr(s string) *string { return &s }

type fakeInvoker struct {
	calls  int
	result *models.ToolResult
	err    error
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string, _ []procedures.Param) (*models.ToolResult, error) {
	f.calls++
	return f.result, f.err
}

// ==========================
// Resolve Tests
// ==========================

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		input       *string
		wantPrimary string
		wantSub     string
	}{
		{"nil input", nil, "", ""},
		{"blank input", strPtr("   "), "", ""},
		{"exact primary", strPtr("(Sushi)"), "(Sushi)", ""},
		{"primary without parens", strPtr("sushi"), "(Sushi)", ""},
		{"primary with spacing", strPtr("  ( n/a   beverages ) "), "(N/A Beverages)", ""},
		{"uppercase primary", strPtr("BEER"), "(Beer)", ""},
		{"subcategory", strPtr("Signature Rolls"), "", "Signature Rolls"},
		{"subcategory spacing collapsed", strPtr(" Draft   Beer "), "", "Draft Beer"},
	}

	r := newSeededResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := r.Resolve(context.Background(), tt.input)
			require.NoError(t, err)

			if tt.wantPrimary == "" {
				assert.Nil(t, ref.PrimaryCategory)
			} else {
				require.NotNil(t, ref.PrimaryCategory)
				assert.Equal(t, tt.wantPrimary, *ref.PrimaryCategory)
			}
			if tt.wantSub == "" {
				assert.Nil(t, ref.Subcategory)
			} else {
				require.NotNil(t, ref.Subcategory)
				assert.Equal(t, tt.wantSub, *ref.Subcategory)
			}
		})
	}
}

func TestResolve_UnknownWrappedCategory(t *testing.T) {
	r := newSeededResolver(t)
	_, err := r.Resolve(context.Background(), strPtr("(Desserts)"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownCategory))
	assert.True(t, apperrors.IsUserInput(err))
}

func TestResolve_LoadsPrimariesOnce(t *testing.T) {
	inv := &fakeInvoker{result: models.NewToolResult([]map[string]interface{}{
		{"primary_category": "(Beer)"},
		{"primary_category": "(Sushi)"},
		{"primary_category": ""},
	}, 0)}
	r := NewResolver(cache.NewLazy(PrimaryLoader(inv, "analytics")), logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		ref, err := r.Resolve(context.Background(), strPtr("beer"))
		require.NoError(t, err)
		assert.Equal(t, "(Beer)", *ref.PrimaryCategory)
	}
	assert.Equal(t, 1, inv.calls)
}

func TestResolve_LoadFailurePropagates(t *testing.T) {
	inv := &fakeInvoker{err: apperrors.NewQueryTimeoutError("list_primary_categories", errors.New("slow"))}
	r := NewResolver(cache.NewLazy(PrimaryLoader(inv, "analytics")), logger.NewTestLogger(t))

	_, err := r.Resolve(context.Background(), strPtr("beer"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeQueryTimeout))
}

// ==========================
// Property Tests
// ==========================

func TestResolve_PrimaryMatchProperty(t *testing.T) {
	r := newSeededResolver(t)
	rapid.Check(t, func(rt *rapid.T) {
		primary := rapid.SampledFrom(knownPrimaries).Draw(rt, "primary")
		inner := primary[1 : len(primary)-1]
		wrap := rapid.Bool().Draw(rt, "wrap")
		upper := rapid.Bool().Draw(rt, "upper")
		pad := strings.Repeat(" ", rapid.IntRange(0, 3).Draw(rt, "pad"))

		input := inner
		if upper {
			input = strings.ToUpper(input)
		} else {
			input = strings.ToLower(input)
		}
		if wrap {
			input = "(" + input + ")"
		}
		input = pad + input + pad

		ref, err := r.Resolve(context.Background(), &input)
		if err != nil {
			rt.Fatalf("unexpected error for %q: %v", input, err)
		}
		if ref.PrimaryCategory == nil || *ref.PrimaryCategory != primary {
			rt.Fatalf("input %q resolved to %+v, want %s", input, ref, primary)
		}
		if ref.Subcategory != nil {
			rt.Fatalf("input %q produced subcategory %q", input, *ref.Subcategory)
		}
	})
}
