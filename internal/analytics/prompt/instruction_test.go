package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/cache"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/models"
)

type fakeInvoker struct {
	rows  []map[string]interface{}
	err   error
	calls int
}

func (f *fakeInvoker) Invoke(_ context.Context, dataset, procedure string, _ []procedures.Param) (*models.ToolResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return models.NewToolResult(f.rows, 0), nil
}

func fixedNow() time.Time { return time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC) }

func TestBuild_WithBounds(t *testing.T) {
	bounds := cache.NewSeeded(models.DateBounds{
		Earliest: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Latest:   time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	b := NewBuilder("Senso Sushi", bounds, logger.NewTestLogger(t))
	b.now = fixedNow

	got, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, "restaurant analytics at Senso Sushi")
	assert.Contains(t, got, "Today is 2025-06-15.")
	assert.Contains(t, got, "available from 2024-01-01 through 2025-06-14")
	assert.Contains(t, got, "(N/A Beverages)")
}

func TestBuild_BoundsUnavailable(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("connection refused")}
	b := NewBuilder("", cache.NewLazy(BoundsLoader(inv, "analytics")), logger.NewTestLogger(t))
	b.now = fixedNow

	got, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, "at the restaurant.")
	assert.NotContains(t, got, "available from")
	assert.Equal(t, 1, inv.calls)
}

func TestBoundsLoader(t *testing.T) {
	inv := &fakeInvoker{rows: []map[string]interface{}{
		{"earliest_date": "2024-01-01", "latest_date": time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)},
	}}
	bounds := cache.NewLazy(BoundsLoader(inv, "analytics"))

	got, err := bounds.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got.Earliest.Format(models.DateLayout))
	assert.Equal(t, "2025-06-14", got.Latest.Format(models.DateLayout))

	_, err = bounds.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls)
}

func TestBoundsLoader_Errors(t *testing.T) {
	_, err := BoundsLoader(&fakeInvoker{}, "analytics")(context.Background())
	assert.Error(t, err)

	_, err = BoundsLoader(&fakeInvoker{rows: []map[string]interface{}{{"earliest_date": nil, "latest_date": "2025-01-01"}}}, "analytics")(context.Background())
	assert.Error(t, err)
}
