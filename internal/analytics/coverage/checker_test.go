package coverage

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/models"
)

const coverageQuery = `SELECT * FROM "insights"."check_insights_coverage"(start_date => $1::date, end_date => $2::date)`

func newTestChecker(t *testing.T) (*Checker, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	inv := procedures.NewPostgresInvoker(db, time.Second, logger.NewTestLogger(t))
	return NewChecker(inv, "insights"), mock
}

func may2025() models.DateRange {
	return models.DateRange{
		Start: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheck_FullyCovered(t *testing.T) {
	c, mock := newTestChecker(t)
	mock.ExpectQuery(coverageQuery).
		WithArgs("2025-05-01", "2025-05-31").
		WillReturnRows(sqlmock.NewRows([]string{"total_days", "covered_days", "coverage_percent", "is_fully_covered"}).
			AddRow(int64(31), int64(31), []byte("100.00"), true))

	cov, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)
	assert.True(t, cov.IsFullyCovered)
	assert.Equal(t, 100.0, cov.CoveragePercent)
	assert.Equal(t, 31, cov.CoveredDays)
}

func TestCheck_PartialCoverage(t *testing.T) {
	c, mock := newTestChecker(t)
	mock.ExpectQuery(coverageQuery).
		WithArgs("2025-05-01", "2025-05-31").
		WillReturnRows(sqlmock.NewRows([]string{"total_days", "covered_days", "coverage_percent", "is_fully_covered"}).
			AddRow(int64(31), int64(10), []byte("32.26"), false))

	cov, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)
	assert.False(t, cov.IsFullyCovered)
	assert.InDelta(t, 32.26, cov.CoveragePercent, 0.001)
}

func TestCheck_NoRowMeansUncovered(t *testing.T) {
	c, mock := newTestChecker(t)
	mock.ExpectQuery(coverageQuery).
		WillReturnRows(sqlmock.NewRows([]string{"is_fully_covered"}))

	cov, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)
	assert.False(t, cov.IsFullyCovered)
}

func TestCheck_NeverCached(t *testing.T) {
	c, mock := newTestChecker(t)
	cols := []string{"total_days", "covered_days", "coverage_percent", "is_fully_covered"}
	mock.ExpectQuery(coverageQuery).WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(31), int64(0), []byte("0"), false))
	mock.ExpectQuery(coverageQuery).WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(31), int64(31), []byte("100"), true))

	first, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)
	second, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)

	assert.False(t, first.IsFullyCovered)
	assert.True(t, second.IsFullyCovered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_RejectsUnreadableColumns(t *testing.T) {
	cols := []string{"total_days", "covered_days", "coverage_percent", "is_fully_covered"}
	tests := []struct {
		name   string
		row    []driver.Value
		column string
	}{
		{"percent not numeric", []driver.Value{int64(31), int64(31), []byte("n/a"), true}, "coverage_percent"},
		{"flag not boolean", []driver.Value{int64(31), int64(31), []byte("100"), "maybe"}, "is_fully_covered"},
		{"days not numeric", []driver.Value{"many", int64(31), []byte("100"), true}, "total_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newTestChecker(t)
			mock.ExpectQuery(coverageQuery).WillReturnRows(sqlmock.NewRows(cols).AddRow(tt.row...))

			cov, err := c.Check(context.Background(), may2025())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.column)
			assert.False(t, cov.IsFullyCovered)
		})
	}
}

func TestCheck_NullColumnsReadAsZero(t *testing.T) {
	c, mock := newTestChecker(t)
	mock.ExpectQuery(coverageQuery).
		WillReturnRows(sqlmock.NewRows([]string{"total_days", "covered_days", "coverage_percent", "is_fully_covered"}).
			AddRow(int64(31), nil, nil, false))

	cov, err := c.Check(context.Background(), may2025())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cov.CoveragePercent)
	assert.Equal(t, 0, cov.CoveredDays)
}
