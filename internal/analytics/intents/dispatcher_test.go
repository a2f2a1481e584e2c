package intents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fds-analytics/internal/analytics/category"
	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/cache"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/models"
)

// ==========================
// Fakes
// ==========================

type invocation struct {
	dataset   string
	procedure string
	params    []procedures.Param
}

type fakeInvoker struct {
	rows  map[string][]map[string]interface{}
	errs  map[string]error
	calls []invocation
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{rows: map[string][]map[string]interface{}{}, errs: map[string]error{}}
}

func (f *fakeInvoker) Invoke(_ context.Context, dataset, procedure string, params []procedures.Param) (*models.ToolResult, error) {
	f.calls = append(f.calls, invocation{dataset: dataset, procedure: procedure, params: params})
	if err := f.errs[procedure]; err != nil {
		return nil, err
	}
	return models.NewToolResult(f.rows[procedure], time.Millisecond), nil
}

func (f *fakeInvoker) only(t *testing.T) invocation {
	t.Helper()
	require.Len(t, f.calls, 1)
	return f.calls[0]
}

type fakeCoverage struct {
	covered bool
	err     error
	calls   int
}

func (f *fakeCoverage) Check(_ context.Context, _ models.DateRange) (models.Coverage, error) {
	f.calls++
	if f.err != nil {
		return models.Coverage{}, f.err
	}
	pct := 40.0
	if f.covered {
		pct = 100
	}
	return models.Coverage{IsFullyCovered: f.covered, CoveragePercent: pct}, nil
}

type fakeItems struct {
	names []string
	err   error
	calls int
}

func (f *fakeItems) Suggest(_ context.Context, _ string, max int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.names) > max {
		return f.names[:max], nil
	}
	return f.names, nil
}

type dispatcherFixture struct {
	d        *Dispatcher
	invoker  *fakeInvoker
	coverage *fakeCoverage
	items    *fakeItems
}

func newDispatcherFixture(t *testing.T, opts Options) *dispatcherFixture {
	t.Helper()
	if opts.Datasets == (Datasets{}) {
		opts.Datasets = Datasets{Raw: "analytics", Insights: "insights"}
	}
	log := logger.NewTestLogger(t)
	f := &dispatcherFixture{
		invoker:  newFakeInvoker(),
		coverage: &fakeCoverage{},
		items:    &fakeItems{},
	}
	resolver := category.NewResolver(cache.NewSeeded([]string{"(Beer)", "(Sushi)", "(Food)"}), log)
	f.d = NewDispatcher(newTestCatalog(t), f.invoker, resolver, f.coverage, f.items, opts, log)
	return f
}

func param(t *testing.T, params []procedures.Param, name string) interface{} {
	t.Helper()
	for _, p := range params {
		if p.Name == name {
			return p.Value
		}
	}
	t.Fatalf("param %s not sent", name)
	return nil
}

func paramNames(params []procedures.Param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

// ==========================
// Slow path
// ==========================

func TestExecute_TotalSalesMay(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{
		{"dimension": nil, "metric_value": 48210.5, "period": "current"},
	}

	result, err := f.d.Execute(context.Background(), NameTotalSales, with(mayRange(), "category", "sushi"))
	require.NoError(t, err)

	call := f.invoker.only(t)
	assert.Equal(t, "analytics", call.dataset)
	assert.Equal(t, ProcQueryMetrics, call.procedure)
	assert.Equal(t, []string{
		"start_date", "end_date", "metric", "aggregation", "group_by", "primary_category",
		"subcategory", "item_name", "order_by", "max_rows", "baseline_start_date", "baseline_end_date",
	}, paramNames(call.params))
	assert.Equal(t, "2025-05-01", param(t, call.params, "start_date"))
	assert.Equal(t, "2025-05-31", param(t, call.params, "end_date"))
	assert.Equal(t, "SUM", param(t, call.params, "aggregation"))
	assert.Nil(t, param(t, call.params, "group_by"))
	assert.Equal(t, "(Sushi)", param(t, call.params, "primary_category"))
	assert.Nil(t, param(t, call.params, "subcategory"))
	assert.Nil(t, param(t, call.params, "baseline_start_date"))

	assert.Zero(t, f.coverage.calls)
	assert.Equal(t, PathSlow, result.DataPath)
	assert.Equal(t, 1, result.TotalRows)
	assert.Equal(t, len(result.Rows), result.TotalRows)
}

func TestExecute_InvalidLimitNeverReachesStore(t *testing.T) {
	f := newDispatcherFixture(t, Options{})

	_, err := f.d.Execute(context.Background(), NameTopItems, with(mayRange(), "limit", 0))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
	assert.Empty(t, f.invoker.calls)
	assert.Zero(t, f.coverage.calls)
}

func TestExecute_UnknownCategoryNeverReachesStore(t *testing.T) {
	f := newDispatcherFixture(t, Options{})

	_, err := f.d.Execute(context.Background(), NameDailySales, with(mayRange(), "category", "(Pizza)"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownCategory))
	assert.Empty(t, f.invoker.calls)
}

func TestExecute_PeakDay(t *testing.T) {
	tests := []struct {
		peak    string
		orderBy string
	}{
		{"highest", "value_desc"},
		{"lowest", "value_asc"},
	}

	for _, tt := range tests {
		t.Run(tt.peak, func(t *testing.T) {
			f := newDispatcherFixture(t, Options{})
			f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{{"dimension": "2025-05-17", "metric_value": 3100.0}}

			result, err := f.d.Execute(context.Background(), NamePeakDay, with(mayRange(), "type", tt.peak))
			require.NoError(t, err)

			call := f.invoker.only(t)
			assert.Equal(t, "date", param(t, call.params, "group_by"))
			assert.Equal(t, tt.orderBy, param(t, call.params, "order_by"))
			assert.Equal(t, int64(1), param(t, call.params, "max_rows"))
			assert.Equal(t, 1, result.TotalRows)
		})
	}
}

func TestExecute_DayTypes(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = weekFixture()

	result, err := f.d.Execute(context.Background(), NameDayTypes, map[string]interface{}{
		"startDate": "2025-05-05", "endDate": "2025-05-11", "comparison": "weekday_vs_weekend",
	})
	require.NoError(t, err)

	assert.Equal(t, "date", param(t, f.invoker.only(t).params, "group_by"))
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 100.0, result.Rows[0]["average"])
	assert.Equal(t, 300.0, result.Rows[1]["average"])
}

func TestExecute_DayTypesBadRow(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{{"dimension": 17, "metric_value": 1.0}}

	_, err := f.d.Execute(context.Background(), NameDayTypes, with(mayRange(), "comparison", "by_day_of_week"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryInternal, apperrors.CategoryOf(err))
}

// ==========================
// Item performance
// ==========================

func TestExecute_ItemPerformanceSuggestions(t *testing.T) {
	f := newDispatcherFixture(t, Options{MaxSuggestions: 2})
	f.items.names = []string{"Salmon Nigiri", "Salmon Roll", "Salmon Sashimi"}

	result, err := f.d.Execute(context.Background(), NameItemPerformance, with(mayRange(), "itemName", "Salmn Nigiri"))
	require.NoError(t, err)

	call := f.invoker.only(t)
	assert.Equal(t, "Salmn Nigiri", param(t, call.params, "item_name"))
	assert.Equal(t, "date", param(t, call.params, "group_by"))
	assert.Equal(t, 0, result.TotalRows)
	assert.Equal(t, []string{"Salmon Nigiri", "Salmon Roll"}, result.Suggestions)
	assert.Equal(t, 1, f.items.calls)
}

func TestExecute_ItemPerformanceSuggestionFailureIsNotFatal(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.items.err = errors.New("index unavailable")

	result, err := f.d.Execute(context.Background(), NameItemPerformance, with(mayRange(), "itemName", "Unagi"))
	require.NoError(t, err)
	assert.Empty(t, result.Suggestions)
}

func TestExecute_ItemPerformanceWithRowsSkipsSuggestions(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{{"dimension": "2025-05-02", "metric_value": 80.0}}

	result, err := f.d.Execute(context.Background(), NameItemPerformance, with(mayRange(), "itemName", "Edamame"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalRows)
	assert.Zero(t, f.items.calls)
}

// ==========================
// Fast path selection
// ==========================

func TestExecute_DailySalesPaths(t *testing.T) {
	t.Run("fully covered uses insights", func(t *testing.T) {
		f := newDispatcherFixture(t, Options{})
		f.coverage.covered = true

		result, err := f.d.Execute(context.Background(), NameDailySales, with(mayRange(), "category", "Signature Rolls"))
		require.NoError(t, err)

		call := f.invoker.only(t)
		assert.Equal(t, "insights", call.dataset)
		assert.Equal(t, ProcDailySummary, call.procedure)
		assert.Nil(t, param(t, call.params, "primary_category"))
		assert.Equal(t, "Signature Rolls", param(t, call.params, "subcategory"))
		assert.Equal(t, PathFast, result.DataPath)
	})

	t.Run("partial coverage uses raw", func(t *testing.T) {
		f := newDispatcherFixture(t, Options{})

		result, err := f.d.Execute(context.Background(), NameDailySales, mayRange())
		require.NoError(t, err)

		call := f.invoker.only(t)
		assert.Equal(t, "analytics", call.dataset)
		assert.Equal(t, ProcQueryMetrics, call.procedure)
		assert.Equal(t, "date", param(t, call.params, "group_by"))
		assert.Equal(t, PathSlow, result.DataPath)
	})

	t.Run("coverage failure falls back to raw", func(t *testing.T) {
		f := newDispatcherFixture(t, Options{})
		f.coverage.err = errors.New("insights offline")

		result, err := f.d.Execute(context.Background(), NameDailySales, mayRange())
		require.NoError(t, err)
		assert.Equal(t, ProcQueryMetrics, f.invoker.only(t).procedure)
		assert.Equal(t, PathSlow, result.DataPath)
	})
}

func TestExecute_TopItemsPaths(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.coverage.covered = true

	_, err := f.d.Execute(context.Background(), NameTopItems, with(mayRange(), "limit", 5))
	require.NoError(t, err)
	call := f.invoker.only(t)
	assert.Equal(t, ProcTopItemsInsights, call.procedure)
	assert.Equal(t, int64(5), param(t, call.params, "max_rows"))

	f = newDispatcherFixture(t, Options{})
	_, err = f.d.Execute(context.Background(), NameTopItems, with(mayRange(), "limit", 5))
	require.NoError(t, err)
	call = f.invoker.only(t)
	assert.Equal(t, ProcQueryMetrics, call.procedure)
	assert.Equal(t, "item", param(t, call.params, "group_by"))
	assert.Equal(t, "value_desc", param(t, call.params, "order_by"))
	assert.Equal(t, int64(5), param(t, call.params, "max_rows"))
}

func TestExecute_CategoryBreakdown(t *testing.T) {
	t.Run("fast path passes include_beer", func(t *testing.T) {
		f := newDispatcherFixture(t, Options{})
		f.coverage.covered = true

		_, err := f.d.Execute(context.Background(), NameCategoryBreakdown, with(mayRange(), "includeBeer", false))
		require.NoError(t, err)
		call := f.invoker.only(t)
		assert.Equal(t, ProcCategoryTrends, call.procedure)
		assert.Equal(t, false, param(t, call.params, "include_beer"))
	})

	t.Run("slow path filters beer", func(t *testing.T) {
		f := newDispatcherFixture(t, Options{})
		f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{
			{"dimension": "(Sushi)", "metric_value": 900.0},
			{"dimension": "(Beer)", "metric_value": 400.0},
			{"dimension": "(Food)", "metric_value": 300.0},
		}

		result, err := f.d.Execute(context.Background(), NameCategoryBreakdown, with(mayRange(), "includeBeer", false))
		require.NoError(t, err)
		assert.Equal(t, "category", param(t, f.invoker.only(t).params, "group_by"))
		require.Equal(t, 2, result.TotalRows)
		assert.Equal(t, "(Sushi)", result.Rows[0]["dimension"])
		assert.Equal(t, "(Food)", result.Rows[1]["dimension"])
	})
}

// ==========================
// Compare periods
// ==========================

func TestExecute_ComparePeriods(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{
		{"dimension": nil, "metric_value": 38000.0, "period": "baseline"},
		{"dimension": nil, "metric_value": 41000.0, "period": "current"},
	}

	result, err := f.d.Execute(context.Background(), NameComparePeriods, map[string]interface{}{
		"startDate1": "2025-05-01", "endDate1": "2025-05-31",
		"startDate2": "2025-04-01", "endDate2": "2025-04-30",
		"category": "(Food)",
	})
	require.NoError(t, err)

	call := f.invoker.only(t)
	assert.Equal(t, "2025-05-01", param(t, call.params, "start_date"))
	assert.Equal(t, "2025-04-01", param(t, call.params, "baseline_start_date"))
	assert.Equal(t, "2025-04-30", param(t, call.params, "baseline_end_date"))
	assert.Equal(t, "(Food)", param(t, call.params, "primary_category"))

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "period1", result.Rows[0]["period"])
	assert.Equal(t, 41000.0, result.Rows[0]["metric_value"])
	assert.Equal(t, "2025-05-31", result.Rows[0]["end_date"])
	assert.Equal(t, "period2", result.Rows[1]["period"])
	assert.Equal(t, 38000.0, result.Rows[1]["metric_value"])
	assert.Equal(t, "2025-04-01", result.Rows[1]["start_date"])
}

func TestExecute_ComparePeriodsUnlabelledRow(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{{"metric_value": 1.0}}

	_, err := f.d.Execute(context.Background(), NameComparePeriods, map[string]interface{}{
		"startDate1": "2025-05-01", "endDate1": "2025-05-31",
		"startDate2": "2025-04-01", "endDate2": "2025-04-30",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternal))
}

// ==========================
// Data window and failures
// ==========================

func TestExecute_RangeBeyondLoadedDataReachesStore(t *testing.T) {
	f := newDispatcherFixture(t, Options{})

	result, err := f.d.Execute(context.Background(), NameTotalSales, map[string]interface{}{"startDate": "2025-06-09", "endDate": "2025-06-09"})
	require.NoError(t, err)

	call := f.invoker.only(t)
	assert.Equal(t, ProcQueryMetrics, call.procedure)
	assert.Equal(t, 0, result.TotalRows)
	assert.Empty(t, result.Rows)
	assert.Equal(t, PathSlow, result.DataPath)
}

func TestExecute_FailureMetricCarriesPath(t *testing.T) {
	tests := []struct {
		name    string
		covered bool
		proc    string
		path    string
	}{
		{"fast path failure", true, ProcDailySummary, PathFast},
		{"slow path failure", false, ProcQueryMetrics, PathSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t, Options{})
			f.coverage.covered = tt.covered
			storeErr := apperrors.NewQueryExecutionFailedError(tt.proc, errors.New("connection reset"))
			f.invoker.errs[tt.proc] = storeErr

			counter := metrics.IntentExecutions.WithLabelValues(NameDailySales, tt.path, "error")
			before := testutil.ToFloat64(counter)

			_, err := f.d.Execute(context.Background(), NameDailySales, mayRange())
			require.Error(t, err)
			assert.Same(t, storeErr, err)
			assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
		})
	}
}

func TestExecute_FailureBeforeStoreHasNoPath(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	counter := metrics.IntentExecutions.WithLabelValues(NameTotalSales, "none", "error")
	before := testutil.ToFloat64(counter)

	_, err := f.d.Execute(context.Background(), NameTotalSales, with(mayRange(), "category", "(Pizza)"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownCategory))
	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
	assert.Empty(t, f.invoker.calls)
}

func TestExecute_StoreErrorsPropagate(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.errs[ProcQueryMetrics] = apperrors.NewQueryTimeoutError(ProcQueryMetrics, procedures.ErrQueryTimeout)

	_, err := f.d.Execute(context.Background(), NameTotalSales, mayRange())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeQueryTimeout))
	assert.True(t, errors.Is(err, procedures.ErrQueryTimeout))
}

func TestExecute_BlankItemNameNeverQueries(t *testing.T) {
	f := newDispatcherFixture(t, Options{})

	_, err := f.d.Execute(context.Background(), NameItemPerformance, with(mayRange(), "itemName", "   "))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
	assert.Empty(t, f.invoker.calls)
	assert.Zero(t, f.items.calls)
}

func TestExecute_DayTypesWithUnreadableValueIsInternal(t *testing.T) {
	f := newDispatcherFixture(t, Options{})
	f.invoker.rows[ProcQueryMetrics] = []map[string]interface{}{
		{"dimension": "2025-05-05", "metric_value": 100.0},
		{"dimension": "2025-05-10", "metric_value": "not a number"},
	}

	counter := metrics.IntentExecutions.WithLabelValues(NameDayTypes, PathSlow, "error")
	before := testutil.ToFloat64(counter)

	_, err := f.d.Execute(context.Background(), NameDayTypes, with(mayRange(), "comparison", "weekday_vs_weekend"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternal))
	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.0001)
}
