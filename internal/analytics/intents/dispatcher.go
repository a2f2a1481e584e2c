package intents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fds-analytics/internal/analytics/procedures"
	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/common/observability"
	"fds-analytics/internal/models"
)

// Procedure names.
const (
	ProcQueryMetrics     = "query_metrics"
	ProcDailySummary     = "get_daily_summary"
	ProcTopItemsInsights = "get_top_items_from_insights"
	ProcCategoryTrends   = "get_category_trends"
)

const (
	PathFast = "fast"
	PathSlow = "slow"
)

const (
	metricNetSales = "net_sales"
	aggregationSum = "SUM"

	periodCurrent  = "current"
	periodBaseline = "baseline"
)

// CategoryResolver resolves category filters.
type CategoryResolver interface {
	Resolve(ctx context.Context, input *string) (models.CategoryRef, error)
}

// CoverageChecker reports insights coverage for a range.
type CoverageChecker interface {
	Check(ctx context.Context, r models.DateRange) (models.Coverage, error)
}

// ItemSuggester finds item names similar to a fragment.
type ItemSuggester interface {
	Suggest(ctx context.Context, fragment string, max int) ([]string, error)
}

// Datasets names the raw and pre-aggregated schemas.
type Datasets struct {
	Raw      string
	Insights string
}

// Options configures a Dispatcher.
type Options struct {
	Datasets       Datasets
	MaxSuggestions int
}

// Dispatcher executes validated intents against the aggregation store.
type Dispatcher struct {
	catalog    *Catalog
	invoker    procedures.Invoker
	categories CategoryResolver
	coverage   CoverageChecker
	items      ItemSuggester
	opts       Options
	logger     logger.Logger
}

func NewDispatcher(
	catalog *Catalog,
	invoker procedures.Invoker,
	categories CategoryResolver,
	coverage CoverageChecker,
	items ItemSuggester,
	opts Options,
	log logger.Logger,
) *Dispatcher {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 5
	}
	return &Dispatcher{
		catalog:    catalog,
		invoker:    invoker,
		categories: categories,
		coverage:   coverage,
		items:      items,
		opts:       opts,
		logger:     log.WithFields(map[string]interface{}{"component": "intent-dispatcher"}),
	}
}

// Execute validates and runs one intent call. TotalRows always equals len(Rows).
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]interface{}) (*models.ToolResult, error) {
	ctx, span := observability.Tracer("fds-analytics/intents").Start(ctx, "intent."+name)
	defer span.End()

	in, err := d.catalog.Parse(name, args)
	if err != nil {
		metrics.IntentExecutions.WithLabelValues(name, "none", "rejected").Inc()
		d.logger.Info("intent call rejected", map[string]interface{}{
			"intent": name,
			"error":  err.Error(),
		})
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}

	start := time.Now()
	result, err := d.dispatch(ctx, in)
	if err != nil {
		path := "none"
		var pe *pathError
		if errors.As(err, &pe) {
			path, err = pe.path, pe.err
		}
		metrics.IntentExecutions.WithLabelValues(name, path, "error").Inc()
		span.SetAttributes(attribute.String("intent.path", path))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.AsStandardError(err).Code))
		return nil, err
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	metrics.IntentExecutions.WithLabelValues(name, result.DataPath, "ok").Inc()
	span.SetAttributes(
		attribute.String("intent.path", result.DataPath),
		attribute.Int("intent.rows", result.TotalRows),
	)
	d.logger.Info("intent executed", map[string]interface{}{
		"intent":   name,
		"path":     result.DataPath,
		"rowCount": result.TotalRows,
	})
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, in Intent) (*models.ToolResult, error) {
	switch v := in.(type) {
	case DailySales:
		return d.dailySales(ctx, v)
	case TopItems:
		return d.topItems(ctx, v)
	case CategoryBreakdown:
		return d.categoryBreakdown(ctx, v)
	case TotalSales:
		return d.totalSales(ctx, v)
	case PeakDay:
		return d.peakDay(ctx, v)
	case DayTypes:
		return d.dayTypes(ctx, v)
	case ItemPerformance:
		return d.itemPerformance(ctx, v)
	case ComparePeriods:
		return d.comparePeriods(ctx, v)
	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("unhandled intent type %T", in))
	}
}

// --- per-intent handlers ---

func (d *Dispatcher) dailySales(ctx context.Context, in DailySales) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	if d.fastPathAvailable(ctx, in.Name(), in.Range) {
		return d.invoke(ctx, d.opts.Datasets.Insights, ProcDailySummary, PathFast, []procedures.Param{
			procedures.Date("start_date", in.Range.Start),
			procedures.Date("end_date", in.Range.End),
			procedures.OptText("primary_category", ref.PrimaryCategory),
			procedures.OptText("subcategory", ref.Subcategory),
		})
	}
	return d.queryMetrics(ctx, metricsQuery{
		Range:    in.Range,
		GroupBy:  strPtr("date"),
		OrderBy:  strPtr("dimension_asc"),
		Category: ref,
	})
}

func (d *Dispatcher) topItems(ctx context.Context, in TopItems) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	if d.fastPathAvailable(ctx, in.Name(), in.Range) {
		return d.invoke(ctx, d.opts.Datasets.Insights, ProcTopItemsInsights, PathFast, []procedures.Param{
			procedures.Date("start_date", in.Range.Start),
			procedures.Date("end_date", in.Range.End),
			procedures.OptText("primary_category", ref.PrimaryCategory),
			procedures.OptText("subcategory", ref.Subcategory),
			procedures.Int("max_rows", in.Limit),
		})
	}
	limit := in.Limit
	return d.queryMetrics(ctx, metricsQuery{
		Range:    in.Range,
		GroupBy:  strPtr("item"),
		OrderBy:  strPtr("value_desc"),
		MaxRows:  &limit,
		Category: ref,
	})
}

func (d *Dispatcher) categoryBreakdown(ctx context.Context, in CategoryBreakdown) (*models.ToolResult, error) {
	if d.fastPathAvailable(ctx, in.Name(), in.Range) {
		return d.invoke(ctx, d.opts.Datasets.Insights, ProcCategoryTrends, PathFast, []procedures.Param{
			procedures.Date("start_date", in.Range.Start),
			procedures.Date("end_date", in.Range.End),
			procedures.Bool("include_beer", in.IncludeBeer),
		})
	}

	result, err := d.queryMetrics(ctx, metricsQuery{
		Range:   in.Range,
		GroupBy: strPtr("category"),
		OrderBy: strPtr("value_desc"),
	})
	if err != nil {
		return nil, err
	}
	if !in.IncludeBeer {
		kept := make([]map[string]interface{}, 0, len(result.Rows))
		for _, row := range result.Rows {
			if dim, _ := row["dimension"].(string); strings.EqualFold(strings.TrimSpace(dim), "(Beer)") {
				continue
			}
			kept = append(kept, row)
		}
		result.SetRows(kept)
	}
	return result, nil
}

func (d *Dispatcher) totalSales(ctx context.Context, in TotalSales) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	return d.queryMetrics(ctx, metricsQuery{Range: in.Range, Category: ref})
}

func (d *Dispatcher) peakDay(ctx context.Context, in PeakDay) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	order := "value_desc"
	if in.Type == PeakLowest {
		order = "value_asc"
	}
	one := 1
	return d.queryMetrics(ctx, metricsQuery{
		Range:    in.Range,
		GroupBy:  strPtr("date"),
		OrderBy:  &order,
		MaxRows:  &one,
		Category: ref,
	})
}

func (d *Dispatcher) dayTypes(ctx context.Context, in DayTypes) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	result, err := d.queryMetrics(ctx, metricsQuery{
		Range:    in.Range,
		GroupBy:  strPtr("date"),
		OrderBy:  strPtr("dimension_asc"),
		Category: ref,
	})
	if err != nil {
		return nil, err
	}

	buckets, err := BucketDayTypes(result.Rows, in.Comparison)
	if err != nil {
		return nil, &pathError{path: PathSlow, err: apperrors.NewInternalError(err)}
	}
	result.SetRows(buckets)
	return result, nil
}

func (d *Dispatcher) itemPerformance(ctx context.Context, in ItemPerformance) (*models.ToolResult, error) {
	item := in.ItemName
	result, err := d.queryMetrics(ctx, metricsQuery{
		Range:    in.Range,
		GroupBy:  strPtr("date"),
		OrderBy:  strPtr("dimension_asc"),
		ItemName: &item,
	})
	if err != nil {
		return nil, err
	}

	if result.TotalRows == 0 && d.items != nil {
		suggestions, err := d.items.Suggest(ctx, item, d.opts.MaxSuggestions)
		if err != nil {
			d.logger.Warn("item suggestion lookup failed", map[string]interface{}{
				"itemName": item,
				"error":    err.Error(),
			})
		} else {
			result.Suggestions = suggestions
		}
	}
	return result, nil
}

func (d *Dispatcher) comparePeriods(ctx context.Context, in ComparePeriods) (*models.ToolResult, error) {
	ref, err := d.categories.Resolve(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	baseline := in.Period2
	result, err := d.queryMetrics(ctx, metricsQuery{
		Range:    in.Period1,
		Baseline: &baseline,
		Category: ref,
		ItemName: in.ItemName,
	})
	if err != nil {
		return nil, err
	}

	rows, err := labelPeriods(result.Rows, in.Period1, in.Period2)
	if err != nil {
		return nil, &pathError{path: PathSlow, err: apperrors.NewInternalError(err)}
	}
	result.SetRows(rows)
	return result, nil
}

// labelPeriods maps the procedure's current/baseline labels to period1/period2
// and annotates each row with its date range. Rows are never matched by position.
func labelPeriods(rows []map[string]interface{}, p1, p2 models.DateRange) ([]map[string]interface{}, error) {
	var first, second []map[string]interface{}
	for _, row := range rows {
		label, _ := row["period"].(string)
		out := make(map[string]interface{}, len(row)+2)
		for k, v := range row {
			out[k] = v
		}
		switch label {
		case periodCurrent:
			out["period"] = "period1"
			out["start_date"] = p1.StartString()
			out["end_date"] = p1.EndString()
			first = append(first, out)
		case periodBaseline:
			out["period"] = "period2"
			out["start_date"] = p2.StartString()
			out["end_date"] = p2.EndString()
			second = append(second, out)
		default:
			return nil, fmt.Errorf("comparison row has unexpected period label %q", label)
		}
	}
	return append(first, second...), nil
}

// --- shared steps ---

// fastPathAvailable reports full insights coverage. A failed check falls back
// to the slow path.
func (d *Dispatcher) fastPathAvailable(ctx context.Context, intent string, r models.DateRange) bool {
	cov, err := d.coverage.Check(ctx, r)
	if err != nil {
		d.logger.Warn("coverage check failed, using raw aggregation", map[string]interface{}{
			"intent": intent,
			"error":  err.Error(),
		})
		return false
	}
	d.logger.Debug("coverage checked", map[string]interface{}{
		"intent":          intent,
		"coveragePercent": cov.CoveragePercent,
		"fullyCovered":    cov.IsFullyCovered,
	})
	return cov.IsFullyCovered
}

func (d *Dispatcher) invoke(ctx context.Context, dataset, procedure, path string, params []procedures.Param) (*models.ToolResult, error) {
	result, err := d.invoker.Invoke(ctx, dataset, procedure, params)
	if err != nil {
		return nil, &pathError{path: path, err: err}
	}
	result.SetRows(result.Rows)
	result.DataPath = path
	return result, nil
}

// pathError records which data path a failed execution took.
type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string { return e.err.Error() }

func (e *pathError) Unwrap() error { return e.err }

type metricsQuery struct {
	Range    models.DateRange
	GroupBy  *string
	OrderBy  *string
	MaxRows  *int
	Category models.CategoryRef
	ItemName *string
	Baseline *models.DateRange
}

func (q metricsQuery) params() []procedures.Param {
	params := []procedures.Param{
		procedures.Date("start_date", q.Range.Start),
		procedures.Date("end_date", q.Range.End),
		procedures.Text("metric", metricNetSales),
		procedures.Text("aggregation", aggregationSum),
		procedures.OptText("group_by", q.GroupBy),
		procedures.OptText("primary_category", q.Category.PrimaryCategory),
		procedures.OptText("subcategory", q.Category.Subcategory),
		procedures.OptText("item_name", q.ItemName),
		procedures.OptText("order_by", q.OrderBy),
	}
	if q.MaxRows != nil {
		params = append(params, procedures.Int("max_rows", *q.MaxRows))
	} else {
		params = append(params, procedures.NullInt("max_rows"))
	}
	if q.Baseline != nil {
		params = append(params,
			procedures.Date("baseline_start_date", q.Baseline.Start),
			procedures.Date("baseline_end_date", q.Baseline.End),
		)
	} else {
		params = append(params,
			procedures.NullDate("baseline_start_date"),
			procedures.NullDate("baseline_end_date"),
		)
	}
	return params
}

func (d *Dispatcher) queryMetrics(ctx context.Context, q metricsQuery) (*models.ToolResult, error) {
	return d.invoke(ctx, d.opts.Datasets.Raw, ProcQueryMetrics, PathSlow, q.params())
}

func strPtr(s string) *string { return &s }
