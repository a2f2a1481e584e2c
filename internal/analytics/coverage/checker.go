// Package coverage reports how much of a date range the insights store has materialized.
package coverage

import (
	"context"
	"fmt"
	"strconv"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/models"
)

const checkProcedure = "check_insights_coverage"

// Checker asks the insights store for its coverage of a range. Results are
// never cached.
type Checker struct {
	invoker procedures.Invoker
	dataset string
}

func NewChecker(inv procedures.Invoker, insightsDataset string) *Checker {
	return &Checker{invoker: inv, dataset: insightsDataset}
}

// Check returns the coverage of [r.Start, r.End]. A procedure returning no row
// is reported as uncovered.
func (c *Checker) Check(ctx context.Context, r models.DateRange) (models.Coverage, error) {
	result, err := c.invoker.Invoke(ctx, c.dataset, checkProcedure, []procedures.Param{
		procedures.Date("start_date", r.Start),
		procedures.Date("end_date", r.End),
	})
	if err != nil {
		return models.Coverage{}, err
	}
	if len(result.Rows) == 0 {
		return models.Coverage{}, nil
	}

	row := result.Rows[0]
	var cov models.Coverage
	if cov.IsFullyCovered, err = toBool(row["is_fully_covered"]); err != nil {
		return models.Coverage{}, fmt.Errorf("is_fully_covered: %w", err)
	}
	if cov.CoveragePercent, err = toFloat(row["coverage_percent"]); err != nil {
		return models.Coverage{}, fmt.Errorf("coverage_percent: %w", err)
	}
	total, err := toFloat(row["total_days"])
	if err != nil {
		return models.Coverage{}, fmt.Errorf("total_days: %w", err)
	}
	covered, err := toFloat(row["covered_days"])
	if err != nil {
		return models.Coverage{}, fmt.Errorf("covered_days: %w", err)
	}
	cov.TotalDays, cov.CoveredDays = int(total), int(covered)
	if cov.CoveragePercent < 0 || cov.CoveragePercent > 100 {
		return models.Coverage{}, fmt.Errorf("coverage percent out of range: %v", cov.CoveragePercent)
	}
	return cov, nil
}

// toBool and toFloat treat NULL as false / zero.
func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("unexpected type %T", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
