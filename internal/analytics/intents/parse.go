package intents

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "fds-analytics/internal/common/errors"
	"fds-analytics/internal/models"
)

// Parse validates args against the named intent's schema and builds the typed
// intent. Missing, malformed or unknown arguments reject the call; nothing is
// defaulted except the optional filters.
func (c *Catalog) Parse(name string, args map[string]interface{}) (Intent, error) {
	schema, ok := c.schemas[name]
	if !ok {
		return nil, apperrors.NewUnknownIntentError(name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, apperrors.NewInvalidArgumentError(name, []string{err.Error()})
	}
	if !result.Valid() {
		return nil, apperrors.NewInvalidArgumentError(name, schemaProblems(result.Errors()))
	}

	a := argReader{intent: name, args: args}
	var in Intent
	switch name {
	case NameDailySales:
		in = DailySales{Range: a.dateRange("startDate", "endDate"), Category: a.optString("category")}
	case NameTopItems:
		in = TopItems{Limit: a.limit("limit"), Range: a.dateRange("startDate", "endDate"), Category: a.optString("category")}
	case NameCategoryBreakdown:
		in = CategoryBreakdown{Range: a.dateRange("startDate", "endDate"), IncludeBeer: a.optBool("includeBeer", true)}
	case NameTotalSales:
		in = TotalSales{Range: a.dateRange("startDate", "endDate"), Category: a.optString("category")}
	case NamePeakDay:
		in = PeakDay{Range: a.dateRange("startDate", "endDate"), Type: PeakType(a.str("type")), Category: a.optString("category")}
	case NameDayTypes:
		in = DayTypes{Range: a.dateRange("startDate", "endDate"), Comparison: Comparison(a.str("comparison")), Category: a.optString("category")}
	case NameItemPerformance:
		in = ItemPerformance{ItemName: a.text("itemName"), Range: a.dateRange("startDate", "endDate")}
	case NameComparePeriods:
		in = ComparePeriods{
			Period1:  a.dateRange("startDate1", "endDate1"),
			Period2:  a.dateRange("startDate2", "endDate2"),
			Category: a.optString("category"),
			ItemName: a.optString("itemName"),
		}
	default:
		return nil, apperrors.NewUnknownIntentError(name)
	}

	if len(a.problems) > 0 {
		return nil, apperrors.NewInvalidArgumentError(name, a.problems)
	}
	return in, nil
}

func schemaProblems(errs []gojsonschema.ResultError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	sort.Strings(out)
	return out
}

// argReader extracts already schema-checked arguments and collects the
// semantic problems the schema cannot express.
type argReader struct {
	intent   string
	args     map[string]interface{}
	problems []string
}

func (a *argReader) str(key string) string {
	s, _ := a.args[key].(string)
	return s
}

// text returns a required string, trimmed. Blank values are a problem.
func (a *argReader) text(key string) string {
	s := strings.TrimSpace(a.str(key))
	if s == "" {
		a.problems = append(a.problems, fmt.Sprintf("%s: must not be blank", key))
	}
	return s
}

func (a *argReader) optString(key string) *string {
	s, ok := a.args[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

func (a *argReader) optBool(key string, def bool) bool {
	if b, ok := a.args[key].(bool); ok {
		return b
	}
	return def
}

func (a *argReader) limit(key string) int {
	var f float64
	switch n := a.args[key].(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		a.problems = append(a.problems, fmt.Sprintf("%s: must be an integer", key))
		return 0
	}
	if f != math.Trunc(f) || f < MinLimit || f > MaxLimit {
		a.problems = append(a.problems, fmt.Sprintf("%s: must be an integer between %d and %d", key, MinLimit, MaxLimit))
		return 0
	}
	return int(f)
}

func (a *argReader) date(key string) (time.Time, bool) {
	t, err := time.Parse(models.DateLayout, a.str(key))
	if err != nil {
		a.problems = append(a.problems, fmt.Sprintf("%s: not a calendar date", key))
		return time.Time{}, false
	}
	return t, true
}

func (a *argReader) dateRange(startKey, endKey string) models.DateRange {
	start, okStart := a.date(startKey)
	end, okEnd := a.date(endKey)
	if okStart && okEnd && start.After(end) {
		a.problems = append(a.problems, fmt.Sprintf("%s: must not be after %s", startKey, endKey))
	}
	return models.DateRange{Start: start, End: end}
}
