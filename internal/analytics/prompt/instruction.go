// Package prompt builds the per-turn system instruction.
package prompt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/common/cache"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/common/metrics"
	"fds-analytics/internal/models"
)

const boundsProcedure = "get_data_bounds"

var instructionTemplate = template.Must(template.New("system").Parse(`You are an AI assistant for restaurant analytics at {{.Restaurant}}.

Today is {{.Today}}.{{if .HasBounds}} Sales data is available from {{.Earliest}} through {{.Latest}}.{{end}}

Use exactly one of the provided analytics functions to answer each question, then explain the result.

Guidelines:
- Dates must be YYYY-MM-DD (e.g. "2025-05-01"). Resolve relative periods such as "last month" against today's date.
- Primary categories have parentheses: (Beer), (Sushi), (Food), (Liquor), (Wine), (N/A Beverages).
- Subcategories have no parentheses: Bottle Beer, Draft Beer, Signature Rolls.
- "Top N" questions need an integer limit between 1 and 1000.

Response handling:
- Present data in a clear, conversational format and highlight key insights and trends.
- When a result has no rows, say so and suggest an alternative period or filter.
- When suggestions are returned for an item name, offer them to the user.
- Never mention function names, parameters, or internal identifiers.
`))

type instructionData struct {
	Restaurant string
	Today      string
	HasBounds  bool
	Earliest   string
	Latest     string
}

// Builder renders the system instruction for the current date, framing it with
// the available data window when known.
type Builder struct {
	restaurant string
	bounds     *cache.Lazy[models.DateBounds]
	now        func() time.Time
	logger     logger.Logger
}

func NewBuilder(restaurant string, bounds *cache.Lazy[models.DateBounds], log logger.Logger) *Builder {
	if strings.TrimSpace(restaurant) == "" {
		restaurant = "the restaurant"
	}
	return &Builder{
		restaurant: restaurant,
		bounds:     bounds,
		now:        time.Now,
		logger:     log,
	}
}

// Build renders the instruction. Bounds that cannot be loaded are omitted.
func (b *Builder) Build(ctx context.Context) (string, error) {
	data := instructionData{
		Restaurant: b.restaurant,
		Today:      b.now().Format(models.DateLayout),
	}

	if b.bounds != nil {
		bounds, err := b.bounds.Get(ctx)
		if err != nil {
			b.logger.Warn("data bounds unavailable, omitting from instruction", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			data.HasBounds = true
			data.Earliest = bounds.Earliest.Format(models.DateLayout)
			data.Latest = bounds.Latest.Format(models.DateLayout)
		}
	}

	var buf bytes.Buffer
	if err := instructionTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system instruction: %w", err)
	}
	return buf.String(), nil
}

// BoundsLoader reads the earliest and latest sales dates from the raw dataset.
func BoundsLoader(inv procedures.Invoker, dataset string) cache.Loader[models.DateBounds] {
	return func(ctx context.Context) (models.DateBounds, error) {
		result, err := inv.Invoke(ctx, dataset, boundsProcedure, nil)
		if err != nil {
			metrics.CategoryCacheLoads.WithLabelValues("date_bounds", "error").Inc()
			return models.DateBounds{}, err
		}
		if len(result.Rows) == 0 {
			metrics.CategoryCacheLoads.WithLabelValues("date_bounds", "error").Inc()
			return models.DateBounds{}, fmt.Errorf("%s returned no rows", boundsProcedure)
		}

		row := result.Rows[0]
		earliest, err := parseDate(row["earliest_date"])
		if err != nil {
			return models.DateBounds{}, fmt.Errorf("earliest_date: %w", err)
		}
		latest, err := parseDate(row["latest_date"])
		if err != nil {
			return models.DateBounds{}, fmt.Errorf("latest_date: %w", err)
		}
		metrics.CategoryCacheLoads.WithLabelValues("date_bounds", "ok").Inc()
		return models.DateBounds{Earliest: earliest, Latest: latest}, nil
	}
}

func parseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		if t, err := time.Parse(models.DateLayout, d); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339, d)
	default:
		return time.Time{}, fmt.Errorf("unexpected value %v (%T)", v, v)
	}
}
