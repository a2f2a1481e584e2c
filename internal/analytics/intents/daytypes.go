package intents

import (
	"fmt"
	"strconv"
	"time"

	"fds-analytics/internal/models"
)

type bucket struct {
	label string
	total float64
	days  int
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// BucketDayTypes folds daily rows ({dimension: date, metric_value: number})
// into weekday/weekend or per-weekday buckets. Only buckets with at least one
// day are returned.
func BucketDayTypes(rows []map[string]interface{}, comparison Comparison) ([]map[string]interface{}, error) {
	var order []string
	buckets := map[string]*bucket{}

	switch comparison {
	case WeekdayVsWeekend:
		order = []string{"weekday", "weekend"}
	case ByDayOfWeek:
		for _, d := range weekdayOrder {
			order = append(order, d.String())
		}
	default:
		return nil, fmt.Errorf("unknown comparison %q", comparison)
	}
	for _, label := range order {
		buckets[label] = &bucket{label: label}
	}

	for _, row := range rows {
		day, err := rowDate(row["dimension"])
		if err != nil {
			return nil, err
		}
		label := day.Weekday().String()
		if comparison == WeekdayVsWeekend {
			label = "weekday"
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				label = "weekend"
			}
		}
		value, err := numeric(row["metric_value"])
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", day.Format(models.DateLayout), err)
		}
		b := buckets[label]
		b.total += value
		b.days++
	}

	out := make([]map[string]interface{}, 0, len(order))
	for _, label := range order {
		b := buckets[label]
		if b.days == 0 {
			continue
		}
		out = append(out, map[string]interface{}{
			"day_type":  b.label,
			"total":     b.total,
			"average":   b.total / float64(b.days),
			"day_count": b.days,
		})
	}
	return out, nil
}

func rowDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		t, err := time.Parse(models.DateLayout, d)
		if err != nil {
			return time.Time{}, fmt.Errorf("row date %q: %w", d, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("row date has unexpected type %T", v)
	}
}

// numeric reads a metric value. NULL counts as zero.
func numeric(v interface{}) (float64, error) {
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
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("metric value %q: %w", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("metric value has unexpected type %T", v)
	}
}
