package intents

import (
	"fds-analytics/internal/models"
)

// Intent is a validated intent call. The set of implementations is closed;
// the dispatcher switches over every one of them.
type Intent interface {
	Name() string
	isIntent()
}

// PeakType selects the extreme reported by find_peak_day.
type PeakType string

const (
	PeakHighest PeakType = "highest"
	PeakLowest  PeakType = "lowest"
)

// Comparison selects the bucketing used by compare_day_types.
type Comparison string

const (
	WeekdayVsWeekend Comparison = "weekday_vs_weekend"
	ByDayOfWeek      Comparison = "by_day_of_week"
)

type DailySales struct {
	Range    models.DateRange
	Category *string
}

type TopItems struct {
	Limit    int
	Range    models.DateRange
	Category *string
}

type CategoryBreakdown struct {
	Range       models.DateRange
	IncludeBeer bool
}

type TotalSales struct {
	Range    models.DateRange
	Category *string
}

type PeakDay struct {
	Range    models.DateRange
	Type     PeakType
	Category *string
}

type DayTypes struct {
	Range      models.DateRange
	Comparison Comparison
	Category   *string
}

type ItemPerformance struct {
	ItemName string
	Range    models.DateRange
}

// ComparePeriods compares Period1 (sent as the current range) with Period2
// (sent as the baseline range).
type ComparePeriods struct {
	Period1  models.DateRange
	Period2  models.DateRange
	Category *string
	ItemName *string
}

func (DailySales) Name() string        { return NameDailySales }
func (TopItems) Name() string          { return NameTopItems }
func (CategoryBreakdown) Name() string { return NameCategoryBreakdown }
func (TotalSales) Name() string        { return NameTotalSales }
func (PeakDay) Name() string           { return NamePeakDay }
func (DayTypes) Name() string          { return NameDayTypes }
func (ItemPerformance) Name() string   { return NameItemPerformance }
func (ComparePeriods) Name() string    { return NameComparePeriods }

func (DailySales) isIntent()        {}
func (TopItems) isIntent()          {}
func (CategoryBreakdown) isIntent() {}
func (TotalSales) isIntent()        {}
func (PeakDay) isIntent()           {}
func (DayTypes) isIntent()          {}
func (ItemPerformance) isIntent()   {}
func (ComparePeriods) isIntent()    {}
