// internal/models/analytics.go
package models

import "time"

// DateLayout is the wire format for every date exchanged with the model and the store.
const DateLayout = "2006-01-02"

// ToolResult is the uniform output of a procedure invocation.
type ToolResult struct {
	Rows            []map[string]interface{} `json:"rows"`
	TotalRows       int                      `json:"totalRows"`
	ExecutionTimeMs int64                    `json:"executionTimeMs"`

	// Suggestions lists similar item names when an item lookup matched nothing.
	Suggestions []string `json:"suggestions,omitempty"`
	// DataPath is "fast" or "slow"; not sent to the model.
	DataPath string `json:"-"`
}

// NewToolResult builds a result whose TotalRows always equals len(rows).
func NewToolResult(rows []map[string]interface{}, elapsed time.Duration) *ToolResult {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &ToolResult{
		Rows:            rows,
		TotalRows:       len(rows),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
}

// SetRows replaces the rows and keeps TotalRows in step.
func (r *ToolResult) SetRows(rows []map[string]interface{}) {
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	r.Rows = rows
	r.TotalRows = len(rows)
}

// ToMap renders the result as the payload returned to the model.
func (r *ToolResult) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"rows":            r.Rows,
		"totalRows":       r.TotalRows,
		"executionTimeMs": r.ExecutionTimeMs,
	}
	if len(r.Suggestions) > 0 {
		out["suggestions"] = r.Suggestions
	}
	return out
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one stored conversation message.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// CategoryRef is a resolved category filter. Nil fields mean "no filter".
type CategoryRef struct {
	PrimaryCategory *string `json:"primaryCategory"`
	Subcategory     *string `json:"subcategory"`
}

// IsEmpty reports whether the reference filters nothing.
func (c CategoryRef) IsEmpty() bool {
	return c.PrimaryCategory == nil && c.Subcategory == nil
}

// Coverage reports how much of a date range is materialized in the insights store.
type Coverage struct {
	IsFullyCovered  bool    `json:"isFullyCovered"`
	CoveragePercent float64 `json:"coveragePercent"`
	TotalDays       int     `json:"totalDays,omitempty"`
	CoveredDays     int     `json:"coveredDays,omitempty"`
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (d DateRange) StartString() string { return d.Start.Format(DateLayout) }
func (d DateRange) EndString() string   { return d.End.Format(DateLayout) }

// DateBounds is the earliest and latest date present in the raw data.
type DateBounds struct {
	Earliest time.Time
	Latest   time.Time
}
