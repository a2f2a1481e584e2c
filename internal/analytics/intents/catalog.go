// Package intents holds the closed catalog of analytics intents, argument
// validation, and the dispatcher that routes each intent to the fast
// (pre-aggregated) or slow (raw aggregation) data path.
package intents

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"fds-analytics/internal/analytics/llm"
)

// Intent names.
const (
	NameDailySales        = "show_daily_sales"
	NameTopItems          = "show_top_items"
	NameCategoryBreakdown = "show_category_breakdown"
	NameTotalSales        = "get_total_sales"
	NamePeakDay           = "find_peak_day"
	NameDayTypes          = "compare_day_types"
	NameItemPerformance   = "track_item_performance"
	NameComparePeriods    = "compare_periods"
)

const (
	MinLimit = 1
	MaxLimit = 1000
)

const (
	datePattern     = `^\d{4}-\d{2}-\d{2}$`
	nonBlankPattern = `\S`
)

// ParamKind is the JSON type of an intent argument.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindDate    ParamKind = "date"
	KindInteger ParamKind = "integer"
	KindBoolean ParamKind = "boolean"
)

// ParamSpec describes one named argument.
type ParamSpec struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
	Enum        []string
	Min         *float64
	Max         *float64
}

// Definition is an immutable catalog entry.
type Definition struct {
	Name        string
	Description string
	Params      []ParamSpec
}

func bound(v float64) *float64 { return &v }

func dateParam(name, desc string) ParamSpec {
	return ParamSpec{Name: name, Kind: KindDate, Description: desc + " (YYYY-MM-DD)", Required: true}
}

var categoryParam = ParamSpec{
	Name:        "category",
	Kind:        KindString,
	Description: "Optional category filter. Primary categories use parentheses, e.g. (Sushi); subcategories do not, e.g. Signature Rolls.",
}

var definitions = []Definition{
	{
		Name:        NameDailySales,
		Description: "Daily sales breakdown for a date range.",
		Params: []ParamSpec{
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			categoryParam,
		},
	},
	{
		Name:        NameTopItems,
		Description: "Top N best-selling items by revenue for a date range.",
		Params: []ParamSpec{
			{Name: "limit", Kind: KindInteger, Description: "Number of items to return (1-1000)", Required: true, Min: bound(MinLimit), Max: bound(MaxLimit)},
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			categoryParam,
		},
	},
	{
		Name:        NameCategoryBreakdown,
		Description: "Sales by primary category for a date range.",
		Params: []ParamSpec{
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			{Name: "includeBeer", Kind: KindBoolean, Description: "Whether to include the (Beer) category. Defaults to true."},
		},
	},
	{
		Name:        NameTotalSales,
		Description: "Total sales for a period as a single figure.",
		Params: []ParamSpec{
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			categoryParam,
		},
	},
	{
		Name:        NamePeakDay,
		Description: "Find the highest or lowest sales day in a date range.",
		Params: []ParamSpec{
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			{Name: "type", Kind: KindString, Description: "Which extreme to find", Required: true, Enum: []string{string(PeakHighest), string(PeakLowest)}},
			categoryParam,
		},
	},
	{
		Name:        NameDayTypes,
		Description: "Compare weekdays against weekends, or each day of the week.",
		Params: []ParamSpec{
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
			{Name: "comparison", Kind: KindString, Description: "How to group days", Required: true, Enum: []string{string(WeekdayVsWeekend), string(ByDayOfWeek)}},
			categoryParam,
		},
	},
	{
		Name:        NameItemPerformance,
		Description: "Track one menu item's sales over time. Suggests similar names when nothing matches.",
		Params: []ParamSpec{
			{Name: "itemName", Kind: KindString, Description: "Menu item name", Required: true},
			dateParam("startDate", "First day of the range"),
			dateParam("endDate", "Last day of the range"),
		},
	},
	{
		Name:        NameComparePeriods,
		Description: "Compare sales between two date ranges.",
		Params: []ParamSpec{
			dateParam("startDate1", "First day of the first period"),
			dateParam("endDate1", "Last day of the first period"),
			dateParam("startDate2", "First day of the second period"),
			dateParam("endDate2", "Last day of the second period"),
			categoryParam,
			{Name: "itemName", Kind: KindString, Description: "Optional menu item filter"},
		},
	},
}

// Catalog is the validated, compiled set of intent definitions.
type Catalog struct {
	defs    []Definition
	byName  map[string]Definition
	schemas map[string]*gojsonschema.Schema
}

// NewCatalog compiles the argument schema of every intent.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{
		defs:    definitions,
		byName:  make(map[string]Definition, len(definitions)),
		schemas: make(map[string]*gojsonschema.Schema, len(definitions)),
	}
	for _, def := range definitions {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.JSONSchema()))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", def.Name, err)
		}
		c.byName[def.Name] = def
		c.schemas[def.Name] = schema
	}
	return c, nil
}

// Definitions returns the catalog entries in declaration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Names returns the intent names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.defs))
	for i, d := range c.defs {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// Declarations renders the catalog for the model.
func (c *Catalog) Declarations() []llm.FunctionDeclaration {
	out := make([]llm.FunctionDeclaration, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.Declaration()
	}
	return out
}

// JSONSchema renders the argument schema used for validation. Unknown
// properties are rejected.
func (d Definition) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(d.Params))
	required := []interface{}{}
	for _, p := range d.Params {
		prop := map[string]interface{}{"description": p.Description}
		switch p.Kind {
		case KindDate:
			prop["type"] = "string"
			prop["pattern"] = datePattern
		case KindString:
			prop["type"] = "string"
			prop["minLength"] = 1
			prop["pattern"] = nonBlankPattern
		default:
			prop["type"] = string(p.Kind)
		}
		if len(p.Enum) > 0 {
			enum := make([]interface{}, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Declaration renders the definition as a model function declaration.
func (d Definition) Declaration() llm.FunctionDeclaration {
	params := &llm.Schema{Type: "object", Properties: map[string]*llm.Schema{}}
	for _, p := range d.Params {
		s := &llm.Schema{Description: p.Description, Enum: p.Enum, Minimum: p.Min, Maximum: p.Max}
		switch p.Kind {
		case KindDate:
			s.Type = "string"
			s.Pattern = datePattern
		default:
			s.Type = string(p.Kind)
		}
		params.Properties[p.Name] = s
		if p.Required {
			params.Required = append(params.Required, p.Name)
		}
	}
	sort.Strings(params.Required)
	return llm.FunctionDeclaration{Name: d.Name, Description: d.Description, Parameters: params}
}
