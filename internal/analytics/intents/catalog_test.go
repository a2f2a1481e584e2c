package intents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Names(t *testing.T) {
	c := newTestCatalog(t)

	assert.Equal(t, []string{
		NameDailySales, NameTopItems, NameCategoryBreakdown, NameTotalSales,
		NamePeakDay, NameDayTypes, NameItemPerformance, NameComparePeriods,
	}, c.Names())

	_, ok := c.Lookup(NameTotalSales)
	assert.True(t, ok)
	_, ok = c.Lookup("get_weather")
	assert.False(t, ok)
}

func TestCatalog_Declarations(t *testing.T) {
	c := newTestCatalog(t)

	decls := c.Declarations()
	require.Len(t, decls, 8)

	var required []string
	for _, d := range decls {
		require.NotNil(t, d.Parameters, d.Name)
		assert.Equal(t, "object", d.Parameters.Type)
		assert.NotEmpty(t, d.Description)
		if d.Name == NameTopItems {
			required = d.Parameters.Required
			limit := d.Parameters.Properties["limit"]
			require.NotNil(t, limit)
			assert.Equal(t, "integer", limit.Type)
			require.NotNil(t, limit.Minimum)
			assert.Equal(t, float64(MinLimit), *limit.Minimum)
			assert.Equal(t, datePattern, d.Parameters.Properties["startDate"].Pattern)
		}
	}
	assert.Equal(t, []string{"endDate", "limit", "startDate"}, required)
}

func TestDefinition_JSONSchema(t *testing.T) {
	def, ok := newTestCatalog(t).Lookup(NameCategoryBreakdown)
	require.True(t, ok)

	schema := def.JSONSchema()
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []interface{}{"startDate", "endDate"}, schema["required"])

	props := schema["properties"].(map[string]interface{})
	assert.Equal(t, "boolean", props["includeBeer"].(map[string]interface{})["type"])
}

func TestCatalog_DefinitionsIsCopy(t *testing.T) {
	c := newTestCatalog(t)

	defs := c.Definitions()
	defs[0].Name = "mutated"
	assert.Equal(t, NameDailySales, c.Names()[0])
}
