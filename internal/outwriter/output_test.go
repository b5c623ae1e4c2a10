package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() schema.AggregateResult {
	return schema.AggregateResult{
		TotalCount: 5,
		Records: []schema.AggregationResult{
			{
				Key:           "OPEN",
				AdditionalKey: "OPEN",
				Count:         4,
				Stack: []schema.AggregationResult{
					{Key: "high", AdditionalKey: "high", Count: 3},
					{Key: "low", AdditionalKey: "low", Count: 1},
				},
			},
			{Key: "DONE", AdditionalKey: "DONE", Count: 1},
		},
	}
}

func tableConfig() *contract.Config {
	return &contract.Config{
		Kind:        schema.IssueKind,
		Across:      "status",
		Calculation: schema.CountCalculation,
		Output:      schema.TextOut,
		Precision:   1,
		Width:       120,
	}
}

func TestFlattenResultsDepthFirst(t *testing.T) {
	rows := flattenResults(sampleResult().Records)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{0, 1, 1, 0}, []int{rows[0].depth, rows[1].depth, rows[2].depth, rows[3].depth})
	assert.Equal(t, "OPEN", rows[0].row.Key)
	assert.Equal(t, "high", rows[1].row.Key)
	assert.Equal(t, "DONE", rows[3].row.Key)
}

func TestWriteAggregationTable(t *testing.T) {
	var buf bytes.Buffer
	fmtFloat, _ := createFormatters(1)

	err := writeAggregationTable(sampleResult(), tableConfig(), fmtFloat, 42*time.Millisecond, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "└ high", "stack rows are indented under their parent")
	assert.Contains(t, out, "Showing 2 groups over 5 matching records")
}

func TestWriteAggregationTableDurationShape(t *testing.T) {
	var buf bytes.Buffer
	fmtFloat, _ := createFormatters(1)

	cfg := tableConfig()
	cfg.Calculation = schema.ResolutionTime
	result := schema.AggregateResult{
		TotalCount: 3,
		Records: []schema.AggregationResult{
			{Key: "all", AdditionalKey: "all", Count: 3, Min: 60, Median: 3600, Max: 90000, Sum: 93660},
		},
	}

	err := writeAggregationTable(result, cfg, fmtFloat, time.Millisecond, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "1m")
	assert.Contains(t, out, "1h")
	assert.Contains(t, out, "1d1h")
}

func TestWriteAggregationCSVFlattensStack(t *testing.T) {
	var buf bytes.Buffer
	fmtFloat, intFmt := createFormatters(1)

	w := csv.NewWriter(&buf)
	require.NoError(t, writeAggregationCSV(w, sampleResult(), tableConfig(), fmtFloat, intFmt))
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5, "header plus four flattened rows")
	assert.Equal(t, "depth", rows[0][0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "1", rows[2][0])
	assert.Equal(t, "high", rows[2][1])
}

func TestWriteAggregationJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAggregationJSON(&buf, sampleResult()))

	var decoded schema.AggregateResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleResult(), decoded)
}

func TestWriteListTable(t *testing.T) {
	var buf bytes.Buffer
	cfg := tableConfig()
	cfg.PageSize = 10

	result := schema.ListResult{
		Count:      2,
		TotalCount: 2,
		Records: []schema.Record{
			{ID: "i1", Kind: schema.IssueKind, Strings: map[string]string{"status": "OPEN", "assignee": "alice"}},
			{ID: "i2", Kind: schema.IssueKind, Strings: map[string]string{"status": "DONE"}},
		},
	}

	err := writeListTable(result, cfg, time.Millisecond, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "i1")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "Showing 2 of 2 records")
}

func TestListColumnsSortedUnion(t *testing.T) {
	records := []schema.Record{
		{ID: "a", Strings: map[string]string{"status": "x"}},
		{ID: "b", Strings: map[string]string{"assignee": "y", "project": "z"}},
	}
	assert.Equal(t, []string{"assignee", "project", "status"}, listColumns(records))
}

func TestShapeFor(t *testing.T) {
	assert.Equal(t, shapeCount, shapeFor(schema.CountCalculation))
	assert.Equal(t, shapeCount, shapeFor(schema.NoneCalculation))
	assert.Equal(t, shapeEstimate, shapeFor(schema.StoryPointReport))
	assert.Equal(t, shapeEstimate, shapeFor(schema.EffortReport))
	assert.Equal(t, shapeOwners, shapeFor(schema.AssigneesCalculation))
	assert.Equal(t, shapeDuration, shapeFor(schema.ResolutionTime))
	assert.Equal(t, shapeDuration, shapeFor(schema.BuildTime))
}
