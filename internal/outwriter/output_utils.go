package outwriter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// createFormatters creates the common formatter closures used across multiple output types.
func createFormatters(precision int) (fmtFloat func(float64) string, intFmt string) {
	numFmt := "%.*f"
	intFmt = "%d"
	fmtFloat = func(v float64) string {
		return fmt.Sprintf(numFmt, precision, v)
	}
	return fmtFloat, intFmt
}

// metricShape describes which value columns a calculation produces.
type metricShape int

const (
	shapeCount metricShape = iota
	shapeDuration
	shapeEstimate
	shapeOwners
)

// shapeFor maps a calculation onto its table/CSV column shape.
func shapeFor(calc schema.Calculation) metricShape {
	switch calc {
	case schema.CountCalculation, schema.NoneCalculation, "":
		return shapeCount
	case schema.StoryPointReport, schema.EffortReport:
		return shapeEstimate
	case schema.AssigneesCalculation:
		return shapeOwners
	default:
		return shapeDuration
	}
}

// flatRow is one aggregation row flattened out of the stack tree, carrying
// its nesting depth for display.
type flatRow struct {
	depth int
	row   schema.AggregationResult
}

// flattenResults walks the stack tree depth-first, parents before children.
func flattenResults(results []schema.AggregationResult) []flatRow {
	var out []flatRow
	var walk func(rows []schema.AggregationResult, depth int)
	walk = func(rows []schema.AggregationResult, depth int) {
		for _, r := range rows {
			out = append(out, flatRow{depth: depth, row: r})
			if len(r.Stack) > 0 {
				walk(r.Stack, depth+1)
			}
		}
	}
	walk(results, 0)
	return out
}
