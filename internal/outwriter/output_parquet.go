package outwriter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// AggregationRow is the Parquet layout of one flattened aggregation row.
type AggregationRow struct {
	// Depth is the stack nesting level (0 = outer group)
	Depth int32 `parquet:"depth,snappy"`

	// Group is the machine-stable group key
	Group string `parquet:"group,snappy"`

	// Label is the human-readable group label
	Label string `parquet:"label,snappy"`

	// Count is the number of records in the group
	Count int64 `parquet:"count,snappy"`

	// Min/Median/Max/Sum are the duration spread in seconds
	Min    float64 `parquet:"min,snappy"`
	Median float64 `parquet:"median,snappy"`
	Max    float64 `parquet:"max,snappy"`
	Sum    float64 `parquet:"sum,snappy"`

	// TotalTickets/TotalPoints/TotalEffort/TotalUnestimated carry the
	// estimate-report aggregates
	TotalTickets     int64   `parquet:"total_tickets,snappy"`
	TotalPoints      float64 `parquet:"total_points,snappy"`
	TotalEffort      float64 `parquet:"total_effort,snappy"`
	TotalUnestimated int64   `parquet:"total_unestimated,snappy"`

	// Assignees is the pipe-joined owner list (nullable)
	Assignees *string `parquet:"assignees,optional,snappy"`
}

// writeAggregationParquet writes the aggregation results to a Parquet file.
// Parquet output always requires an explicit output file.
func writeAggregationParquet(result schema.AggregateResult, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return errors.New("--output-file is required for parquet output")
	}

	rows := make([]AggregationRow, 0, len(result.Records))
	for _, fr := range flattenResults(result.Records) {
		r := fr.row
		row := AggregationRow{
			Depth:            int32(fr.depth),
			Group:            r.Key,
			Label:            r.AdditionalKey,
			Count:            int64(r.Count),
			Min:              r.Min,
			Median:           r.Median,
			Max:              r.Max,
			Sum:              r.Sum,
			TotalTickets:     int64(r.TotalTickets),
			TotalPoints:      r.TotalPoints,
			TotalEffort:      r.TotalEffort,
			TotalUnestimated: int64(r.TotalUnestimated),
		}
		if len(r.Assignees) > 0 {
			joined := strings.Join(r.Assignees, "|")
			row.Assignees = &joined
		}
		rows = append(rows, row)
	}

	file, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Schema is inferred from the AggregationRow struct tags
	writer := parquet.NewGenericWriter[AggregationRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "💾 Wrote parquet to %s\n", cfg.OutputFile)
	return nil
}
