package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteAggregationResults outputs the aggregation results, dispatching based on the output format configured.
func WriteAggregationResults(result schema.AggregateResult, cfg *contract.Config, duration time.Duration) error {
	// Create formatters using helper
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAggregationJSON(w, result)
		}, "Wrote JSON")

	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			csvWriter := csv.NewWriter(w)
			defer csvWriter.Flush()
			return writeAggregationCSV(csvWriter, result, cfg, fmtFloat, intFmt)
		}, "Wrote CSV")

	case schema.ParquetOut:
		return writeAggregationParquet(result, cfg)

	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAggregationTable(result, cfg, fmtFloat, duration, w)
		}, "Wrote table")
	}
}

// writeAggregationTable generates and writes the human-readable table.
func writeAggregationTable(result schema.AggregateResult, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)
	shape := shapeFor(cfg.Calculation)

	// 1. Define Headers
	headers := []string{"Group", "Label", "Count"}
	switch shape {
	case shapeDuration:
		headers = append(headers, "Min", "Median", "Max", "Sum")
	case shapeEstimate:
		headers = append(headers, "Tickets", "Total", "Unestimated")
	case shapeOwners:
		headers = append(headers, "Owners")
	}
	table.Header(headers)

	// 2. Configure Separators/Borders to match a minimal look
	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	maxKeyWidth := getMaxTableKeyWidth(cfg, shape)
	var data [][]string
	for _, fr := range flattenResults(result.Records) {
		r := fr.row
		key := contract.TruncateKey(r.Key, maxKeyWidth)
		if fr.depth > 0 {
			key = strings.Repeat("  ", fr.depth) + "└ " + key
		} else {
			key = contract.GetColorKey(key, cfg.Across, cfg.UseColors)
		}

		row := []string{
			key,
			r.AdditionalKey,
			strconv.Itoa(r.Count),
		}
		switch shape {
		case shapeDuration:
			row = append(row,
				contract.GetColorDuration(r.Min, cfg.UseColors),
				contract.GetColorDuration(r.Median, cfg.UseColors),
				contract.GetColorDuration(r.Max, cfg.UseColors),
				contract.FormatDuration(r.Sum),
			)
		case shapeEstimate:
			total := r.TotalPoints
			if cfg.Calculation == schema.EffortReport {
				total = r.TotalEffort
			}
			row = append(row,
				strconv.Itoa(r.TotalTickets),
				fmtFloat(total),
				strconv.Itoa(r.TotalUnestimated),
			)
		case shapeOwners:
			row = append(row, contract.FormatOwnerList(r.Assignees))
		}
		data = append(data, row)
	}

	// 4. Render the table
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(writer, "Showing %d groups over %d matching records\n", len(result.Records), result.TotalCount); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Query completed in %v. Cache backend: %s\n", duration, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writeAggregationCSV writes the aggregation results in CSV format. Stack
// rows are flattened with a depth column so the tree stays reconstructable.
func writeAggregationCSV(w *csv.Writer, result schema.AggregateResult, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"depth",
		"group",
		"label",
		"count",
		"min",
		"median",
		"max",
		"sum",
		"total_tickets",
		"total_points",
		"total_effort",
		"total_unestimated",
		"assignees",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, fr := range flattenResults(result.Records) {
		r := fr.row
		rec := []string{
			fmt.Sprintf(intFmt, fr.depth),
			r.Key,
			r.AdditionalKey,
			fmt.Sprintf(intFmt, r.Count),
			fmtFloat(r.Min),
			fmtFloat(r.Median),
			fmtFloat(r.Max),
			fmtFloat(r.Sum),
			fmt.Sprintf(intFmt, r.TotalTickets),
			fmtFloat(r.TotalPoints),
			fmtFloat(r.TotalEffort),
			fmt.Sprintf(intFmt, r.TotalUnestimated),
			strings.Join(r.Assignees, "|"),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeAggregationJSON writes the aggregation results in JSON format.
func writeAggregationJSON(w io.Writer, result schema.AggregateResult) error {
	return writeJSON(w, result)
}
