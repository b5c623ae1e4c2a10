package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteListResults outputs raw record listings, dispatching based on the output format configured.
func WriteListResults(result schema.ListResult, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON")

	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			csvWriter := csv.NewWriter(w)
			defer csvWriter.Flush()
			return writeListCSV(csvWriter, result)
		}, "Wrote CSV")

	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeListTable(result, cfg, duration, w)
		}, "Wrote table")
	}
}

// listColumns picks the string attributes shown for a record page: the union
// of the page's attribute names, sorted for stable output.
func listColumns(records []schema.Record) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for field := range rec.Strings {
			seen[field] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for field := range seen {
		cols = append(cols, field)
	}
	sort.Strings(cols)
	return cols
}

// writeListTable generates and writes the human-readable record table.
func writeListTable(result schema.ListResult, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)
	cols := listColumns(result.Records)

	headers := append([]string{"#", "ID"}, cols...)
	table.Header(headers)

	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for i, rec := range result.Records {
		row := []string{
			strconv.Itoa(cfg.Page*cfg.PageSize + i + 1),
			rec.ID,
		}
		for _, col := range cols {
			row = append(row, rec.StringAt(col))
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(writer, "Showing %d of %d records (page %d, page size %d)\n",
		result.Count, result.TotalCount, cfg.Page, cfg.PageSize); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Query completed in %v\n", duration); err != nil {
		return err
	}
	return nil
}

// writeListCSV writes the record listing in CSV format.
func writeListCSV(w *csv.Writer, result schema.ListResult) error {
	cols := listColumns(result.Records)
	header := append([]string{"id", "kind"}, cols...)
	header = append(header, "labels")
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range result.Records {
		row := []string{rec.ID, string(rec.Kind)}
		for _, col := range cols {
			row = append(row, rec.StringAt(col))
		}
		row = append(row, strings.Join(rec.Arrays["labels"], "|"))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
