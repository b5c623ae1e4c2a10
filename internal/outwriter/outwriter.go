// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/shipmetrics/prism/internal/contract"
	"github.com/shipmetrics/prism/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteAggregation prints aggregation results using the configured output format.
func (ow *OutWriter) WriteAggregation(result schema.AggregateResult, cfg *contract.Config, duration time.Duration) error {
	return WriteAggregationResults(result, cfg, duration)
}

// WriteList prints raw record listings using the configured output format.
func (ow *OutWriter) WriteList(result schema.ListResult, cfg *contract.Config, duration time.Duration) error {
	return WriteListResults(result, cfg, duration)
}
