package outwriter

import (
	"os"

	"github.com/shipmetrics/prism/internal/contract"
	"golang.org/x/term"
)

// getMaxTableKeyWidth calculates the maximum width for group keys in table
// output based on terminal width and the metric columns in play.
func getMaxTableKeyWidth(cfg *contract.Config, shape metricShape) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		// Get terminal width
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for the label and count columns with borders/padding
	baseWidth := 30

	switch shape {
	case shapeDuration:
		baseWidth += 40 // Min + Median + Max + Sum with formatting
	case shapeEstimate:
		baseWidth += 30 // Tickets + Total + Unestimated with formatting
	case shapeOwners:
		baseWidth += 35 // Joined owner list
	}

	// Reserve generous space for table borders, separators, and padding
	baseWidth += 10

	// Calculate available space for the key
	available := termWidth - baseWidth
	if available < 12 {
		// Minimum reasonable key width
		return 12
	}
	if available > 60 {
		// Maximum key width to prevent overly long keys
		return 60
	}
	return available
}
