package contract

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shipmetrics/prism/schema"
)

// Color variables for console output.
var (
	UnassignedColor = color.New(color.FgYellow)          // rows pooled under the missing-value sentinel
	SprintColor     = color.New(color.FgCyan)            // milestone group keys
	DeltaUpColor    = color.New(color.FgRed, color.Bold) // durations above the warning threshold
	HeaderColor     = color.New(color.FgWhite, color.Bold)
)

// durationWarnSeconds marks a duration metric as worth highlighting: a median
// above two weeks usually means the workflow is stuck, not slow.
const durationWarnSeconds = 14 * 24 * 3600

// GetColorKey returns the group key colored for console output. It keeps the
// plain key for regular groups, highlights the missing-value sentinel and
// tints milestone keys under the sprint dimension.
func GetColorKey(key string, across schema.Dimension, useColors bool) string {
	if !useColors {
		return key
	}
	if key == schema.UnassignedKey {
		return UnassignedColor.Sprint(key)
	}
	if across == schema.SprintMappingDimension {
		return SprintColor.Sprint(key)
	}
	return key
}

// GetColorDuration formats a duration metric (in seconds) for table output,
// highlighting values above the warning threshold.
func GetColorDuration(seconds float64, useColors bool) string {
	text := FormatDuration(seconds)
	if useColors && seconds >= durationWarnSeconds {
		return DeltaUpColor.Sprint(text)
	}
	return text
}

// FormatDuration renders a duration metric in seconds as a compact
// human-readable value (e.g. "2d4h", "35m").
func FormatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	if h == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, h)
}

// TruncateKey truncates a group key to a maximum width with ellipsis suffix.
func TruncateKey(key string, maxWidth int) string {
	if maxWidth <= 3 || len(key) <= maxWidth {
		return key
	}
	return key[:maxWidth-3] + "..."
}

// FormatOwnerList joins owner identities for display, capping at three with a
// "+N" suffix.
func FormatOwnerList(owners []string) string {
	if len(owners) == 0 {
		return "-"
	}
	if len(owners) <= 3 {
		return strings.Join(owners, ", ")
	}
	return fmt.Sprintf("%s +%d", strings.Join(owners[:3], ", "), len(owners)-3)
}

// SelectOutputFile returns the file to write output to. An empty path selects
// stdout; callers must not close stdout.
func SelectOutputFile(outputFile string) (*os.File, error) {
	if outputFile == "" {
		return os.Stdout, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %q: %w", outputFile, err)
	}
	return file, nil
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}
