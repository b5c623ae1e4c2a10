//go:build basic || database

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shipmetrics/prism/internal/snapshot"
	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/require"
)

var (
	// sharedPrismPath holds the path to a shared prism binary built once for all tests.
	sharedPrismPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getPrismBinary returns the path to the prism binary, building it once if needed.
func getPrismBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		// Create a temp directory for the binary
		var err error
		tempDir, err = os.MkdirTemp("", "prism-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		prismPath := filepath.Join(tempDir, "prism")
		buildCmd := exec.Command("go", "build", "-o", prismPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		err = buildCmd.Run()
		if err != nil {
			panic(fmt.Sprintf("failed to build prism: %v", err))
		}

		sharedPrismPath = prismPath
	})

	return sharedPrismPath
}

// writeTestSnapshot writes a small issue snapshot and returns its base path.
func writeTestSnapshot(t *testing.T) string {
	t.Helper()

	base := filepath.Join(t.TempDir(), "snap")
	created := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	closed := created.Add(48 * time.Hour)

	records := []schema.Record{
		{
			ID: "PROJ-1", Kind: schema.IssueKind, Tenant: "acme",
			Strings: map[string]string{"status": "OPEN", "assignee": "alice", "project": "api"},
			Numbers: map[string]float64{"story_points": 3},
			Times:   map[string]time.Time{"created_at": created},
		},
		{
			ID: "PROJ-2", Kind: schema.IssueKind, Tenant: "acme",
			Strings: map[string]string{"status": "DONE", "assignee": "bob", "project": "api"},
			Numbers: map[string]float64{"story_points": 5},
			Times:   map[string]time.Time{"created_at": created, "closed_at": closed},
		},
		{
			ID: "PROJ-3", Kind: schema.IssueKind, Tenant: "acme",
			Strings: map[string]string{"status": "DONE", "project": "web"},
			Times:   map[string]time.Time{"created_at": created.Add(time.Hour), "closed_at": closed},
		},
	}
	require.NoError(t, snapshot.WriteRecordsParquet(records, base+snapshot.RecordsSuffix))

	segments := []schema.TimelineSegment{
		{RecordID: "PROJ-1", Field: "status", Value: "OPEN", Start: created},
		{RecordID: "PROJ-2", Field: "status", Value: "OPEN", Start: created, End: &closed},
		{RecordID: "PROJ-2", Field: "status", Value: "DONE", Start: closed},
		{RecordID: "PROJ-2", Field: "sprint", Value: "sprint-9", Start: created},
		{RecordID: "PROJ-2", Field: "story_points", Value: "5", Start: created},
	}
	require.NoError(t, snapshot.WriteSegmentsParquet(segments, base+snapshot.SegmentsSuffix))

	milestones := []schema.Milestone{
		{ID: "sprint-9", Start: created.Add(-24 * time.Hour), End: created.Add(7 * 24 * time.Hour)},
	}
	require.NoError(t, snapshot.WriteMilestonesParquet(milestones, base+snapshot.MilestonesSuffix))

	return base
}
