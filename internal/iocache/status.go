package iocache

import (
	"fmt"

	"github.com/shipmetrics/prism/schema"
)

// StatusReporter is implemented by stores that can report entry counts and
// connection details.
type StatusReporter interface {
	GetStatus() (schema.StoreStatus, error)
}

// PrintStoreStatus prints status information for one durable store.
func PrintStoreStatus(name string, status schema.StoreStatus) {
	fmt.Printf("%s Backend: %s\n", name, status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 && !status.LastEntryTime.IsZero() {
		fmt.Printf("Last Entry: %s\n", status.LastEntryTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Entry: %s\n", status.OldestEntryTime.Format("2006-01-02 15:04:05"))
	}
	if status.TableSizeBytes > 0 {
		fmt.Printf("Table Size: %d bytes\n", status.TableSizeBytes)
	}
}
