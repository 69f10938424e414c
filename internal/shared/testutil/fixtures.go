package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// UsageCSV is a small xDR export in the default column layout. Six rows are
// loaded: "Site E" has no label and is dropped as incomplete, "Site F" has a
// non-numeric download and is dropped during coercion. "Site C" uploaded
// nothing so its ratio and growth are undefined.
//
// Kept totals (bytes): Site A 150, Site B 400, Site C 200, Site D 75.
// Service totals: Youtube 135, Netflix 175, Gaming 235, Other 280.
const UsageCSV = `Bearer Id,Last Location Name,Total DL (Bytes),Total UL (Bytes),Youtube DL (Bytes),Youtube UL (Bytes),Netflix DL (Bytes),Netflix UL (Bytes),Gaming DL (Bytes),Gaming UL (Bytes),Other DL (Bytes),Other UL (Bytes)
1,Site A,100,50,10,5,20,5,30,10,40,30
2,Site B,300,100,50,20,50,20,100,30,100,30
3,Site C,200,0,40,0,60,0,50,0,50,0
4,Site D,50,25,5,5,15,5,10,5,20,10
5,,10,10,1,1,1,1,1,1,1,1
6,Site F,abc,10,1,1,1,1,1,1,1,1
`

// Fixture counts for UsageCSV
const (
	UsageRowsLoaded     = 6
	UsageRowsIncomplete = 1
	UsageRowsCoercedOut = 1
	UsageRowsKept       = 4
	UsageGrandTotal     = 825.0
)

// WriteUsageCSV writes UsageCSV to dir/usage.csv and returns the path
func WriteUsageCSV(t *testing.T, dir string) string {
	t.Helper()
	return WriteFile(t, dir, "usage.csv", UsageCSV)
}

// WriteFile writes content to dir/name, creating dir if needed
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}
