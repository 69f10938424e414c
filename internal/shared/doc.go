// Package shared holds helpers used by more than one package of the usage
// EDA tool. Anything domain specific belongs in internal/dataset or
// internal/analysis instead.
//
// The testutil subpackage provides:
//
//   - a capturing slog handler for asserting on log output
//   - small TellCo usage fixtures written to temporary files
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteUsageCSV(t, t.TempDir())
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
