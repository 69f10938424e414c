// Package validation checks dataset inputs and export destinations on the
// file system before analysis runs.
package validation
