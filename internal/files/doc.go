// Package files manages the dataset files of the data directory.
//
// Discovery lists supported files (CSV, XLSX, XLS) and resolves a dataset
// name to a path. Names are single path elements; anything that could
// escape the data directory is rejected with ErrInvalidName. Manager saves
// uploaded datasets atomically and deletes them.
package files
