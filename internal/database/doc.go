// Package database provides SQLite-based storage for crawl history.
//
// ResultDB keeps one row per finished crawl request:
//   - the run itself with its summary figures and the full report as JSON
//   - the ranked results of the run
//   - the pages the final pass harvested, with a hash of their raw content
//
// The database is a single file opened through modernc.org/sqlite, so no
// CGO is needed. WAL mode is enabled by default.
package database
