// Package database keeps a local SQLite history of the scans scanwatch has
// submitted or watched.
//
// Only job metadata is stored: the id, the submitted repository URL, the
// backend it lives on, the last observed status with every transition, and
// the finding totals once known. Findings themselves are always fetched from
// the backend.
//
// modernc.org/sqlite is a CGO-free driver, so the binary stays easy to
// cross-compile.
package database
