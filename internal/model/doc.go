// Package model defines the data structures shared across scanwatch.
//
// This package contains the following main types:
//   - Scan: a server-tracked analysis job and its lifecycle Status
//   - Finding: one reported result item of a completed scan
//   - Page: one page of findings plus the server's pagination metadata
//   - ID: an opaque identifier assigned by the server
//
// All values are read-only snapshots of what the backend reported. The client
// decodes them into typed fields but never validates or rewrites their contents.
package model
