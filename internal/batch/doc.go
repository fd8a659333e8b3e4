// Package batch follows several scans at once.
//
// A Runner creates one watch.Session per job id and runs them with errgroup,
// bounded by the configured concurrency. Each session is followed until its
// tracker stops, then the requested findings page, if any, is awaited.
// Failures of one scan never stop the others.
package batch
