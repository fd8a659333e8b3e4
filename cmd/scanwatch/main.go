// Package main provides the entry point for the scanwatch CLI.
//
// scanwatch submits repositories to a scan dashboard backend, follows each
// scan until it completes or fails, and pages through the findings.
//
// Usage:
//
//	scanwatch submit https://github.com/org/repo --watch
//	scanwatch watch 42 43
//	scanwatch findings 42 --page 2 --markdown
//
// See --help for all available options.
package main

// main is the entry point for scanwatch.
func main() {
	Execute()
}
