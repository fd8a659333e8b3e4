// Package tui is the interactive findings browser behind "scanwatch browse".
//
// The Model never talks to the backend itself. Status changes, pages and page
// errors arrive as messages sent by the watch components' listeners, and key
// presses are turned into pager navigation calls.
package tui
