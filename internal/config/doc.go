// Package config provides configuration structures and utilities for scanwatch.
// It defines the connection settings for the dashboard backend, polling and
// batching behaviour, report output preferences and the on-disk locations of
// the configuration file and history database.
package config
