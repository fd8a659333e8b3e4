package config

import "time"

// File represents the structure of the .scanwatch configuration file.
// Every field is optional; zero values leave the built-in default in place.
//
//	baseURL: https://dashboard.example.com/api
//	pollInterval: 5s
//	headers:
//	  Authorization: "Bearer <token>"
type File struct {
	// BaseURL is the API root of the dashboard backend.
	BaseURL string `yaml:"baseURL,omitempty"`

	// PollInterval overrides the delay between status requests, e.g. "5s".
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`

	// Timeout overrides the per-request timeout, e.g. "1m".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// BatchSize overrides the number of scans watched concurrently.
	BatchSize int `yaml:"batchSize,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Headers are sent with every API request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Proxy is a SOCKS5 proxy address (host:port) for reaching the backend.
	Proxy string `yaml:"proxy,omitempty"`
}
