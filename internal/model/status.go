package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when the server reports a status value outside
// the known lifecycle.
var ErrUnknownStatus = errors.New("unknown scan status")

// Status is the lifecycle state of a scan as reported by the server.
// A scan progresses pending -> running -> {complete | failed}.
type Status string

const (
	// StatusUnknown is the zero value, used before the first successful fetch.
	StatusUnknown Status = ""

	// StatusPending means the scan is queued on the server.
	StatusPending Status = "pending"

	// StatusRunning means the server is analysing the project.
	StatusRunning Status = "running"

	// StatusComplete means the scan finished and findings can be paged.
	StatusComplete Status = "complete"

	// StatusFailed means the scan failed, was cancelled, or could not be observed.
	StatusFailed Status = "failed"
)

// ParseStatus converts a raw server value into a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusRunning, StatusComplete, StatusFailed:
		return s, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// IsTerminal reports whether no further transitions can follow s.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// IsActive reports whether the server is still working on the scan.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// String returns the wire representation, or "unknown" for the zero value.
func (s Status) String() string {
	if s == StatusUnknown {
		return "unknown"
	}
	return string(s)
}

// UnmarshalJSON decodes a status string and rejects values outside the lifecycle.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
