package model

import "strings"

// Severity is a ranking derived from the free-form severity or confidence
// strings the server attaches to findings. It is only used to order and group
// findings in reports; the original strings are never replaced.
type Severity int

const (
	// SeverityUnknown is used for values the ranking does not recognise.
	SeverityUnknown Severity = iota

	// SeverityLow covers "low" and "low confidence".
	SeverityLow

	// SeverityMedium covers "medium" and "medium confidence".
	SeverityMedium

	// SeverityHigh covers "high" and "high confidence".
	SeverityHigh

	// SeverityCritical covers "critical".
	SeverityCritical
)

// String returns an upper-case label for the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity ranks a raw severity string. Matching is case-insensitive and
// ignores a trailing "confidence" word, so "High Confidence" ranks as high.
func ParseSeverity(raw string) Severity {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimSpace(strings.TrimSuffix(v, "confidence"))

	switch v {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low", "info", "informational":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// Rank returns the severity ranking of the finding, falling back to its
// confidence when the severity field is empty or unrecognised.
func (f Finding) Rank() Severity {
	if s := ParseSeverity(f.Severity); s != SeverityUnknown {
		return s
	}
	return ParseSeverity(f.Confidence)
}

// CountBySeverity tallies findings per ranked severity.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Rank()]++
	}
	return counts
}
