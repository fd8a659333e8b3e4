package model

// Finding is one reported result item of a completed scan.
// Every field is sourced verbatim from the server.
type Finding struct {
	ID                ID     `json:"id"`
	VulnerabilityType string `json:"vulnerability_type"`
	File              string `json:"file"`
	Line              int    `json:"line"`
	Confidence        string `json:"confidence"`
	Severity          string `json:"severity"`
	Description       string `json:"description"`
}
