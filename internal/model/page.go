package model

// Page is one page of findings for a completed scan.
// PageNumber, TotalPages and TotalEntries are server-authoritative; the client
// never clamps or recomputes them.
type Page struct {
	// JobID is the scan the page belongs to.
	JobID ID `json:"job_id"`

	// Items holds the findings of this page in server order.
	Items []Finding `json:"items"`

	// PageNumber is the 1-indexed page the server says it returned.
	PageNumber int `json:"page_number"`

	// TotalPages is the number of pages the server reports for the scan.
	TotalPages int `json:"total_pages"`

	// TotalEntries is the total number of findings across all pages.
	TotalEntries int `json:"total_entries"`
}

// IsEmpty reports whether the page carries no findings.
func (p Page) IsEmpty() bool {
	return len(p.Items) == 0
}

// HasPrevious reports whether a "Previous" control should be enabled.
func (p Page) HasPrevious() bool {
	return p.PageNumber > 1
}

// HasNext reports whether a "Next" control should be enabled.
func (p Page) HasNext() bool {
	return p.PageNumber < p.TotalPages
}
