package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned when an identifier is neither a JSON string nor a number.
var ErrInvalidID = errors.New("invalid identifier")

// ID is an opaque identifier assigned by the server.
// The backend emits integer ids; string ids are accepted as well so the client
// never depends on the server's numbering scheme.
type ID string

// String returns the identifier as it appears in URL paths.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidID)
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, string(data))
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON always encodes the identifier as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// Scan is a server-side analysis job. The client only ever observes it.
type Scan struct {
	// ID is assigned by the server when the project URL is submitted.
	ID ID `json:"id"`

	// Status is the latest lifecycle state reported by the server.
	Status Status `json:"status"`
}
