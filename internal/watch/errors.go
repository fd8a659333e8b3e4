package watch

import (
	"errors"
	"fmt"

	"github.com/nao1215/scanwatch/internal/model"
)

var (
	// ErrInvalidArgument is returned synchronously when a call receives a value
	// outside its contract, such as an empty job id or a page below 1.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned synchronously when a call is not allowed in the
	// component's current state, such as starting a tracker twice or paging a
	// job that is not complete.
	ErrInvalidState = errors.New("invalid state")

	// ErrPageMismatch is reported when the server answers a page request with a
	// different page number. The response is discarded.
	ErrPageMismatch = errors.New("response page does not match requested page")

	// ErrNoPage is returned by NextPage and PreviousPage when the navigation
	// control would be disabled.
	ErrNoPage = errors.New("no page in that direction")
)

// PageError is delivered on the pager's error channel when a page request fails.
// The previously delivered page stays current.
type PageError struct {
	// JobID and Page identify the failed request.
	JobID model.ID
	Page  int

	// Epoch is the request epoch the failure belongs to.
	Epoch uint64

	// Err is the transport, decoding or mismatch error.
	Err error
}

// Error implements error.
func (e PageError) Error() string {
	return fmt.Sprintf("findings page %d of scan %s: %v", e.Page, e.JobID, e.Err)
}

// Unwrap returns the underlying error.
func (e PageError) Unwrap() error {
	return e.Err
}
