package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/scanwatch/internal/model"
)

// ErrEmptyRepoURL is returned by CreateScan when no project URL is given.
var ErrEmptyRepoURL = errors.New("project URL must not be empty")

// Client exposes the backend operations as typed calls.
type Client struct {
	transport Transport
}

// NewClient creates a Client on top of the given transport.
func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// envelope is the {"data": ...} wrapper the backend puts around single resources.
type envelope[T any] struct {
	Data *T `json:"data"`
}

type createScanRequest struct {
	URL string `json:"url"`
}

type createdScan struct {
	ID model.ID `json:"id"`
}

// findingsResponse is the wire shape of one findings page.
type findingsResponse struct {
	Data         []model.Finding `json:"data"`
	PageNumber   *int            `json:"page_number"`
	TotalPages   *int            `json:"total_pages"`
	TotalEntries *int            `json:"total_entries"`
}

// CreateScan submits a project URL and returns the id of the new scan.
func (c *Client) CreateScan(ctx context.Context, repoURL string) (model.ID, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return "", ErrEmptyRepoURL
	}

	const path = "/projects"
	raw, err := c.transport.FetchJSON(ctx, http.MethodPost, path, nil, createScanRequest{URL: repoURL})
	if err != nil {
		return "", err
	}

	var env envelope[createdScan]
	if err := decode(path, raw, &env); err != nil {
		return "", err
	}
	if env.Data == nil || env.Data.ID.IsZero() {
		return "", &DecodingError{Path: path, Err: errors.New("missing data.id")}
	}
	return env.Data.ID, nil
}

// GetScan fetches the current status of a scan.
func (c *Client) GetScan(ctx context.Context, id model.ID) (model.Scan, error) {
	path := scanPath(id)
	raw, err := c.transport.FetchJSON(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return model.Scan{}, err
	}

	var env envelope[model.Scan]
	if err := decode(path, raw, &env); err != nil {
		return model.Scan{}, err
	}
	if env.Data == nil {
		return model.Scan{}, &DecodingError{Path: path, Err: errors.New("missing data")}
	}
	if env.Data.Status == model.StatusUnknown {
		return model.Scan{}, &DecodingError{Path: path, Err: errors.New("missing data.status")}
	}
	return *env.Data, nil
}

// CancelScan asks the server to cancel a scan. The acknowledgement body is ignored.
func (c *Client) CancelScan(ctx context.Context, id model.ID) error {
	_, err := c.transport.FetchJSON(ctx, http.MethodPost, scanPath(id)+"/cancel", nil, nil)
	return err
}

// GetFindings fetches one page of findings for a completed scan.
// The page number is sent as-is; out-of-range pages are the server's call.
func (c *Client) GetFindings(ctx context.Context, id model.ID, page int) (model.Page, error) {
	path := scanPath(id) + "/findings"
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	raw, err := c.transport.FetchJSON(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return model.Page{}, err
	}

	var resp findingsResponse
	if err := decode(path, raw, &resp); err != nil {
		return model.Page{}, err
	}
	if resp.PageNumber == nil || resp.TotalPages == nil || resp.TotalEntries == nil {
		return model.Page{}, &DecodingError{Path: path, Err: errors.New("missing pagination metadata")}
	}

	items := resp.Data
	if items == nil {
		items = []model.Finding{}
	}
	return model.Page{
		JobID:        id,
		Items:        items,
		PageNumber:   *resp.PageNumber,
		TotalPages:   *resp.TotalPages,
		TotalEntries: *resp.TotalEntries,
	}, nil
}

func scanPath(id model.ID) string {
	return "/scans/" + url.PathEscape(id.String())
}

func decode(path string, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodingError{Path: path, Err: err}
	}
	return nil
}
