package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/scanwatch/internal/model"
)

// newTestClient starts an httptest server with the given handler and returns
// a Client rooted at its /api prefix.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	transport, err := NewHTTPTransport(server.URL+"/api", WithUserAgent("scanwatch-test"))
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	return NewClient(transport)
}

func TestCreateScan(t *testing.T) {
	t.Parallel()

	t.Run("posts url and returns id", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/projects" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
			if ua := r.Header.Get("User-Agent"); ua != "scanwatch-test" {
				t.Errorf("expected user agent scanwatch-test, got %q", ua)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if body["url"] != "https://github.com/fly-apps/hello_phoenix.git" {
				t.Errorf("unexpected url %q", body["url"])
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"data":{"id":17}}`)
		}))

		id, err := client.CreateScan(context.Background(), "https://github.com/fly-apps/hello_phoenix.git")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "17" {
			t.Errorf("expected id 17, got %q", id)
		}
	})

	t.Run("empty url is rejected locally", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			t.Error("no request expected")
		}))

		_, err := client.CreateScan(context.Background(), "   ")
		if !errors.Is(err, ErrEmptyRepoURL) {
			t.Errorf("expected ErrEmptyRepoURL, got %v", err)
		}
	})

	t.Run("unprocessable entity is a transport error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"errors":{"url":["is invalid"]}}`)
		}))

		_, err := client.CreateScan(context.Background(), "not a url")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if te.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", te.StatusCode)
		}
		if !errors.Is(err, ErrTransport) {
			t.Error("expected errors.Is(err, ErrTransport)")
		}
	})

	t.Run("missing id is a decoding error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"data":{}}`)
		}))

		_, err := client.CreateScan(context.Background(), "https://example.com/repo.git")
		if !errors.Is(err, ErrDecoding) {
			t.Errorf("expected ErrDecoding, got %v", err)
		}
	})
}

func TestGetScan(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     int
		body       string
		expected   model.Status
		wantErrIs  error
		wantStatus int
	}{
		{"pending", http.StatusOK, `{"data":{"id":1,"status":"pending"}}`, model.StatusPending, nil, 0},
		{"running", http.StatusOK, `{"data":{"id":1,"status":"running"}}`, model.StatusRunning, nil, 0},
		{"complete", http.StatusOK, `{"data":{"id":1,"status":"complete"}}`, model.StatusComplete, nil, 0},
		{"unknown status", http.StatusOK, `{"data":{"id":1,"status":"paused"}}`, "", ErrDecoding, 0},
		{"missing status", http.StatusOK, `{"data":{"id":1}}`, "", ErrDecoding, 0},
		{"not json", http.StatusOK, `<html>oops</html>`, "", ErrDecoding, 0},
		{"missing data", http.StatusOK, `{}`, "", ErrDecoding, 0},
		{"not found", http.StatusNotFound, `{"errors":{"detail":"Not Found"}}`, "", ErrTransport, http.StatusNotFound},
		{"server error", http.StatusInternalServerError, ``, "", ErrTransport, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/scans/1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))

			scan, err := client.GetScan(context.Background(), "1")
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("expected %v, got %v", tc.wantErrIs, err)
				}
				var te *TransportError
				if tc.wantStatus != 0 && (!errors.As(err, &te) || te.StatusCode != tc.wantStatus) {
					t.Errorf("expected status code %d, got %v", tc.wantStatus, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scan.Status != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, scan.Status)
			}
		})
	}
}

func TestCancelScan(t *testing.T) {
	t.Parallel()

	called := make(chan string, 1)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.CancelScan(context.Background(), "9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-called; got != "POST /api/scans/9/cancel" {
		t.Errorf("unexpected request %q", got)
	}
}

func TestGetFindings(t *testing.T) {
	t.Parallel()

	t.Run("decodes page and sends page parameter", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/scans/3/findings" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if page := r.URL.Query().Get("page"); page != "2" {
				t.Errorf("expected page=2, got %q", page)
			}
			_, _ = io.WriteString(w, `{
				"data": [{
					"id": 11,
					"vulnerability_type": "XSS.Raw",
					"file": "lib/app_web/templates/page.html.heex",
					"line": 12,
					"confidence": "High Confidence",
					"severity": "high",
					"description": "raw/1 with user input"
				}],
				"page_number": 2,
				"total_pages": 3,
				"total_entries": 41
			}`)
		}))

		page, err := client.GetFindings(context.Background(), "3", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.JobID != "3" || page.PageNumber != 2 || page.TotalPages != 3 || page.TotalEntries != 41 {
			t.Errorf("unexpected metadata: %+v", page)
		}
		if len(page.Items) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(page.Items))
		}
		f := page.Items[0]
		if f.ID != "11" || f.VulnerabilityType != "XSS.Raw" || f.Line != 12 || f.Confidence != "High Confidence" {
			t.Errorf("unexpected finding: %+v", f)
		}
	})

	t.Run("out of range page is delivered unmodified", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"data":[],"page_number":999,"total_pages":3,"total_entries":41}`)
		}))

		page, err := client.GetFindings(context.Background(), "3", 999)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.IsEmpty() || page.PageNumber != 999 {
			t.Errorf("unexpected page: %+v", page)
		}
		if page.Items == nil {
			t.Error("expected non-nil empty items")
		}
	})

	t.Run("missing metadata is a decoding error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"data":[]}`)
		}))

		_, err := client.GetFindings(context.Background(), "3", 1)
		if !errors.Is(err, ErrDecoding) {
			t.Errorf("expected ErrDecoding, got %v", err)
		}
	})
}

func TestNewHTTPTransport(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		baseURL string
		valid   bool
	}{
		{"http with path", "http://localhost:4000/api", true},
		{"https", "https://scans.example.com", true},
		{"no scheme", "localhost:4000/api", false},
		{"ftp scheme", "ftp://example.com", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewHTTPTransport(tc.baseURL)
			if tc.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidBaseURL) {
				t.Errorf("expected ErrInvalidBaseURL, got %v", err)
			}
		})
	}
}

func TestHTTPTransportFetchJSON(t *testing.T) {
	t.Parallel()

	t.Run("custom headers are sent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-Team"); got != "appsec" {
				t.Errorf("expected X-Team header, got %q", got)
			}
			_, _ = io.WriteString(w, `{}`)
		}))
		defer server.Close()

		tr, err := NewHTTPTransport(server.URL, WithHeaders(map[string]string{"X-Team": "appsec"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := tr.FetchJSON(context.Background(), http.MethodGet, "/scans/1", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, strings.Repeat("x", 64))
		}))
		defer server.Close()

		tr, err := NewHTTPTransport(server.URL, WithMaxBodySize(16))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = tr.FetchJSON(context.Background(), http.MethodGet, "/x", nil, nil)
		if !errors.Is(err, ErrResponseTooLarge) {
			t.Errorf("expected ErrResponseTooLarge, got %v", err)
		}
	})

	t.Run("cancelled context is a transport error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		}))
		defer server.Close()

		tr, err := NewHTTPTransport(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = tr.FetchJSON(ctx, http.MethodGet, "/x", nil, nil)
		if !errors.Is(err, ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected wrapped context.Canceled, got %v", err)
		}
	})

	t.Run("escaped ids stay in one path segment", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.EscapedPath() != "/api/scans/a%2Fb" {
				t.Errorf("unexpected escaped path %q", r.URL.EscapedPath())
			}
			_, _ = io.WriteString(w, `{"data":{"id":"a/b","status":"running"}}`)
		}))
		defer server.Close()

		tr, err := NewHTTPTransport(server.URL + "/api/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewClient(tr).GetScan(context.Background(), "a/b"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
