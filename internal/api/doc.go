// Package api is the client side of the scan dashboard REST surface.
//
// The package has two layers:
//   - Transport: a single FetchJSON capability that performs one request and
//     returns the raw JSON body, classifying failures as TransportError.
//     HTTPTransport is the production implementation.
//   - Client: typed operations (CreateScan, GetScan, CancelScan, GetFindings)
//     that decode responses into model types, classifying shape mismatches
//     as DecodingError.
//
// Endpoints, relative to the configured base URL:
//
//	POST /projects                    {"url": "..."} -> {"data": {"id": ...}}
//	GET  /scans/{id}                  -> {"data": {"id": ..., "status": "..."}}
//	POST /scans/{id}/cancel           -> best-effort acknowledgement
//	GET  /scans/{id}/findings?page=N  -> {"data": [...], "page_number": N, ...}
//
// Nothing in this package retries. Callers decide whether a failure is
// terminal (status polling) or transient (paging).
package api
