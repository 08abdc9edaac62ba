// Package licensing provides an HTTP client for the license administration
// REST API.
//
// # Overview
//
// The backend stores licenses as a header (serial number, domain, customer,
// active flag) plus a list of module grants. The client reads summaries and
// details, reads the grantable module catalog, creates or updates licenses
// and reads the per-domain audit trail.
//
// # Architecture
//
//   - client.go: HTTP client, request decoration, request tracking
//   - errors.go: APIError and server message extraction
//   - types.go: data structures mirroring the API schema
//
// # Client Usage
//
//	client, err := licensing.NewClient(licensing.Options{
//		BaseURL: cfg.APIURL,
//		Token:   sessions.Token,
//	})
//	if err != nil {
//		return err
//	}
//	items, err := client.FetchLicenseSummaries(ctx)
//
// # Errors
//
// Any response with status >= 400 is returned as *APIError. Message holds the
// text to show the operator: the body's domain, detail or message field when
// present, a bare string body, the error field, or a fixed text for the
// status. Code classifies the failure so callers can test with errors.Is:
//
//	if errors.Is(err, licensing.ErrUnauthorized) {
//		// route back to login
//	}
//
// # Request Tracking
//
// When Options.Observer is set, every request calls Begin before it is sent
// and End once its body is closed. The console uses this to drive its busy
// indicator.
package licensing
