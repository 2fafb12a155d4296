package audit

import (
	"context"
	"net/http"

	"github.com/onnwee/aria/internal/middleware"
)

var clientIP = middleware.IPKeyFunc()

// Record appends e with the acting user and request ID taken from ctx when
// e does not set them.
func Record(ctx context.Context, repo Repository, e Entry) (*Log, error) {
	if e.UserID == "" {
		e.UserID = middleware.GetUserID(ctx)
	}
	if e.Username == "" {
		e.Username = middleware.GetUsername(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = middleware.GetRequestID(ctx)
	}
	return repo.Append(ctx, e)
}

// RecordRequest is Record plus the client IP and user agent of r.
func RecordRequest(r *http.Request, repo Repository, e Entry) (*Log, error) {
	if e.IPAddress == "" {
		e.IPAddress = clientIP(r)
	}
	if e.UserAgent == "" {
		e.UserAgent = r.UserAgent()
	}
	return Record(r.Context(), repo, e)
}
