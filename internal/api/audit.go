package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/aria/internal/audit"
)

// recordAudit appends e to repo. The audited action has already happened,
// so failures are logged and never change the response.
func recordAudit(r *http.Request, repo audit.Repository, e audit.Entry) {
	if repo == nil {
		return
	}
	if _, err := audit.RecordRequest(r, repo, e); err != nil {
		slog.WarnContext(r.Context(), "failed to record audit log", "action", e.Action, "error", err)
	}
}
