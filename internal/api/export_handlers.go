package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/aria/internal/archive"
	"github.com/onnwee/aria/internal/jobs"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/report"
	"github.com/onnwee/aria/internal/session"
)

// ExportHandlers serves CSV and HTML report downloads.
type ExportHandlers struct {
	store   session.Store
	archive archiveWriter
	now     func() time.Time
}

// NewExportHandlers creates export handlers. A nil archiver disables report
// archiving.
func NewExportHandlers(store session.Store, archiver archive.Archiver, jobMetrics *jobs.Metrics) *ExportHandlers {
	return &ExportHandlers{
		store:   store,
		archive: archiveWriter{archiver: archiver, metrics: jobMetrics},
		now:     time.Now,
	}
}

// CSV handles GET /export/csv/{sessionId}.
func (h *ExportHandlers) CSV(w http.ResponseWriter, r *http.Request) {
	sess, run, ok := h.load(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, run.Results); err != nil {
		slog.ErrorContext(r.Context(), "failed to write CSV report", "session_id", sess.ID, "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate report")
		return
	}
	h.send(w, r, sess, "csv", "text/csv; charset=utf-8", buf.Bytes())
}

// HTML handles GET /export/html/{sessionId}.
func (h *ExportHandlers) HTML(w http.ResponseWriter, r *http.Request) {
	sess, run, ok := h.load(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	err := report.RenderHTML(&buf, report.Document{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		GeneratedAt: h.now().UTC(),
		Results:     run.Results,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to render HTML report", "session_id", sess.ID, "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate report")
		return
	}
	h.send(w, r, sess, "html", "text/html; charset=utf-8", buf.Bytes())
}

func (h *ExportHandlers) load(w http.ResponseWriter, r *http.Request) (*session.Session, *session.Run, bool) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	sess, err := h.store.Get(ctx, userID, r.PathValue("sessionId"))
	if err != nil {
		writeSessionError(w, r, err)
		return nil, nil, false
	}
	run, err := h.store.Prioritized(ctx, userID, sess.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return nil, nil, false
	}
	return sess, run, true
}

func (h *ExportHandlers) send(w http.ResponseWriter, r *http.Request, sess *session.Session, ext, contentType string, body []byte) {
	ctx := r.Context()
	h.archive.put(ctx, jobs.JobTypeReportArchive, archive.ReportKey(middleware.GetUserID(ctx), sess.ID, ext), contentType, body)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="aria_prioritization_%s.%s"`, sess.ID, ext))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(ctx, "failed to write report", "session_id", sess.ID, "error", err)
	}
}
