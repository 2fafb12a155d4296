package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/onnwee/aria/internal/idempotency"
)

var idempotentRoutes = map[string]bool{"/requirements": true, "/requirements/upload": true}

func newIdempotentHandler(repo idempotency.Repository, calls *int32, status int) http.Handler {
	return Idempotency(repo, idempotentRoutes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))
}

func idempotentRequest(path, userID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req.WithContext(SetUserID(req.Context(), userID))
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls int32
	handler := newIdempotentHandler(repo, &calls, http.StatusCreated)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest("/requirements", "u1", "key-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest("/requirements", "u1", "key-1"))

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %s, want %d %s", second.Code, second.Body, first.Code, first.Body)
	}
	if second.Header().Get(IdempotentReplayHeader) != "true" {
		t.Error("replayed response should be marked")
	}
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls int32
	handler := newIdempotentHandler(repo, &calls, http.StatusCreated)

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", "shared"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("/requirements", "u2", "shared"))

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
	if rr.Body.String() != `{"call":2}` {
		t.Errorf("second user got %s", rr.Body)
	}
}

func TestIdempotency_PassThrough(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls int32
	handler := newIdempotentHandler(repo, &calls, http.StatusCreated)

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", ""))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", ""))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/prioritization/analyze", "u1", "k"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/prioritization/analyze", "u1", "k"))

	if calls != 4 {
		t.Errorf("handler called %d times, want 4", calls)
	}
}

func TestIdempotency_ErrorsNotCached(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls int32
	handler := newIdempotentHandler(repo, &calls, http.StatusBadRequest)

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", "k"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", "k"))

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestIdempotency_InvalidKeys(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls int32
	handler := newIdempotentHandler(repo, &calls, http.StatusCreated)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("/requirements", "u1", strings.Repeat("a", idempotency.MaxKeyLength+1)))
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "idempotency_key_too_long") {
		t.Errorf("too long key: %d %s", rr.Code, rr.Body)
	}

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest("/requirements", "u1", "reused"))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, idempotentRequest("/requirements/upload", "u1", "reused"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("key reused on another route: status %d", rr.Code)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}
