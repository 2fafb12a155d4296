package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestNew_NoBucket(t *testing.T) {
	a, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Enabled() {
		t.Error("archiver without bucket should be disabled")
	}
	if err := a.Put(context.Background(), "k", "text/csv", []byte("x")); err != nil {
		t.Errorf("noop Put returned %v", err)
	}
}

func TestNewS3Archiver_Validation(t *testing.T) {
	if _, err := NewS3Archiver(Config{Bucket: "b"}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"upload", UploadKey("u-1", "s_2", "reqs.xlsx"), "uploads/u-1/s_2/reqs.xlsx"},
		{"upload traversal", UploadKey("u/../1", "s", "../../etc/passwd.csv"), "uploads/u1/s/passwd.csv"},
		{"upload unnamed", UploadKey("u", "s", "..."), "uploads/u/s/upload"},
		{"report", ReportKey("u", "s", "html"), "reports/u/s.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestS3Archiver_Put(t *testing.T) {
	var mu sync.Mutex
	var method, gotPath, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, gotPath, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewS3Archiver(Config{
		Bucket:          "aria",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        srv.URL,
		Region:          "us-east-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Put(context.Background(), "reports/u/s.csv", "text/csv", []byte("Rank,ID\n")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s", method)
	}
	if gotPath != "/aria/reports/u/s.csv" {
		t.Errorf("path = %s", gotPath)
	}
	if !strings.Contains(body, "Rank,ID") {
		t.Errorf("body = %q", body)
	}
}

func TestS3Archiver_DownloadURL(t *testing.T) {
	a, err := NewS3Archiver(Config{
		Bucket:          "aria",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://example.r2.cloudflarestorage.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	url, err := a.DownloadURL(context.Background(), "reports/u/s.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "/aria/reports/u/s.html") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("unexpected presigned url: %s", url)
	}
}
