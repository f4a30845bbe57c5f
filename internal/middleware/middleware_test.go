package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "GET /api/assets", "GET /api/assets"},
		{"newline injection", "a\nb", "a b"},
		{"carriage return", "a\rb", "a b"},
		{"null byte", "a\x00b", "ab"},
		{"ansi escape", "a\x1b[31mb", "a[31mb"},
		{"tab preserved", "a\tb", "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/assets/550e8400-e29b-41d4-a716-446655440000/process", "/api/assets/{id}/process"},
		{"/api/assets/abc/status", "/api/assets/{id}/status"},
		{"/api/assets", "/api/assets"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	config := LoggingConfig{SkipPaths: []string{"/internal"}, LogHealthChecks: false}

	if !shouldSkip("/healthz", config) {
		t.Error("health checks should be skipped when disabled")
	}
	if !shouldSkip("/internal/debug", config) {
		t.Error("configured skip paths should be skipped")
	}
	if shouldSkip("/api/assets", config) {
		t.Error("api paths should not be skipped")
	}

	config.LogHealthChecks = true
	if shouldSkip("/healthz", config) {
		t.Error("health checks should be logged when enabled")
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	if _, err := rw.Write([]byte("queued")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if rw.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want 202", rw.statusCode)
	}
	if rw.bytesWritten != 6 {
		t.Errorf("bytesWritten = %d, want 6", rw.bytesWritten)
	}
}
