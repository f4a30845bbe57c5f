package aivendor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateTags(t *testing.T) {
	var gotAuth string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.AssetID != "asset-1" {
			t.Errorf("expected assetId asset-1, got %q", req.AssetID)
		}

		if err := json.NewEncoder(w).Encode(map[string][]string{"tags": {"sunset", "beach"}}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	tags, err := client.GenerateTags(context.Background(), Request{AssetID: "asset-1", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("GenerateTags failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if gotPath != "/v1/tag" {
		t.Errorf("expected path /v1/tag, got %q", gotPath)
	}
	if len(tags) != 2 || tags[0] != "sunset" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestQuotaClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantQuota bool
	}{
		{"too many requests", http.StatusTooManyRequests, true},
		{"payment required", http.StatusPaymentRequired, true},
		{"server error", http.StatusInternalServerError, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewHTTPClient(server.URL, "")
			_, err := client.GenerateMetadata(context.Background(), Request{AssetID: "a"})
			if err == nil {
				t.Fatal("expected an error")
			}
			if IsQuota(err) != tt.wantQuota {
				t.Errorf("IsQuota = %v, want %v (err: %v)", IsQuota(err), tt.wantQuota, err)
			}
		})
	}
}

func TestSuggestMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/suggest" {
			t.Errorf("expected path /v1/suggest, got %q", r.URL.Path)
		}
		if err := json.NewEncoder(w).Encode(Metadata{Title: "Draft title"}); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	md, err := client.SuggestMetadata(context.Background(), Request{AssetID: "a"})
	if err != nil {
		t.Fatalf("SuggestMetadata failed: %v", err)
	}
	if md.Title != "Draft title" {
		t.Errorf("unexpected title %q", md.Title)
	}
}

func TestNopClient(t *testing.T) {
	client := NewNopClient()
	tags, err := client.GenerateTags(context.Background(), Request{})
	if err != nil || tags != nil {
		t.Errorf("expected empty result, got %v, %v", tags, err)
	}
	md, err := client.GenerateMetadata(context.Background(), Request{})
	if err != nil || md == nil {
		t.Errorf("expected empty metadata, got %v, %v", md, err)
	}
}
