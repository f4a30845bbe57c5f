package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/store"

	"github.com/gorilla/mux"
)

type fakeTrigger struct {
	enqueued []string
}

func (f *fakeTrigger) Enqueue(entityID string) bool {
	f.enqueued = append(f.enqueued, entityID)
	return true
}

func newTestHandlers(t *testing.T) (*Handlers, *store.Store, *fakeTrigger, *mux.Router) {
	t.Helper()
	dir := t.TempDir()

	db, err := store.New(context.Background(), filepath.Join(dir, "assets.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	blobs, err := blobstore.NewFilesystem(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	trigger := &fakeTrigger{}
	h := New(db, blobs, trigger, nil)
	router := mux.NewRouter()
	h.Routes(router)
	return h, db, trigger, router
}

func uploadRequest(t *testing.T, tenant, filename string, data []byte, process bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("tenant", tenant); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	url := "/api/assets"
	if process {
		url += "?process=true"
	}
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreateAssetStoresOriginalAndQueues(t *testing.T) {
	_, db, trigger, router := newTestHandlers(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "tenant-1", "photo.jpg", []byte("jpeg-bytes"), true))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var asset store.Asset
	if err := json.Unmarshal(rec.Body.Bytes(), &asset); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if asset.ID == "" {
		t.Fatal("expected an asset id")
	}
	if asset.MimeType != "image/jpeg" {
		t.Errorf("mime type = %q, want image/jpeg", asset.MimeType)
	}

	stored, err := db.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("failed to load stored asset: %v", err)
	}
	if stored.SourceKey == "" {
		t.Error("expected a source key")
	}

	if len(trigger.enqueued) != 1 || trigger.enqueued[0] != asset.ID {
		t.Errorf("enqueued = %v, want [%s]", trigger.enqueued, asset.ID)
	}
}

func TestCreateAssetRequiresTenant(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "photo.jpg")
	if _, err := part.Write([]byte("x")); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/assets", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerProcessing(t *testing.T) {
	_, db, trigger, router := newTestHandlers(t)

	asset := &store.Asset{TenantID: "tenant-1", OriginalFilename: "a.png", MimeType: "image/png"}
	if err := db.CreateAsset(context.Background(), asset); err != nil {
		t.Fatalf("failed to create asset: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets/"+asset.ID+"/process", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(trigger.enqueued) != 1 {
		t.Errorf("expected 1 enqueued trigger, got %d", len(trigger.enqueued))
	}
}

func TestTriggerProcessingUnknownAsset(t *testing.T) {
	_, _, trigger, router := newTestHandlers(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/assets/nope/process", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(trigger.enqueued) != 0 {
		t.Error("unknown asset must not be enqueued")
	}
}

func TestGetStatus(t *testing.T) {
	_, db, _, router := newTestHandlers(t)
	ctx := context.Background()

	asset := &store.Asset{TenantID: "tenant-1", OriginalFilename: "a.png", MimeType: "image/png"}
	if err := db.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("failed to create asset: %v", err)
	}
	version := &store.AssetVersion{AssetID: asset.ID}
	if err := db.CreateVersion(ctx, version); err != nil {
		t.Fatalf("failed to create version: %v", err)
	}
	if err := db.SetDerivativeCompleted(ctx, asset.ID, store.DerivativeKindThumbnail, []string{asset.ID + "/thumb_200.jpg"}); err != nil {
		t.Fatalf("failed to complete derivative: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assets/"+asset.ID+"/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Asset == nil || resp.Asset.ID != asset.ID {
		t.Error("expected the asset in the status response")
	}
	if resp.Version == nil || resp.Version.Ordinal != 1 {
		t.Error("expected version 1 in the status response")
	}

	var thumb *store.Derivative
	for i := range resp.Derivatives {
		if resp.Derivatives[i].Kind == store.DerivativeKindThumbnail {
			thumb = &resp.Derivatives[i]
		}
	}
	if thumb == nil || thumb.Status != store.DerivativeCompleted {
		t.Errorf("expected completed thumbnail derivative, got %+v", thumb)
	}
}

func TestGetEventsUnknownAsset(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assets/nope/events", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	for _, path := range []string{"/health", "/healthz", "/livez", "/readyz", "/version"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d, want 200", path, rec.Code)
		}
	}
}
