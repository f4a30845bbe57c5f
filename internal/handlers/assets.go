package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/mediatypes"
	"asset-pipeline/internal/store"

	"github.com/gorilla/mux"
)

// maxUploadBytes bounds a single original upload (512 MB).
const maxUploadBytes = 512 << 20

// CreateAsset accepts a multipart upload (fields: tenant, file), stores the
// original blob, and creates the asset record. With ?process=true the
// processing chain is queued immediately.
func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, "invalid multipart upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	tenantID := r.FormValue("tenant")
	if tenantID == "" {
		writeJSONError(w, "tenant is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	filename := path.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mediatypes.MimeForName(filename)
	}

	asset := &store.Asset{
		TenantID:         tenantID,
		OriginalFilename: filename,
		MimeType:         mimeType,
	}
	// The asset ID namespaces the blob key, so create the record first.
	asset.SourceKey = ""
	if err := h.db.CreateAsset(r.Context(), asset); err != nil {
		logging.Error("failed to create asset: %v", err)
		writeJSONError(w, "failed to create asset", http.StatusInternalServerError)
		return
	}

	key := fmt.Sprintf("%s/%s/%s", tenantID, asset.ID, filename)
	if err := h.blobs.Put(r.Context(), blobstore.BucketOriginals, key, data, mimeType); err != nil {
		logging.Error("failed to store original for asset %s: %v", asset.ID, err)
		writeJSONError(w, "failed to store original", http.StatusInternalServerError)
		return
	}
	if err := h.db.SetSourceKey(r.Context(), asset.ID, key); err != nil {
		logging.Error("failed to set source key for asset %s: %v", asset.ID, err)
		writeJSONError(w, "failed to finish upload", http.StatusInternalServerError)
		return
	}
	asset.SourceKey = key

	if r.URL.Query().Get("process") == "true" {
		h.trigger.Enqueue(asset.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, asset)
}

// GetAsset returns a single asset record.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	asset, err := h.db.GetAsset(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to load asset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, asset)
}

// TriggerProcessing queues a processing chain and returns immediately.
// Duplicate triggers for an in-flight asset are accepted and dropped; the
// response is 202 either way so callers need no dedup logic of their own.
func (h *Handlers) TriggerProcessing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.db.GetAsset(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	} else if err != nil {
		logging.Error("failed to load asset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	queued := h.trigger.Enqueue(id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{
		"status": "accepted",
		"queued": queued,
	})
}

// StatusResponse aggregates everything the pipeline knows about an asset.
type StatusResponse struct {
	Asset       *store.Asset          `json:"asset"`
	Version     *store.AssetVersion   `json:"version,omitempty"`
	Stages      []store.StageRecord   `json:"stages,omitempty"`
	Derivatives []store.Derivative    `json:"derivatives,omitempty"`
	Colors      []store.DominantColor `json:"dominantColors,omitempty"`
}

// GetStatus returns the asset with its latest version, stage ledger,
// derivative states, and dominant colors.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	asset, err := h.db.GetAsset(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to load asset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{Asset: asset}

	if version, err := h.db.LatestVersion(ctx, id); err == nil {
		resp.Version = version
		if stages, err := h.db.ListStageRecords(ctx, version.ID); err == nil {
			resp.Stages = stages
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		logging.Error("failed to load version for asset %s: %v", id, err)
	}

	for _, kind := range []string{
		store.DerivativeKindThumbnail,
		store.DerivativeKindPreview,
		store.DerivativeKindVideoPreview,
	} {
		if d, err := h.db.GetDerivative(ctx, id, kind); err == nil {
			resp.Derivatives = append(resp.Derivatives, *d)
		}
	}

	if colors, err := h.db.GetDominantColors(ctx, id); err == nil {
		resp.Colors = colors
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// GetEvents returns the asset's audit trail oldest-first.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.db.GetAsset(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	} else if err != nil {
		logging.Error("failed to load asset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	events, err := h.db.ListAuditEvents(r.Context(), id)
	if err != nil {
		logging.Error("failed to load events for asset %s: %v", id, err)
		writeJSONError(w, "failed to load events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"events": events})
}
