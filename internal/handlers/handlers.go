package handlers

import (
	"net/http"

	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/startup"
	"asset-pipeline/internal/store"

	"github.com/gorilla/mux"
)

// Trigger schedules a processing chain for an asset.
type Trigger interface {
	Enqueue(entityID string) bool
}

type Handlers struct {
	db      *store.Store
	blobs   blobstore.Store
	trigger Trigger
	started startupClock
}

type startupClock interface {
	Uptime() string
}

func New(db *store.Store, blobs blobstore.Store, trigger Trigger, clock startupClock) *Handlers {
	return &Handlers{
		db:      db,
		blobs:   blobs,
		trigger: trigger,
		started: clock,
	}
}

// Routes registers every API route on the router.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/api/assets", h.CreateAsset).Methods(http.MethodPost)
	r.HandleFunc("/api/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	r.HandleFunc("/api/assets/{id}/process", h.TriggerProcessing).Methods(http.MethodPost)
	r.HandleFunc("/api/assets/{id}/status", h.GetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/assets/{id}/events", h.GetEvents).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Livez).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.HandleFunc("/version", h.Version).Methods(http.MethodGet)
}

// Version returns build information.
func (h *Handlers) Version(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, startup.GetBuildInfo())
}
