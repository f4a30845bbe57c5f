package store

import "time"

// Visibility is the asset's grid visibility. It is orthogonal to processing
// progress: no pipeline stage may change it, and a processing failure never
// removes an asset from listings.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
	VisibilityFailed  Visibility = "failed"
)

// PipelineStatus tracks a version's processing lifecycle. Transitions are
// forward-only: processing -> complete or processing -> failed.
type PipelineStatus string

const (
	PipelineProcessing PipelineStatus = "processing"
	PipelineComplete   PipelineStatus = "complete"
	PipelineFailed     PipelineStatus = "failed"
)

// DerivativeStatus is the per-derivative state machine.
type DerivativeStatus string

const (
	DerivativePending    DerivativeStatus = "pending"
	DerivativeProcessing DerivativeStatus = "processing"
	DerivativeCompleted  DerivativeStatus = "completed"
	DerivativeFailed     DerivativeStatus = "failed"
	DerivativeSkipped    DerivativeStatus = "skipped"
)

// Derivative kinds produced by the pipeline.
const (
	DerivativeKindThumbnail    = "thumbnail"
	DerivativeKindPreview      = "preview"
	DerivativeKindVideoPreview = "video_preview"
)

// Asset is a logical media item owned by a tenant.
type Asset struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenantId"`
	OriginalFilename string            `json:"originalFilename"`
	MimeType         string            `json:"mimeType"`
	Visibility       Visibility        `json:"visibility"`
	DominantHueGroup string            `json:"dominantHueGroup,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	SourceKey        string            `json:"-"`

	ProcessingStarted   bool       `json:"processingStarted"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	ProcessedAt         *time.Time `json:"processedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssetVersion is one immutable version of an asset. Versions carry their own
// pipeline status and stage ledger, decoupled from the parent asset.
type AssetVersion struct {
	ID             string         `json:"id"`
	AssetID        string         `json:"assetId"`
	Ordinal        int            `json:"ordinal"`
	SourceKey      string         `json:"-"`
	PipelineStatus PipelineStatus `json:"pipelineStatus"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// StageRecord is one entry of the stage idempotency ledger: the durable
// outcome of a single pipeline stage for a single entity.
type StageRecord struct {
	EntityID      string     `json:"entityId"`
	Stage         string     `json:"stage"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	FailedAt      *time.Time `json:"failedAt,omitempty"`
	SkippedReason string     `json:"skippedReason,omitempty"`
	Error         string     `json:"error,omitempty"`
	Attempts      int        `json:"attempts"`
}

// Completed reports whether the stage has a durable completion mark.
// A record can carry both a past failure and a later completion; the
// completion wins.
func (r *StageRecord) Completed() bool {
	return r != nil && r.CompletedAt != nil
}

// Skipped reports whether the stage was explicitly skipped.
func (r *StageRecord) Skipped() bool {
	return r != nil && r.SkippedReason != ""
}

// Derivative is the persisted state of one derivative kind for an asset.
type Derivative struct {
	AssetID   string           `json:"assetId"`
	Kind      string           `json:"kind"`
	Status    DerivativeStatus `json:"status"`
	StartedAt *time.Time       `json:"startedAt,omitempty"`
	Error     string           `json:"error,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Artifacts []string         `json:"artifacts,omitempty"`
}

// DominantColor is one of up to three dominant colors persisted for an asset.
type DominantColor struct {
	Hex      string  `json:"hex"`
	R        int     `json:"r"`
	G        int     `json:"g"`
	B        int     `json:"b"`
	Coverage float64 `json:"coverage"`
}

// AuditEvent is an immutable, tenant-scoped record of a pipeline transition.
// Events feed timeline UIs and observability; nothing reads them for control
// flow.
type AuditEvent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	AssetID   string    `json:"assetId"`
	EventType string    `json:"eventType"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Audit event types emitted by the coordinator.
const (
	EventProcessingStarted = "processing_started"
	EventStageCompleted    = "stage_completed"
	EventStageFailed       = "stage_failed"
	EventStageSkipped      = "stage_skipped"
	EventAssetFinalized    = "asset_finalized"
	EventAssetPromoted     = "asset_promoted"
)
