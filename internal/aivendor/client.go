package aivendor

import (
	"context"
	"errors"
)

// ErrQuotaExceeded indicates the vendor rejected the call because the
// account's quota for the current period is spent. Never retried.
var ErrQuotaExceeded = errors.New("ai vendor quota exceeded")

// IsQuota reports whether an error is (or wraps) a quota rejection.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// Request carries the asset context sent with every vendor call.
type Request struct {
	AssetID    string            `json:"assetId"`
	TenantID   string            `json:"tenantId"`
	Filename   string            `json:"filename"`
	MimeType   string            `json:"mimeType"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Metadata is the vendor's generated descriptive metadata for an asset.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Client is the AI vendor surface the pipeline depends on. Implementations
// must be safe for concurrent use.
type Client interface {
	// GenerateTags returns content tags for an asset.
	GenerateTags(ctx context.Context, req Request) ([]string, error)

	// GenerateMetadata returns authoritative descriptive metadata.
	GenerateMetadata(ctx context.Context, req Request) (*Metadata, error)

	// SuggestMetadata returns non-authoritative metadata suggestions for
	// later human review.
	SuggestMetadata(ctx context.Context, req Request) (*Metadata, error)
}
