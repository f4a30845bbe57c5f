package aivendor

import "context"

// NopClient answers every call with empty results. Used when AI enrichment
// is disabled so the pipeline wiring stays uniform.
type NopClient struct{}

// NewNopClient returns a client that does nothing.
func NewNopClient() *NopClient {
	return &NopClient{}
}

// GenerateTags implements Client.
func (NopClient) GenerateTags(ctx context.Context, req Request) ([]string, error) {
	return nil, nil
}

// GenerateMetadata implements Client.
func (NopClient) GenerateMetadata(ctx context.Context, req Request) (*Metadata, error) {
	return &Metadata{}, nil
}

// SuggestMetadata implements Client.
func (NopClient) SuggestMetadata(ctx context.Context, req Request) (*Metadata, error) {
	return &Metadata{}, nil
}
