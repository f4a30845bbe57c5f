package pipeline

import (
	"context"
	"time"
)

// Stage names, in chain order.
const (
	StageExtractMetadata    = "extract-metadata"
	StageGenerateThumbnails = "generate-thumbnails"
	StageGeneratePreview    = "generate-preview"
	StageVideoPreview       = "video-preview"
	StageTechnicalMetadata  = "technical-metadata"
	StageAutoMetadata       = "auto-metadata"
	StageResolveCandidates  = "resolve-metadata-candidates"
	StageAITag              = "ai-tag"
	StageAIMetadataGenerate = "ai-metadata-generate"
	StageAIMetadataSuggest  = "ai-metadata-suggest"
	StageFinalize           = "finalize"
	StagePromoteStorage     = "promote-storage"
)

// Action is a precondition's verdict for a stage.
type Action int

const (
	// ActionRun executes the stage now.
	ActionRun Action = iota
	// ActionSkip records a terminal skip with a reason and moves on.
	ActionSkip
	// ActionDefer re-queues the whole chain after a delay. Deferrals are
	// capped; past the cap the stage degrades to a skip.
	ActionDefer
)

// Decision is what a stage precondition returns.
type Decision struct {
	Action Action
	Reason string
	Delay  time.Duration
}

// RunNow is the decision to execute immediately.
func RunNow() Decision { return Decision{Action: ActionRun} }

// SkipWith is the decision to skip with a recorded reason.
func SkipWith(reason string) Decision { return Decision{Action: ActionSkip, Reason: reason} }

// DeferFor is the decision to retry the chain after a delay.
func DeferFor(delay time.Duration, reason string) Decision {
	return Decision{Action: ActionDefer, Delay: delay, Reason: reason}
}

// Stage describes one step of the processing chain.
type Stage struct {
	Name string

	// Critical stages halt the chain when they fail after retries.
	// Non-critical failures are recorded and the chain continues.
	Critical bool

	// MaxAttempts bounds in-chain executions, first try included.
	MaxAttempts int

	// Precondition decides whether the stage runs, skips, or defers the
	// chain. Nil means always run.
	Precondition func(ctx context.Context, t *task) Decision

	// Execute does the work. Errors must be wrapped with a taxonomy
	// sentinel; unwrapped errors are treated as transient.
	Execute func(ctx context.Context, t *task) error
}
