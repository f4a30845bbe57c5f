package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"asset-pipeline/internal/aivendor"
	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/color"
	"asset-pipeline/internal/derivative"
	"asset-pipeline/internal/escalation"
	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/mediatypes"
	"asset-pipeline/internal/metrics"
	"asset-pipeline/internal/store"
)

// Config tunes coordinator behavior. Zero values get sane defaults from
// NewCoordinator.
type Config struct {
	StageTimeout     time.Duration
	RetryBackoffs    []time.Duration
	MaxDeferrals     int
	MinArtifactBytes int64
	AIEnabled        bool
	VideoPreviews    bool
	ScratchDir       string
}

// Coordinator drives the ordered processing chain for one asset at a time.
// Safe for concurrent Run calls on different assets; the processing claim
// plus queue-level dedup guarantee one live chain per asset.
type Coordinator struct {
	cfg       Config
	store     *store.Store
	blobs     blobstore.Store
	ledger    *Ledger
	generator *derivative.Generator
	engine    *color.Engine
	extractor *color.Extractor
	ai        aivendor.Client
	policy    *escalation.Policy

	mu        sync.Mutex
	deferrals map[string]int // entityID+stage -> deferral count
}

// NewCoordinator wires a coordinator from its dependencies.
func NewCoordinator(cfg Config, s *store.Store, blobs blobstore.Store, gen *derivative.Generator,
	engine *color.Engine, extractor *color.Extractor, ai aivendor.Client, policy *escalation.Policy) *Coordinator {

	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 5 * time.Minute
	}
	if len(cfg.RetryBackoffs) == 0 {
		cfg.RetryBackoffs = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}
	}
	if cfg.MaxDeferrals <= 0 {
		cfg.MaxDeferrals = 5
	}
	if cfg.MinArtifactBytes <= 0 {
		cfg.MinArtifactBytes = 512
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if ai == nil {
		ai = aivendor.NewNopClient()
	}
	if policy == nil {
		policy = escalation.NewPolicy(nil, nil)
	}

	return &Coordinator{
		cfg:       cfg,
		store:     s,
		blobs:     blobs,
		ledger:    NewLedger(s),
		generator: gen,
		engine:    engine,
		extractor: extractor,
		ai:        ai,
		policy:    policy,
		deferrals: make(map[string]int),
	}
}

// task is the per-chain working state threaded through stage functions.
type task struct {
	asset   *store.Asset
	version *store.AssetVersion
	kind    mediatypes.Kind

	localPath string // materialized original, empty until first needed
}

// ledgerID is the entity key for stage records: the version, so each new
// version gets a fresh ledger while the asset-level rows accumulate.
func (t *task) ledgerID() string { return t.version.ID }

func (t *task) cleanup() {
	if t.localPath != "" {
		if err := os.Remove(t.localPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove scratch file %s: %v", t.localPath, err)
		}
		t.localPath = ""
	}
}

// Run executes the full chain for an asset. A nil return means the chain
// settled (finished, or short-circuited on a precondition that is not an
// error). A DeferredError means the queue should retry later. Any other
// error is a halted chain.
func (c *Coordinator) Run(ctx context.Context, entityID string) error {
	asset, err := c.store.GetAsset(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.PipelineRunsTotal.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: asset %s", ErrNotFound, entityID)
	}
	if err != nil {
		return Transient(err)
	}

	// Precondition short-circuits: none of these are errors.
	if asset.Visibility == store.VisibilityFailed {
		logging.Debug("Asset %s has failed visibility, not processing", asset.ID)
		return nil
	}
	if asset.Visibility != store.VisibilityVisible {
		logging.Debug("Asset %s is not visible, not processing", asset.ID)
		return nil
	}

	claimed, err := c.store.ClaimProcessing(ctx, asset.ID, time.Now())
	if err != nil {
		return Transient(err)
	}
	if !claimed {
		logging.Debug("Asset %s already has an active or finished chain, ignoring trigger", asset.ID)
		return nil
	}

	metrics.PipelineActiveChains.Inc()
	defer metrics.PipelineActiveChains.Dec()

	version, err := c.ensureVersion(ctx, asset)
	if err != nil {
		// Nothing ran yet; release the claim so a later trigger can retry.
		c.releaseClaim(ctx, asset.ID)
		return Transient(err)
	}

	t := &task{
		asset:   asset,
		version: version,
		kind:    assetKind(asset),
	}
	defer t.cleanup()

	c.audit(ctx, t, store.EventProcessingStarted,
		fmt.Sprintf(`{"version":%d,"mimeType":%q}`, version.Ordinal, asset.MimeType))
	logging.Info("Processing chain started for asset %s (version %d, kind %s)", asset.ID, version.Ordinal, t.kind)

	stages := c.stages()
	if !mediatypes.SupportsDerivatives(t.kind) {
		if err := c.shortCircuitUnsupported(ctx, t); err != nil {
			return err
		}
		// Only finalize and promotion remain meaningful.
		stages = c.tailStages()
	}

	for _, st := range stages {
		if err := c.runStage(ctx, t, st); err != nil {
			if d, ok := IsDeferred(err); ok {
				// Hand the chain back to the queue; release the claim so
				// the deferred run can take it again.
				c.releaseClaim(ctx, asset.ID)
				metrics.PipelineRunsTotal.WithLabelValues("deferred").Inc()
				return d
			}
			c.haltChain(ctx, t, st, err)
			return err
		}
	}

	c.clearDeferrals(asset.ID)
	metrics.PipelineRunsTotal.WithLabelValues("success").Inc()
	logging.Info("Processing chain finished for asset %s", asset.ID)
	return nil
}

// ensureVersion returns the asset's latest version, creating the first one
// when the asset has never been processed.
func (c *Coordinator) ensureVersion(ctx context.Context, asset *store.Asset) (*store.AssetVersion, error) {
	version, err := c.store.LatestVersion(ctx, asset.ID)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	version = &store.AssetVersion{
		AssetID:   asset.ID,
		SourceKey: asset.SourceKey,
	}
	if err := c.store.CreateVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}

// shortCircuitUnsupported settles every derivative-producing stage as
// skipped for file types that can never have derivatives. The chain then
// jumps straight to finalization.
func (c *Coordinator) shortCircuitUnsupported(ctx context.Context, t *task) error {
	const reason = "unsupported file type"
	logging.Info("Asset %s (%s) does not support derivatives, skipping to finalize", t.asset.ID, t.asset.MimeType)

	skipped := []string{
		StageExtractMetadata,
		StageGenerateThumbnails,
		StageGeneratePreview,
		StageVideoPreview,
		StageTechnicalMetadata,
		StageAutoMetadata,
		StageResolveCandidates,
		StageAITag,
		StageAIMetadataGenerate,
		StageAIMetadataSuggest,
	}
	for _, name := range skipped {
		settled, err := c.ledger.IsSettled(ctx, t.ledgerID(), name)
		if err != nil {
			return Transient(err)
		}
		if settled {
			continue
		}
		if err := c.ledger.MarkSkipped(ctx, t.ledgerID(), name, reason); err != nil {
			return Transient(err)
		}
		c.audit(ctx, t, store.EventStageSkipped, stagePayload(name, reason))
		metrics.StageTotal.WithLabelValues(name, "skipped").Inc()
	}

	for _, kind := range []string{
		store.DerivativeKindThumbnail,
		store.DerivativeKindPreview,
		store.DerivativeKindVideoPreview,
	} {
		if err := c.store.SetDerivativeSkipped(ctx, t.asset.ID, kind, reason); err != nil {
			return Transient(err)
		}
	}
	return nil
}

// runStage executes one stage with ledger gating, precondition evaluation,
// the retry budget, and escalation on exhaustion.
func (c *Coordinator) runStage(ctx context.Context, t *task, st Stage) error {
	settled, err := c.ledger.IsSettled(ctx, t.ledgerID(), st.Name)
	if err != nil {
		return Transient(err)
	}
	if settled {
		logging.Debug("Stage %s already settled for %s, skipping", st.Name, t.asset.ID)
		return nil
	}

	if st.Precondition != nil {
		switch d := st.Precondition(ctx, t); d.Action {
		case ActionSkip:
			if err := c.ledger.MarkSkipped(ctx, t.ledgerID(), st.Name, d.Reason); err != nil {
				return Transient(err)
			}
			c.audit(ctx, t, store.EventStageSkipped, stagePayload(st.Name, d.Reason))
			metrics.StageTotal.WithLabelValues(st.Name, "skipped").Inc()
			logging.Info("Stage %s skipped for asset %s: %s", st.Name, t.asset.ID, d.Reason)
			return nil
		case ActionDefer:
			n := c.bumpDeferral(t.asset.ID, st.Name)
			if n > c.cfg.MaxDeferrals {
				reason := fmt.Sprintf("deferral cap reached: %s", d.Reason)
				if err := c.ledger.MarkSkipped(ctx, t.ledgerID(), st.Name, reason); err != nil {
					return Transient(err)
				}
				if kind := derivativeKindForStage(st.Name); kind != "" {
					if err := c.store.SetDerivativeSkipped(ctx, t.asset.ID, kind, reason); err != nil {
						return Transient(err)
					}
				}
				c.audit(ctx, t, store.EventStageSkipped, stagePayload(st.Name, reason))
				metrics.StageTotal.WithLabelValues(st.Name, "skipped").Inc()
				logging.Warn("Stage %s for asset %s exceeded deferral cap, skipping: %s", st.Name, t.asset.ID, d.Reason)
				return nil
			}
			delay := d.Delay
			if delay <= 0 {
				delay = c.backoffFor(n)
			}
			logging.Info("Stage %s deferred for asset %s (%d/%d): %s", st.Name, t.asset.ID, n, c.cfg.MaxDeferrals, d.Reason)
			return &DeferredError{EntityID: t.asset.ID, Stage: st.Name, Delay: delay}
		}
	}

	maxAttempts := st.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.StageRetries.WithLabelValues(st.Name).Inc()
			if err := c.waitBackoff(ctx, attempt-1); err != nil {
				return Transient(err)
			}
		}

		if err := c.ledger.MarkStarted(ctx, t.ledgerID(), st.Name); err != nil {
			return Transient(err)
		}

		start := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, c.cfg.StageTimeout)
		lastErr = st.Execute(stageCtx, t)
		cancel()
		metrics.StageDuration.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())

		if lastErr == nil {
			if err := c.ledger.MarkCompleted(ctx, t.ledgerID(), st.Name); err != nil {
				return Transient(err)
			}
			c.audit(ctx, t, store.EventStageCompleted, stagePayload(st.Name, ""))
			metrics.StageTotal.WithLabelValues(st.Name, "completed").Inc()
			logging.Debug("Stage %s completed for asset %s (attempt %d)", st.Name, t.asset.ID, attempt)
			return nil
		}

		logging.Warn("Stage %s attempt %d/%d failed for asset %s: %v", st.Name, attempt, maxAttempts, t.asset.ID, lastErr)
		if !IsRetryable(lastErr) {
			break
		}
	}

	// Retry budget exhausted.
	if err := c.ledger.MarkFailed(ctx, t.ledgerID(), st.Name, lastErr); err != nil {
		logging.Error("Failed to record stage failure for %s/%s: %v", t.asset.ID, st.Name, err)
	}
	c.audit(ctx, t, store.EventStageFailed, stagePayload(st.Name, lastErr.Error()))
	metrics.StageTotal.WithLabelValues(st.Name, "failed").Inc()

	failureCount := maxAttempts
	if rec, recErr := c.ledger.Record(ctx, t.ledgerID(), st.Name); recErr == nil && rec != nil {
		failureCount = rec.Attempts
	}
	c.policy.OnStageFailureExhausted(ctx, escalation.Failure{
		EntityID:     t.asset.ID,
		TenantID:     t.asset.TenantID,
		Stage:        st.Name,
		FailureCount: failureCount,
		Err:          lastErr,
	})

	if st.Critical {
		return fmt.Errorf("critical stage %s failed: %w", st.Name, lastErr)
	}
	logging.Warn("Non-critical stage %s failed for asset %s, chain continues", st.Name, t.asset.ID)
	return nil
}

// haltChain records the terminal failure of a chain. Visibility is left
// alone: a broken pipeline must never hide an asset from its owner.
func (c *Coordinator) haltChain(ctx context.Context, t *task, st Stage, cause error) {
	logging.Error("Processing chain halted for asset %s at stage %s: %v", t.asset.ID, st.Name, cause)

	if err := c.store.SetVersionPipelineStatus(ctx, t.version.ID, store.PipelineFailed); err != nil {
		logging.Error("Failed to mark version %s failed: %v", t.version.ID, err)
	}
	// Release the claim so an operator can re-trigger after fixing the cause.
	c.releaseClaim(ctx, t.asset.ID)
	metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
}

func (c *Coordinator) releaseClaim(ctx context.Context, assetID string) {
	if err := c.store.ReleaseProcessing(ctx, assetID); err != nil {
		logging.Error("Failed to release processing claim for asset %s: %v", assetID, err)
	}
}

// waitBackoff sleeps the scheduled backoff for the given retry ordinal,
// aborting early when the chain context dies.
func (c *Coordinator) waitBackoff(ctx context.Context, retry int) error {
	delay := c.backoffFor(retry)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Coordinator) backoffFor(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	idx := retry - 1
	if idx >= len(c.cfg.RetryBackoffs) {
		idx = len(c.cfg.RetryBackoffs) - 1
	}
	return c.cfg.RetryBackoffs[idx]
}

func (c *Coordinator) bumpDeferral(entityID, stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := entityID + "/" + stage
	c.deferrals[key]++
	return c.deferrals[key]
}

func (c *Coordinator) clearDeferrals(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.deferrals {
		if len(key) > len(entityID) && key[:len(entityID)] == entityID && key[len(entityID)] == '/' {
			delete(c.deferrals, key)
		}
	}
}

func (c *Coordinator) audit(ctx context.Context, t *task, eventType, payload string) {
	event := &store.AuditEvent{
		TenantID:  t.asset.TenantID,
		AssetID:   t.asset.ID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := c.store.InsertAuditEvent(ctx, event); err != nil {
		// Audit is observability, not control flow; losing an event must not
		// fail the stage.
		logging.Error("Failed to record audit event %s for asset %s: %v", eventType, t.asset.ID, err)
	}
}

func stagePayload(stage, detail string) string {
	if detail == "" {
		return fmt.Sprintf(`{"stage":%q}`, stage)
	}
	return fmt.Sprintf(`{"stage":%q,"detail":%q}`, stage, detail)
}

// derivativeKindForStage maps a derivative-producing stage to the derivative
// row it owns, so a degraded skip can settle that row too.
func derivativeKindForStage(stage string) string {
	switch stage {
	case StageGenerateThumbnails:
		return store.DerivativeKindThumbnail
	case StageGeneratePreview:
		return store.DerivativeKindPreview
	case StageVideoPreview:
		return store.DerivativeKindVideoPreview
	}
	return ""
}

// assetKind classifies by MIME type first, filename extension second.
func assetKind(asset *store.Asset) mediatypes.Kind {
	kind := mediatypes.KindForMime(asset.MimeType)
	if kind == mediatypes.KindOther {
		kind = mediatypes.KindForName(asset.OriginalFilename)
	}
	return kind
}

// materialize downloads the original blob to a scratch file once per chain.
func (c *Coordinator) materialize(ctx context.Context, t *task) (string, error) {
	if t.localPath != "" {
		return t.localPath, nil
	}
	if t.asset.SourceKey == "" {
		return "", Terminal(fmt.Errorf("asset %s has no source key", t.asset.ID))
	}

	data, err := c.blobs.Get(ctx, blobstore.BucketOriginals, t.asset.SourceKey)
	if errors.Is(err, blobstore.ErrNotExist) {
		return "", Terminal(fmt.Errorf("original blob %s missing for asset %s", t.asset.SourceKey, t.asset.ID))
	}
	if err != nil {
		return "", Transient(fmt.Errorf("failed to read original for asset %s: %w", t.asset.ID, err))
	}

	f, err := os.CreateTemp(c.cfg.ScratchDir, "original-*"+filepath.Ext(t.asset.OriginalFilename))
	if err != nil {
		return "", Transient(fmt.Errorf("failed to create scratch file: %w", err))
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", Transient(fmt.Errorf("failed to write scratch file: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", Transient(fmt.Errorf("failed to close scratch file: %w", err))
	}

	t.localPath = f.Name()
	return t.localPath, nil
}
