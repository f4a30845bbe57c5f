package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"asset-pipeline/internal/aivendor"
	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/derivative"
	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/mediatypes"
	"asset-pipeline/internal/metrics"
	"asset-pipeline/internal/store"
)

// stages returns the full ordered chain.
func (c *Coordinator) stages() []Stage {
	return []Stage{
		{
			Name:        StageExtractMetadata,
			Critical:    true,
			MaxAttempts: 3,
			Execute:     c.stageExtractMetadata,
		},
		{
			Name:         StageGenerateThumbnails,
			Critical:     true,
			MaxAttempts:  3,
			Precondition: c.derivativeSupported,
			Execute:      c.stageGenerateThumbnails,
		},
		{
			Name:         StageGeneratePreview,
			MaxAttempts:  3,
			Precondition: c.thumbnailReady,
			Execute:      c.stageGeneratePreview,
		},
		{
			Name:         StageVideoPreview,
			MaxAttempts:  2,
			Precondition: c.videoPreviewApplies,
			Execute:      c.stageVideoPreview,
		},
		{
			Name:        StageTechnicalMetadata,
			MaxAttempts: 2,
			Execute:     c.stageTechnicalMetadata,
		},
		{
			Name:         StageAutoMetadata,
			MaxAttempts:  2,
			Precondition: c.thumbnailReady,
			Execute:      c.stageAutoMetadata,
		},
		{
			Name:        StageResolveCandidates,
			MaxAttempts: 1,
			Execute:     c.stageResolveCandidates,
		},
		{
			Name:         StageAITag,
			MaxAttempts:  2,
			Precondition: c.aiEnabled,
			Execute:      c.stageAITag,
		},
		{
			Name:         StageAIMetadataGenerate,
			MaxAttempts:  2,
			Precondition: c.aiEnabled,
			Execute:      c.stageAIMetadataGenerate,
		},
		{
			Name:         StageAIMetadataSuggest,
			MaxAttempts:  2,
			Precondition: c.aiEnabled,
			Execute:      c.stageAIMetadataSuggest,
		},
		{
			Name:        StageFinalize,
			Critical:    true,
			MaxAttempts: 3,
			Execute:     c.stageFinalize,
		},
		{
			Name:        StagePromoteStorage,
			MaxAttempts: 3,
			Execute:     c.stagePromoteStorage,
		},
	}
}

// tailStages is the remainder of the chain after an unsupported-type
// short-circuit: only finalization and promotion still apply.
func (c *Coordinator) tailStages() []Stage {
	all := c.stages()
	return all[len(all)-2:]
}

// ---- preconditions ----

// derivativeSupported skips derivative generation for kinds the generator
// cannot render (documents wait on an external PDF renderer). The
// derivative state machine is settled as skipped at the same time.
func (c *Coordinator) derivativeSupported(ctx context.Context, t *task) Decision {
	if c.generator.Supports(t.kind) {
		return RunNow()
	}
	reason := fmt.Sprintf("no renderer for %s files", t.kind)
	for _, kind := range []string{store.DerivativeKindThumbnail, store.DerivativeKindPreview} {
		if err := c.store.SetDerivativeSkipped(ctx, t.asset.ID, kind, reason); err != nil {
			logging.Error("Failed to mark derivative %s skipped for asset %s: %v", kind, t.asset.ID, err)
		}
	}
	return SkipWith(reason)
}

// thumbnailReady gates stages that consume the thumbnail. A completed
// thumbnail runs the stage; a skipped one skips it; anything else defers
// the chain so a transient thumbnail failure can be retried upstream.
func (c *Coordinator) thumbnailReady(ctx context.Context, t *task) Decision {
	d, err := c.store.GetDerivative(ctx, t.asset.ID, store.DerivativeKindThumbnail)
	if err != nil {
		return DeferFor(0, fmt.Sprintf("cannot read thumbnail state: %v", err))
	}
	switch d.Status {
	case store.DerivativeCompleted:
		return RunNow()
	case store.DerivativeSkipped:
		return SkipWith("thumbnail unavailable: " + d.Reason)
	default:
		return DeferFor(0, fmt.Sprintf("thumbnail derivative is %s", d.Status))
	}
}

func (c *Coordinator) videoPreviewApplies(ctx context.Context, t *task) Decision {
	if t.kind != mediatypes.KindVideo {
		return SkipWith("not a video")
	}
	if !c.cfg.VideoPreviews {
		if err := c.store.SetDerivativeSkipped(ctx, t.asset.ID, store.DerivativeKindVideoPreview, "ffmpeg unavailable"); err != nil {
			logging.Error("Failed to mark video preview skipped for asset %s: %v", t.asset.ID, err)
		}
		return SkipWith("ffmpeg unavailable")
	}
	return RunNow()
}

func (c *Coordinator) aiEnabled(ctx context.Context, t *task) Decision {
	if !c.cfg.AIEnabled {
		return SkipWith("ai enrichment disabled")
	}
	return RunNow()
}

// ---- stage implementations ----

// stageExtractMetadata sniffs the true file format and records basic facts
// about the original. Critical: if the original cannot even be read, nothing
// downstream can work.
func (c *Coordinator) stageExtractMetadata(ctx context.Context, t *task) error {
	path, err := c.materialize(ctx, t)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Transient(fmt.Errorf("failed to stat original: %w", err))
	}

	format, err := mediatypes.DetectFormat(path)
	if err != nil {
		return Transient(fmt.Errorf("failed to sniff format: %w", err))
	}

	attrs := map[string]string{
		"format":    format,
		"sizeBytes": strconv.FormatInt(info.Size(), 10),
	}
	if err := c.store.MergeAttributes(ctx, t.asset.ID, attrs); err != nil {
		return Transient(err)
	}
	return nil
}

func (c *Coordinator) stageGenerateThumbnails(ctx context.Context, t *task) error {
	path, err := c.materialize(ctx, t)
	if err != nil {
		return err
	}
	return c.produceDerivative(ctx, t, store.DerivativeKindThumbnail, func() (*derivative.Result, error) {
		return c.generator.GenerateThumbnails(ctx, path, t.asset.ID, t.kind)
	})
}

func (c *Coordinator) stageGeneratePreview(ctx context.Context, t *task) error {
	path, err := c.materialize(ctx, t)
	if err != nil {
		return err
	}
	return c.produceDerivative(ctx, t, store.DerivativeKindPreview, func() (*derivative.Result, error) {
		return c.generator.GeneratePreview(ctx, path, t.asset.ID, t.kind)
	})
}

func (c *Coordinator) stageVideoPreview(ctx context.Context, t *task) error {
	path, err := c.materialize(ctx, t)
	if err != nil {
		return err
	}
	return c.produceDerivative(ctx, t, store.DerivativeKindVideoPreview, func() (*derivative.Result, error) {
		return c.generator.GenerateVideoPreview(ctx, path, t.asset.ID)
	})
}

// produceDerivative runs one derivative through its state machine:
// PROCESSING, generate, verify every artifact, then COMPLETED — or FAILED
// with the start timestamp cleared. COMPLETED is only reachable when every
// artifact passed verification.
func (c *Coordinator) produceDerivative(ctx context.Context, t *task, kind string,
	generate func() (*derivative.Result, error)) error {

	if err := c.store.SetDerivativeProcessing(ctx, t.asset.ID, kind, time.Now()); err != nil {
		return Transient(err)
	}

	result, err := generate()
	if err != nil {
		if dbErr := c.store.SetDerivativeFailed(ctx, t.asset.ID, kind, err.Error()); dbErr != nil {
			logging.Error("Failed to record derivative failure for %s/%s: %v", t.asset.ID, kind, dbErr)
		}
		return Transient(err)
	}

	for _, artifact := range result.Artifacts {
		if verr := blobstore.Verify(ctx, c.blobs, artifact.Bucket, artifact.Key, c.cfg.MinArtifactBytes); verr != nil {
			var v *blobstore.VerifyError
			reason := "error"
			if errors.As(verr, &v) {
				reason = v.Reason
			}
			metrics.VerificationFailures.WithLabelValues(kind, reason).Inc()
			if dbErr := c.store.SetDerivativeFailed(ctx, t.asset.ID, kind, verr.Error()); dbErr != nil {
				logging.Error("Failed to record derivative failure for %s/%s: %v", t.asset.ID, kind, dbErr)
			}
			return Verification(verr)
		}
	}

	if err := c.store.SetDerivativeCompleted(ctx, t.asset.ID, kind, result.Keys()); err != nil {
		return Transient(err)
	}
	return nil
}

// stageTechnicalMetadata records pixel dimensions for image assets.
func (c *Coordinator) stageTechnicalMetadata(ctx context.Context, t *task) error {
	if t.kind != mediatypes.KindImage {
		return nil
	}

	path, err := c.materialize(ctx, t)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return Transient(err)
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		// Undecodable dimensions are not worth failing the chain over.
		logging.Warn("Could not decode dimensions for asset %s: %v", t.asset.ID, err)
		return nil
	}

	attrs := map[string]string{
		"width":  strconv.Itoa(config.Width),
		"height": strconv.Itoa(config.Height),
	}
	if err := c.store.MergeAttributes(ctx, t.asset.ID, attrs); err != nil {
		return Transient(err)
	}
	return nil
}

// stageAutoMetadata runs color analysis over the completed thumbnail and
// persists dominant colors plus the hue group.
func (c *Coordinator) stageAutoMetadata(ctx context.Context, t *task) error {
	d, err := c.store.GetDerivative(ctx, t.asset.ID, store.DerivativeKindThumbnail)
	if err != nil {
		return Transient(err)
	}
	if len(d.Artifacts) == 0 {
		return Transient(fmt.Errorf("completed thumbnail for asset %s lists no artifacts", t.asset.ID))
	}

	data, err := c.blobs.Get(ctx, blobstore.BucketStaging, d.Artifacts[0])
	if err != nil {
		return Transient(fmt.Errorf("failed to read thumbnail for analysis: %w", err))
	}

	scratch, err := os.CreateTemp(c.cfg.ScratchDir, "colorscan-*.jpg")
	if err != nil {
		return Transient(err)
	}
	defer os.Remove(scratch.Name())
	if _, err := scratch.Write(data); err != nil {
		scratch.Close()
		return Transient(err)
	}
	if err := scratch.Close(); err != nil {
		return Transient(err)
	}

	analysis, err := c.engine.Analyze(scratch.Name())
	if err != nil {
		return Transient(err)
	}
	// A nil analysis means the image was not analyzable; the skip is
	// already logged and the stage settles without colors.
	if analysis == nil {
		return nil
	}

	if err := c.extractor.ExtractAndPersist(ctx, t.asset.ID, analysis); err != nil {
		return Transient(err)
	}

	if len(analysis.Buckets) > 0 {
		if err := c.store.MergeAttributes(ctx, t.asset.ID, map[string]string{
			"colorBuckets": strings.Join(analysis.Buckets, ","),
		}); err != nil {
			return Transient(err)
		}
	}
	return nil
}

// stageResolveCandidates settles descriptive metadata from what the chain
// has gathered so far: a missing title falls back to the filename stem.
func (c *Coordinator) stageResolveCandidates(ctx context.Context, t *task) error {
	asset, err := c.store.GetAsset(ctx, t.asset.ID)
	if err != nil {
		return Transient(err)
	}
	if asset.Attributes["title"] != "" {
		return nil
	}

	stem := strings.TrimSuffix(asset.OriginalFilename, filepath.Ext(asset.OriginalFilename))
	if stem == "" {
		return nil
	}
	return transientIf(c.store.MergeAttributes(ctx, t.asset.ID, map[string]string{
		"title":       stem,
		"titleSource": "filename",
	}))
}

func (c *Coordinator) stageAITag(ctx context.Context, t *task) error {
	tags, err := c.ai.GenerateTags(ctx, c.aiRequest(t))
	if err != nil {
		return classifyAIError(err)
	}
	if len(tags) == 0 {
		return nil
	}
	return transientIf(c.store.MergeAttributes(ctx, t.asset.ID, map[string]string{
		"aiTags": strings.Join(tags, ","),
	}))
}

func (c *Coordinator) stageAIMetadataGenerate(ctx context.Context, t *task) error {
	md, err := c.ai.GenerateMetadata(ctx, c.aiRequest(t))
	if err != nil {
		return classifyAIError(err)
	}

	attrs := map[string]string{}
	if md.Title != "" {
		attrs["title"] = md.Title
		attrs["titleSource"] = "ai"
	}
	if md.Description != "" {
		attrs["description"] = md.Description
	}
	if len(md.Keywords) > 0 {
		attrs["keywords"] = strings.Join(md.Keywords, ",")
	}
	return transientIf(c.store.MergeAttributes(ctx, t.asset.ID, attrs))
}

func (c *Coordinator) stageAIMetadataSuggest(ctx context.Context, t *task) error {
	md, err := c.ai.SuggestMetadata(ctx, c.aiRequest(t))
	if err != nil {
		return classifyAIError(err)
	}

	attrs := map[string]string{}
	if md.Title != "" {
		attrs["suggestedTitle"] = md.Title
	}
	if md.Description != "" {
		attrs["suggestedDescription"] = md.Description
	}
	return transientIf(c.store.MergeAttributes(ctx, t.asset.ID, attrs))
}

// stageFinalize records the terminal processing timestamp and completes the
// version. It touches only processing fields, never visibility.
func (c *Coordinator) stageFinalize(ctx context.Context, t *task) error {
	if err := c.store.MarkProcessed(ctx, t.asset.ID, time.Now()); err != nil {
		return Transient(err)
	}
	if err := c.store.SetVersionPipelineStatus(ctx, t.version.ID, store.PipelineComplete); err != nil {
		return Transient(err)
	}
	c.audit(ctx, t, store.EventAssetFinalized, fmt.Sprintf(`{"version":%d}`, t.version.Ordinal))
	return nil
}

// stagePromoteStorage moves completed derivative artifacts from staging to
// canonical storage. Every step checks current state first so a crashed or
// repeated promotion converges instead of destroying data.
func (c *Coordinator) stagePromoteStorage(ctx context.Context, t *task) error {
	var promoted int
	for _, kind := range []string{
		store.DerivativeKindThumbnail,
		store.DerivativeKindPreview,
		store.DerivativeKindVideoPreview,
	} {
		d, err := c.store.GetDerivative(ctx, t.asset.ID, kind)
		if err != nil {
			return Transient(err)
		}
		if d.Status != store.DerivativeCompleted {
			continue
		}

		for _, key := range d.Artifacts {
			if err := c.promoteArtifact(ctx, key); err != nil {
				return err
			}
			promoted++
		}
	}

	if promoted > 0 {
		c.audit(ctx, t, store.EventAssetPromoted, fmt.Sprintf(`{"artifacts":%d}`, promoted))
	}
	return nil
}

// promoteArtifact copies one staging key to canonical and removes the
// staging copy. Already-promoted keys are detected and left alone.
func (c *Coordinator) promoteArtifact(ctx context.Context, key string) error {
	inCanonical, err := c.blobs.Exists(ctx, blobstore.BucketCanonical, key)
	if err != nil {
		return Transient(err)
	}

	if !inCanonical {
		data, err := c.blobs.Get(ctx, blobstore.BucketStaging, key)
		if errors.Is(err, blobstore.ErrNotExist) {
			// Neither staging nor canonical has it: a verified artifact
			// vanished from storage.
			return Verification(fmt.Errorf("artifact %s missing from both staging and canonical", key))
		}
		if err != nil {
			return Transient(err)
		}
		if err := c.blobs.Put(ctx, blobstore.BucketCanonical, key, data, "image/jpeg"); err != nil {
			return Transient(err)
		}
	}

	// Canonical copy confirmed; the staging copy is now redundant.
	if err := c.blobs.Delete(ctx, blobstore.BucketStaging, key); err != nil {
		return Transient(err)
	}
	return nil
}

// ---- helpers ----

func (c *Coordinator) aiRequest(t *task) aivendor.Request {
	return aivendor.Request{
		AssetID:    t.asset.ID,
		TenantID:   t.asset.TenantID,
		Filename:   t.asset.OriginalFilename,
		MimeType:   t.asset.MimeType,
		Attributes: t.asset.Attributes,
	}
}

// classifyAIError maps vendor errors onto the failure taxonomy: quota is a
// business condition retrying cannot fix, everything else is infrastructure.
func classifyAIError(err error) error {
	if aivendor.IsQuota(err) {
		return Terminal(err)
	}
	return Transient(err)
}

func transientIf(err error) error {
	if err == nil {
		return nil
	}
	return Transient(err)
}
