package color

import (
	"context"

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/store"
)

// dominantMinCoverage is the floor below which a cluster is too small to
// count as a dominant color.
const dominantMinCoverage = 0.10

// maxDominantColors caps the persisted dominant color list.
const maxDominantColors = 3

// Extractor reduces engine output to dominant colors and a hue group and
// persists them.
type Extractor struct {
	store *store.Store
}

// NewExtractor creates a dominant color extractor backed by the given store.
func NewExtractor(s *store.Store) *Extractor {
	return &Extractor{store: s}
}

// DominantColors returns at most three colors with coverage >= 10%, in
// coverage-descending order. Clusters arrive already sorted from the engine.
func DominantColors(analysis *Analysis) []store.DominantColor {
	if analysis == nil {
		return nil
	}
	var colors []store.DominantColor
	for _, c := range analysis.Clusters {
		if c.Coverage < dominantMinCoverage {
			continue
		}
		colors = append(colors, store.DominantColor{
			Hex:      HexRGB(c.R, c.G, c.B),
			R:        int(c.R),
			G:        int(c.G),
			B:        int(c.B),
			Coverage: c.Coverage,
		})
		if len(colors) == maxDominantColors {
			break
		}
	}
	return colors
}

// HueGroupFor returns the representative hue group of the highest-coverage
// cluster. The hue group shares the macro bucket vocabulary.
func HueGroupFor(analysis *Analysis) string {
	if analysis == nil || len(analysis.Clusters) == 0 {
		return ""
	}
	return BucketFor(analysis.Clusters[0].LAB)
}

// ExtractAndPersist writes the dominant color list and hue group for an
// asset. Writes are overwrites: a re-run replaces prior results instead of
// duplicating them.
func (x *Extractor) ExtractAndPersist(ctx context.Context, assetID string, analysis *Analysis) error {
	colors := DominantColors(analysis)
	if err := x.store.ReplaceDominantColors(ctx, assetID, colors); err != nil {
		return err
	}

	hueGroup := HueGroupFor(analysis)
	if err := x.store.SetDominantHueGroup(ctx, assetID, hueGroup); err != nil {
		return err
	}

	logging.Debug("Persisted %d dominant colors for asset %s (hue group: %s)", len(colors), assetID, hueGroup)
	return nil
}
