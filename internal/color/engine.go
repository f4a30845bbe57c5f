package color

import (
	"image"
	"os"
	"sort"
	"time"

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Cluster is one dominant color cluster produced by k-means.
type Cluster struct {
	LAB      LAB     `json:"lab"`
	R        uint8   `json:"r"`
	G        uint8   `json:"g"`
	B        uint8   `json:"b"`
	Coverage float64 `json:"coverage"`
	Count    int     `json:"count"`
}

// Analysis is the full result of analyzing one thumbnail.
type Analysis struct {
	Clusters        []Cluster `json:"clusters"`
	Buckets         []string  `json:"buckets"`
	IgnoredFraction float64   `json:"ignoredFraction"`
}

// Engine runs deterministic LAB-space k-means over thumbnail pixels.
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	maxDimension   int
	k              int
	maxIterations  int
	minCoverage    float64
	mergeThreshold float64
	mergeCap       int
	alphaThreshold float64
}

// NewEngine returns an engine with the standard tuning: 200px bounding box,
// k=6, 5% noise floor, delta-E merge threshold 10.
func NewEngine() *Engine {
	return &Engine{
		maxDimension:   200,
		k:              6,
		maxIterations:  50,
		minCoverage:    0.05,
		mergeThreshold: 10.0,
		mergeCap:       16,
		alphaThreshold: 0.95,
	}
}

// Analyze decodes an image file and runs the full analysis. It returns
// (nil, nil) when the image cannot be decoded: an unreadable thumbnail is a
// logged skip, not a pipeline error.
func (e *Engine) Analyze(path string) (*Analysis, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		logging.Warn("Color analysis: cannot open %s: %v", path, err)
		metrics.ColorAnalysisTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		logging.Warn("Color analysis: cannot decode %s: %v", path, err)
		metrics.ColorAnalysisTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}
	logging.Debug("Color analysis: decoded %s format for %s", format, path)

	analysis := e.AnalyzeImage(img)
	if analysis == nil {
		metrics.ColorAnalysisTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	metrics.ColorAnalysisTotal.WithLabelValues("ok").Inc()
	metrics.ColorAnalysisDuration.Observe(time.Since(start).Seconds())
	return analysis, nil
}

// AnalyzeImage runs the analysis over an already decoded image. Returns nil
// when no opaque pixels survive the alpha filter.
func (e *Engine) AnalyzeImage(img image.Image) *Analysis {
	// Downsample preserving aspect ratio and alpha. Lanczos resampling is
	// deterministic for identical input bytes.
	bounds := img.Bounds()
	if bounds.Dx() > e.maxDimension || bounds.Dy() > e.maxDimension {
		img = imaging.Fit(img, e.maxDimension, e.maxDimension, imaging.Lanczos)
	}
	nrgba := imaging.Clone(img)

	labs, ignored := e.collectPixels(nrgba)
	if len(labs) == 0 {
		logging.Debug("Color analysis: no opaque pixels to cluster")
		return nil
	}

	clusters := e.cluster(labs)
	clusters = e.suppressNoise(clusters)
	clusters = e.mergeClose(clusters)
	sortClusters(clusters)

	total := len(labs) + ignored
	analysis := &Analysis{
		Clusters:        clusters,
		Buckets:         bucketsFor(clusters),
		IgnoredFraction: float64(ignored) / float64(total),
	}
	return analysis
}

// collectPixels converts sufficiently opaque pixels to LAB and counts the
// rest as ignored.
func (e *Engine) collectPixels(img *image.NRGBA) ([]LAB, int) {
	bounds := img.Bounds()
	labs := make([]LAB, 0, bounds.Dx()*bounds.Dy())
	ignored := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[(y-bounds.Min.Y)*img.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			alpha := float64(row[i+3]) / 255.0
			if alpha < e.alphaThreshold {
				ignored++
				continue
			}
			labs = append(labs, RGBToLAB(row[i], row[i+1], row[i+2]))
		}
	}
	return labs, ignored
}

// cluster runs k-means with deterministic initialization: pixels sorted by
// L (ties broken on a then b), centroids seeded at evenly spaced
// percentiles. No randomness anywhere, so identical input bytes reproduce
// identical clusters bit for bit.
func (e *Engine) cluster(labs []LAB) []Cluster {
	k := e.k
	if len(labs) < k {
		k = len(labs)
	}

	sorted := make([]LAB, len(labs))
	copy(sorted, labs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].L != sorted[j].L {
			return sorted[i].L < sorted[j].L
		}
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})

	centroids := make([]LAB, k)
	for i := 0; i < k; i++ {
		centroids[i] = sorted[(2*i+1)*len(sorted)/(2*k)]
	}

	assignments := make([]int, len(sorted))
	counts := make([]int, k)

	for iter := 0; iter < e.maxIterations; iter++ {
		changed := false
		for i, p := range sorted {
			best := 0
			bestDist := squaredDistance(p, centroids[0])
			for c := 1; c < k; c++ {
				if d := squaredDistance(p, centroids[c]); d < bestDist {
					best = c
					bestDist = d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([]LAB, k)
		for c := range counts {
			counts[c] = 0
		}
		for i, p := range sorted {
			c := assignments[i]
			sums[c].L += p.L
			sums[c].A += p.A
			sums[c].B += p.B
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid
				continue
			}
			n := float64(counts[c])
			centroids[c] = LAB{L: sums[c].L / n, A: sums[c].A / n, B: sums[c].B / n}
		}
	}

	clusters := make([]Cluster, 0, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		clusters = append(clusters, newCluster(centroids[c], counts[c], len(sorted)))
	}
	return clusters
}

// suppressNoise drops clusters below the minimum coverage fraction.
func (e *Engine) suppressNoise(clusters []Cluster) []Cluster {
	kept := clusters[:0]
	for _, c := range clusters {
		if c.Coverage >= e.minCoverage {
			kept = append(kept, c)
		}
	}
	return kept
}

// mergeClose repeatedly merges the closest pair of clusters under the
// delta-E threshold into a coverage-weighted centroid. The iteration cap
// guards against pathological merge loops.
func (e *Engine) mergeClose(clusters []Cluster) []Cluster {
	for iter := 0; iter < e.mergeCap; iter++ {
		bestI, bestJ := -1, -1
		bestDist := e.mergeThreshold
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := DeltaE(clusters[i].LAB, clusters[j].LAB); d < bestDist {
					bestI, bestJ = i, j
					bestDist = d
				}
			}
		}
		if bestI < 0 {
			break
		}

		a, b := clusters[bestI], clusters[bestJ]
		wa := float64(a.Count)
		wb := float64(b.Count)
		merged := newClusterCounts(LAB{
			L: (a.LAB.L*wa + b.LAB.L*wb) / (wa + wb),
			A: (a.LAB.A*wa + b.LAB.A*wb) / (wa + wb),
			B: (a.LAB.B*wa + b.LAB.B*wb) / (wa + wb),
		}, a.Count+b.Count, a.Coverage+b.Coverage)

		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
		clusters[bestI] = merged
	}
	return clusters
}

func newCluster(centroid LAB, count, total int) Cluster {
	return newClusterCounts(centroid, count, float64(count)/float64(total))
}

func newClusterCounts(centroid LAB, count int, coverage float64) Cluster {
	r, g, b := LABToRGB(centroid)
	return Cluster{
		LAB:      centroid,
		R:        r,
		G:        g,
		B:        b,
		Coverage: coverage,
		Count:    count,
	}
}

// sortClusters orders by coverage descending with deterministic tie-breaks.
func sortClusters(clusters []Cluster) {
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Coverage != clusters[j].Coverage {
			return clusters[i].Coverage > clusters[j].Coverage
		}
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].LAB.L < clusters[j].LAB.L
	})
}

func squaredDistance(a, b LAB) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return dl*dl + da*da + db*db
}
