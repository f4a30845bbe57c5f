package color

// Macro bucket palette. Every analyzed asset maps onto at most four of these.
const (
	BucketRed    = "red"
	BucketOrange = "orange"
	BucketYellow = "yellow"
	BucketGreen  = "green"
	BucketBlue   = "blue"
	BucketPurple = "purple"
	BucketPink   = "pink"
	BucketBrown  = "brown"
	BucketBlack  = "black"
	BucketWhite  = "white"
	BucketGray   = "gray"
)

const (
	maxBuckets        = 4
	bucketMinCoverage = 0.08
)

// bucketsFor maps clusters (already sorted by coverage descending) onto the
// fixed palette, keeping the first four unique buckets whose backing cluster
// covers at least 8% of kept pixels.
func bucketsFor(clusters []Cluster) []string {
	var buckets []string
	seen := map[string]bool{}

	for _, c := range clusters {
		if c.Coverage < bucketMinCoverage {
			continue
		}
		name := BucketFor(c.LAB)
		if seen[name] {
			continue
		}
		seen[name] = true
		buckets = append(buckets, name)
		if len(buckets) == maxBuckets {
			break
		}
	}
	return buckets
}

// BucketFor classifies a single LAB point into one macro bucket using
// lightness, chroma, and hue-angle heuristics.
func BucketFor(lab LAB) string {
	chroma := Chroma(lab)

	switch {
	case lab.L < 14:
		return BucketBlack
	case lab.L > 92 && chroma < 12:
		return BucketWhite
	case chroma < 10:
		return BucketGray
	}

	hue := HueDegrees(lab)
	switch {
	// Pure sRGB red sits near hue 40, so the red arc runs to 45.
	case hue >= 345 || hue < 45:
		// High-lightness desaturated reds read as pink
		if lab.L >= 72 && chroma < 55 {
			return BucketPink
		}
		return BucketRed
	case hue < 75:
		// Dark orange is brown
		if lab.L < 42 {
			return BucketBrown
		}
		return BucketOrange
	case hue < 110:
		return BucketYellow
	case hue < 190:
		return BucketGreen
	case hue < 280:
		return BucketBlue
	default: // 280-345: the purple/magenta arc
		if lab.L >= 75 {
			return BucketPink
		}
		return BucketPurple
	}
}
