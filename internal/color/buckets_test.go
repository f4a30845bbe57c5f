package color

import "testing"

func TestBucketFor(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    string
	}{
		{"black", 0, 0, 0, BucketBlack},
		{"near black", 20, 20, 20, BucketBlack},
		{"white", 255, 255, 255, BucketWhite},
		{"mid gray", 128, 128, 128, BucketGray},
		{"pure red", 255, 0, 0, BucketRed},
		{"dark red", 128, 0, 0, BucketRed},
		{"orange", 255, 140, 0, BucketOrange},
		{"brown", 120, 66, 18, BucketBrown},
		{"yellow", 255, 255, 0, BucketYellow},
		{"green", 0, 200, 0, BucketGreen},
		{"blue", 0, 0, 255, BucketBlue},
		{"sky blue", 80, 160, 230, BucketBlue},
		{"purple", 100, 0, 160, BucketPurple},
		{"pink", 255, 182, 193, BucketPink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lab := RGBToLAB(tt.r, tt.g, tt.b)
			if got := BucketFor(lab); got != tt.want {
				t.Errorf("BucketFor(%d,%d,%d) = %s, want %s (lab %.1f/%.1f/%.1f hue %.1f chroma %.1f)",
					tt.r, tt.g, tt.b, got, tt.want, lab.L, lab.A, lab.B, HueDegrees(lab), Chroma(lab))
			}
		})
	}
}

func TestBucketsForRespectsCapAndFloor(t *testing.T) {
	mk := func(r, g, b uint8, coverage float64) Cluster {
		lab := RGBToLAB(r, g, b)
		return Cluster{LAB: lab, R: r, G: g, B: b, Coverage: coverage, Count: int(coverage * 1000)}
	}

	clusters := []Cluster{
		mk(255, 0, 0, 0.30),   // red
		mk(0, 0, 255, 0.20),   // blue
		mk(0, 200, 0, 0.15),   // green
		mk(255, 255, 0, 0.12), // yellow
		mk(100, 0, 160, 0.10), // purple: fifth unique, over the cap
		mk(255, 140, 0, 0.05), // orange: below the 8% floor
	}

	buckets := bucketsFor(clusters)
	if len(buckets) != 4 {
		t.Fatalf("got %d buckets, want 4", len(buckets))
	}
	want := []string{BucketRed, BucketBlue, BucketGreen, BucketYellow}
	for i, name := range want {
		if buckets[i] != name {
			t.Errorf("bucket %d = %s, want %s", i, buckets[i], name)
		}
	}
}

func TestBucketsForDeduplicates(t *testing.T) {
	mk := func(r, g, b uint8, coverage float64) Cluster {
		lab := RGBToLAB(r, g, b)
		return Cluster{LAB: lab, Coverage: coverage}
	}

	// Two distinct reds map to the same bucket.
	buckets := bucketsFor([]Cluster{
		mk(255, 0, 0, 0.50),
		mk(180, 10, 10, 0.30),
		mk(0, 0, 255, 0.20),
	})
	if len(buckets) != 2 || buckets[0] != BucketRed || buckets[1] != BucketBlue {
		t.Errorf("buckets = %v, want [red blue]", buckets)
	}
}
