// Command colorscan runs the color analysis engine over a local image and
// prints the clusters, macro buckets, and dominant colors it would persist.
// Meant for operators debugging why an asset got the colors it did.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"asset-pipeline/internal/color"
)

func main() {
	jsonOut := flag.Bool("json", false, "emit the full analysis as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-json] <image-file>\n", os.Args[0])
		os.Exit(2)
	}
	path := flag.Arg(0)

	engine := color.NewEngine()
	analysis, err := engine.Analyze(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}
	if analysis == nil {
		fmt.Println("image is not analyzable (undecodable or fully transparent)")
		return
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode analysis: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("clusters (%d), ignored fraction %.3f:\n", len(analysis.Clusters), analysis.IgnoredFraction)
	for i, c := range analysis.Clusters {
		fmt.Printf("  %2d. %s  coverage %5.1f%%  lab(%.1f, %.1f, %.1f)  bucket %s\n",
			i+1, color.HexRGB(c.R, c.G, c.B), c.Coverage*100, c.LAB.L, c.LAB.A, c.LAB.B,
			color.BucketFor(c.LAB))
	}

	fmt.Printf("macro buckets: %v\n", analysis.Buckets)

	dominant := color.DominantColors(analysis)
	fmt.Printf("dominant colors (%d):\n", len(dominant))
	for _, d := range dominant {
		fmt.Printf("  %s  coverage %5.1f%%\n", d.Hex, d.Coverage*100)
	}
	fmt.Printf("hue group: %s\n", color.HueGroupFor(analysis))
}
