package descriptor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AspectRatio is a named width:height ratio.
type AspectRatio struct {
	Name  string
	Value float64
}

// StandardAspectRatios are the ratios templates are bucketed into.
var StandardAspectRatios = []AspectRatio{
	{"1:1", 1},
	{"4:3", 4.0 / 3.0},
	{"3:2", 3.0 / 2.0},
	{"16:9", 16.0 / 9.0},
	{"16:10", 16.0 / 10.0},
	{"21:9", 21.0 / 9.0},
	{"9:16", 9.0 / 16.0},
	{"3:4", 3.0 / 4.0},
	{"2:3", 2.0 / 3.0},
	{"5:4", 5.0 / 4.0},
	{"4:5", 4.0 / 5.0},
}

// ClosestAspectRatio returns the standard ratio nearest to width/height.
// Non-positive dimensions map to DefaultAspectRatio.
func ClosestAspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return DefaultAspectRatio
	}
	ratio := float64(width) / float64(height)
	best := StandardAspectRatios[0]
	bestDiff := math.Abs(ratio - best.Value)
	for _, ar := range StandardAspectRatios[1:] {
		if diff := math.Abs(ratio - ar.Value); diff < bestDiff {
			best, bestDiff = ar, diff
		}
	}
	return best.Name
}

// ParseAspectRatio converts "W:H" into W/H.
func ParseAspectRatio(s string) (float64, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("aspect ratio %q: expected W:H", s)
	}
	wf, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	hf, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	if wf <= 0 || hf <= 0 {
		return 0, fmt.Errorf("aspect ratio %q: sides must be positive", s)
	}
	return wf / hf, nil
}
