package gemini

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// baseSizes maps resolution tiers to the pixel length of the larger side.
var baseSizes = map[string]int{
	"1K": 1024,
	"2K": 2048,
	"4K": 4096,
}

// ParseAspectRatio parses a "W:H" string into positive integers.
func ParseAspectRatio(s string) (w, h int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("aspect ratio %q is not of the form W:H", s)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("aspect ratio %q: %w", s, err)
	}
	if w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("aspect ratio %q must have positive terms", s)
	}
	return w, h, nil
}

// BaseSize maps a resolution tier to its pixel base. An empty tier means the
// model's native 1K output.
func BaseSize(resolution string) (int, error) {
	if resolution == "" {
		return baseSizes["1K"], nil
	}
	size, ok := baseSizes[resolution]
	if !ok {
		return 0, fmt.Errorf("unknown resolution tier %q", resolution)
	}
	return size, nil
}

// Dimensions derives pixel width and height: the larger side of the aspect
// ratio always equals the base size, the other is scaled and rounded.
func Dimensions(aspectRatio, resolution string) (width, height int, err error) {
	w, h, err := ParseAspectRatio(aspectRatio)
	if err != nil {
		return 0, 0, err
	}
	base, err := BaseSize(resolution)
	if err != nil {
		return 0, 0, err
	}

	if w >= h {
		width = base
		height = int(math.Round(float64(base) * float64(h) / float64(w)))
	} else {
		width = int(math.Round(float64(base) * float64(w) / float64(h)))
		height = base
	}
	return width, height, nil
}
