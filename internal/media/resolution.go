package media

import (
	"math"
	"strconv"
	"strings"
)

// baseWidth anchors resolutions derived from non-standard aspect ratios
const baseWidth = 1080

// Resolution maps an aspect-ratio label to the render target resolution.
// Known labels use fixed resolutions; anything else of the form "w:h" derives
// its height from the base width. Unparseable labels fall back to vertical.
func Resolution(label string) (width, height int) {
	switch label {
	case "9:16":
		return 1080, 1920
	case "16:9":
		return 1920, 1080
	case "1:1":
		return 1080, 1080
	case "4:3":
		return 1024, 768
	}

	parts := strings.Split(label, ":")
	if len(parts) != 2 {
		return 1080, 1920
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 1080, 1920
	}
	return baseWidth, int(math.Round(float64(baseWidth) * float64(h) / float64(w)))
}
