package core

import (
	"fmt"
	"math/rand"

	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
)

// ColorFor returns the display color for a category label, assigning a new
// one on first sight. Assignment is stable for the lifetime of the map and
// avoids colliding with colors already handed out. Pass a seeded rng in
// tests for reproducible palettes.
func ColorFor(label string, existing model.CategoryColorMap, rng *rand.Rand) string {
	if c, ok := existing[label]; ok {
		return c
	}

	used := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		used[c] = struct{}{}
	}

	var color string
	for attempt := 0; attempt < 32; attempt++ {
		color = fmt.Sprintf("%06x", rng.Intn(0x1000000))
		if _, taken := used[color]; !taken {
			break
		}
	}

	existing[label] = color
	return color
}
