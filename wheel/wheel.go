// Package wheel holds the pure spin math shared by operator and observers.
package wheel

import (
	"math"
	"math/rand"

	"github.com/spinwheel/lucky-wheel/model"
)

const (
	// pointer sits at the top of the wheel, sectors start at 0° on the
	// right and run clockwise
	pointerAngle = 270

	minSpins = 3
	maxSpins = 8
)

// Result maps a cumulative rotation onto the item the pointer lands on.
// Every client applies this to the same committed rotation, so all of them
// render the same outcome. Blank labels fall back to their positional
// placeholder.
func Result(rotation float64, items []string) (int, string) {
	if len(items) == 0 {
		return 0, model.Placeholder(0)
	}

	normalized := math.Mod(rotation, 360)
	pointer := math.Mod(pointerAngle-normalized+360, 360)
	step := 360 / float64(len(items))

	index := int(math.Floor(pointer / step))
	if index >= len(items) {
		index = 0
	}

	label := items[index]
	if label == "" {
		label = model.Placeholder(index)
	}
	return index, label
}

// Target picks the next cumulative rotation for a spin: between minSpins
// and maxSpins full turns past the current angle plus a random final
// offset. Rotation only ever grows.
func Target(current float64, rng *rand.Rand) float64 {
	spins := rng.Float64()*(maxSpins-minSpins) + minSpins
	return current + spins*360 + rng.Float64()*360
}
