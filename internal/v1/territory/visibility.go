package territory

import (
	"math/bits"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

// neighborOffsets is the 3x3 inclusive neighborhood, including the origin.
var neighborOffsets = [9][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 0}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Visibility computes the 3x3-neighborhood union of a set of owned points,
// clipped to map bounds, and the symmetric difference against the previous
// call's result.
type Visibility struct {
	width, height int
	mask          []uint64
	newMask       []uint64
}

// NewVisibility returns an empty Visibility sized for a width x height map.
func NewVisibility(width, height int) *Visibility {
	return &Visibility{
		width:   width,
		height:  height,
		mask:    make([]uint64, wordCount(width*height)),
		newMask: make([]uint64, wordCount(width*height)),
	}
}

func (v *Visibility) index(row, col int) int { return row*v.width + col }

func (v *Visibility) inBounds(row, col int) bool {
	return row >= 0 && row < v.height && col >= 0 && col < v.width
}

// Update recomputes visibility from the given territory points and returns
// every point whose visibility changed (entered or left), clearing and
// replacing the stored mask.
func (v *Visibility) Update(territoryPoints []gamemap.Point) []gamemap.Point {
	for i := range v.newMask {
		v.newMask[i] = 0
	}
	for _, p := range territoryPoints {
		for _, off := range neighborOffsets {
			r, c := p.Row+off[0], p.Col+off[1]
			if v.inBounds(r, c) {
				idx := v.index(r, c)
				v.newMask[idx/64] |= 1 << uint(idx%64)
			}
		}
	}

	var diff []gamemap.Point
	for i := range v.mask {
		changed := v.mask[i] ^ v.newMask[i]
		for changed != 0 {
			bit := bits.TrailingZeros64(changed)
			idx := i*64 + bit
			diff = append(diff, gamemap.Point{Row: idx / v.width, Col: idx % v.width})
			changed &^= 1 << uint(bit)
		}
	}

	copy(v.mask, v.newMask)
	return diff
}

// VisiblePoints returns every currently visible point.
func (v *Visibility) VisiblePoints() []gamemap.Point {
	var out []gamemap.Point
	for i, w := range v.mask {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			idx := i*64 + bit
			out = append(out, gamemap.Point{Row: idx / v.width, Col: idx % v.width})
			w &^= 1 << uint(bit)
		}
	}
	return out
}
