// Package territory implements the bitmap-backed per-player ownership and
// visibility sets described by the room runtime's design notes: territories
// and visibility masks are flat bitsets sized to the map, giving O(W*H/64)
// set operations instead of a generic hash set. Grounded on the original
// services/player.py's bitarray-backed Territory/Visibility, reimplemented
// as a word-packed []uint64 since no bitset library appears anywhere in the
// retrieval pack.
package territory

import (
	"math/bits"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

// Territory is the set of cells owned by one player on a map of fixed
// dimensions.
type Territory struct {
	width, height int
	words         []uint64

	pendingAdd    []gamemap.Point
	pendingRemove []gamemap.Point
}

func wordCount(bitCount int) int { return (bitCount + 63) / 64 }

// New returns an empty Territory sized for a width x height map.
func New(width, height int) *Territory {
	return &Territory{
		width:  width,
		height: height,
		words:  make([]uint64, wordCount(width*height)),
	}
}

func (t *Territory) index(p gamemap.Point) int { return p.Row*t.width + p.Col }

// Add marks p as owned, immediately.
func (t *Territory) Add(p gamemap.Point) {
	i := t.index(p)
	t.words[i/64] |= 1 << uint(i%64)
}

// Remove clears ownership of p, immediately.
func (t *Territory) Remove(p gamemap.Point) {
	i := t.index(p)
	t.words[i/64] &^= 1 << uint(i%64)
}

// Contains reports whether p is owned.
func (t *Territory) Contains(p gamemap.Point) bool {
	i := t.index(p)
	return t.words[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of owned cells.
func (t *Territory) Count() int {
	n := 0
	for _, w := range t.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Clear empties the territory.
func (t *Territory) Clear() {
	for i := range t.words {
		t.words[i] = 0
	}
	t.pendingAdd = t.pendingAdd[:0]
	t.pendingRemove = t.pendingRemove[:0]
}

// Points returns every owned cell, row-major order.
func (t *Territory) Points() []gamemap.Point {
	out := make([]gamemap.Point, 0, t.Count())
	for wi, w := range t.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			idx := wi*64 + bit
			out = append(out, gamemap.Point{Row: idx / t.width, Col: idx % t.width})
			w &^= 1 << uint(bit)
		}
	}
	return out
}

// Merge unions other into t, then clears other. Grounded on
// Player.takeover_kingdom's territory.merge(other.territory) step.
func (t *Territory) Merge(other *Territory) {
	for i := range t.words {
		t.words[i] |= other.words[i]
	}
	other.Clear()
}

// BatchAddPoints queues points to be added on the next ApplyBatchUpdates.
func (t *Territory) BatchAddPoints(points []gamemap.Point) {
	t.pendingAdd = append(t.pendingAdd, points...)
}

// BatchRemovePoints queues points to be removed on the next ApplyBatchUpdates.
func (t *Territory) BatchRemovePoints(points []gamemap.Point) {
	t.pendingRemove = append(t.pendingRemove, points...)
}

// ApplyBatchUpdates flushes queued adds/removes into the bitmap. Additions
// are applied before removals are flushed, mirroring the per-tick
// territory_updates-then-territory_removals order in TerritoryManager.
func (t *Territory) ApplyBatchUpdates() {
	for _, p := range t.pendingAdd {
		t.Add(p)
	}
	for _, p := range t.pendingRemove {
		t.Remove(p)
	}
	t.pendingAdd = t.pendingAdd[:0]
	t.pendingRemove = t.pendingRemove[:0]
}
