package territory

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

func sortPoints(points []gamemap.Point) []gamemap.Point {
	out := append([]gamemap.Point(nil), points...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func TestVisibility_UpdateCoversNeighborhoodClippedToBounds(t *testing.T) {
	v := NewVisibility(3, 3)
	diff := v.Update([]gamemap.Point{{Row: 0, Col: 0}})

	expected := []gamemap.Point{
		{Row: 0, Col: 0}, {Row: 0, Col: 1},
		{Row: 1, Col: 0}, {Row: 1, Col: 1},
	}
	assert.ElementsMatch(t, expected, diff)
	assert.ElementsMatch(t, expected, sortPoints(v.VisiblePoints()))
}

func TestVisibility_UpdateReturnsSymmetricDifference(t *testing.T) {
	v := NewVisibility(5, 5)
	v.Update([]gamemap.Point{{Row: 2, Col: 2}})

	diff := v.Update([]gamemap.Point{{Row: 2, Col: 4}})

	for _, p := range diff {
		assert.True(t, p.Col != 3, "column 3 is visible before and after, so only cells leaving or entering the 3x3 window should appear, got %v", p)
	}
	assert.NotEmpty(t, diff)
}

func TestVisibility_UpdateWithNoPointsClearsEverything(t *testing.T) {
	v := NewVisibility(4, 4)
	v.Update([]gamemap.Point{{Row: 1, Col: 1}})
	require := assert.New(t)
	require.NotEmpty(v.VisiblePoints())

	v.Update(nil)
	require.Empty(v.VisiblePoints())
}
