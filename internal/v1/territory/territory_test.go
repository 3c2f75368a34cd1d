package territory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

func TestTerritory_AddContainsRemove(t *testing.T) {
	tr := New(8, 8)
	p := gamemap.Point{Row: 3, Col: 5}

	assert.False(t, tr.Contains(p))
	tr.Add(p)
	assert.True(t, tr.Contains(p))
	assert.Equal(t, 1, tr.Count())

	tr.Remove(p)
	assert.False(t, tr.Contains(p))
	assert.Equal(t, 0, tr.Count())
}

func TestTerritory_PointsRowMajorOrder(t *testing.T) {
	tr := New(4, 4)
	tr.Add(gamemap.Point{Row: 2, Col: 1})
	tr.Add(gamemap.Point{Row: 0, Col: 3})
	tr.Add(gamemap.Point{Row: 0, Col: 0})

	points := tr.Points()
	assert.Equal(t, []gamemap.Point{
		{Row: 0, Col: 0},
		{Row: 0, Col: 3},
		{Row: 2, Col: 1},
	}, points)
}

func TestTerritory_ClearResetsPendingBatches(t *testing.T) {
	tr := New(4, 4)
	tr.Add(gamemap.Point{Row: 1, Col: 1})
	tr.BatchAddPoints([]gamemap.Point{{Row: 2, Col: 2}})

	tr.Clear()
	assert.Equal(t, 0, tr.Count())

	tr.ApplyBatchUpdates()
	assert.Equal(t, 0, tr.Count(), "pending batch queued before Clear must not resurrect after Clear")
}

func TestTerritory_Merge(t *testing.T) {
	a := New(4, 4)
	a.Add(gamemap.Point{Row: 0, Col: 0})
	b := New(4, 4)
	b.Add(gamemap.Point{Row: 3, Col: 3})

	a.Merge(b)

	assert.True(t, a.Contains(gamemap.Point{Row: 0, Col: 0}))
	assert.True(t, a.Contains(gamemap.Point{Row: 3, Col: 3}))
	assert.Equal(t, 0, b.Count(), "merge must clear the source territory")
}

func TestTerritory_BatchUpdates_AddsBeforeRemoves(t *testing.T) {
	tr := New(4, 4)
	p := gamemap.Point{Row: 1, Col: 1}

	tr.BatchAddPoints([]gamemap.Point{p})
	tr.BatchRemovePoints([]gamemap.Point{p})
	tr.ApplyBatchUpdates()

	assert.False(t, tr.Contains(p), "a point queued for both add and remove in the same tick ends up removed")
}

func TestTerritory_ApplyBatchUpdates_ClearsQueues(t *testing.T) {
	tr := New(4, 4)
	p := gamemap.Point{Row: 1, Col: 1}
	tr.BatchAddPoints([]gamemap.Point{p})
	tr.ApplyBatchUpdates()
	assert.True(t, tr.Contains(p))

	tr.Remove(p)
	tr.ApplyBatchUpdates()
	assert.False(t, tr.Contains(p), "a second ApplyBatchUpdates with nothing queued must not re-add stale points")
}
