package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

// stubConn is a no-op player.Connection good enough to construct a Player
// for map/territory-manager tests, which never touch the transport.
type stubConn struct{}

func (stubConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (stubConn) WriteMessage(int, []byte) error    { return nil }
func (stubConn) Close() error                      { return nil }
func (stubConn) SetReadDeadline(time.Time) error   { return nil }
func (stubConn) SetWriteDeadline(time.Time) error  { return nil }

type stubValidator struct{}

func (stubValidator) ValidateToken(context.Context, string) error { return nil }

func newTestPlayer(id int, height, width int) *player.Player {
	return player.New(id, "p", height, width, stubConn{}, stubValidator{})
}

func TestSortedPlayers_DeterministicByID(t *testing.T) {
	players := map[int]*player.Player{
		3: newTestPlayer(3, 4, 4),
		1: newTestPlayer(1, 4, 4),
		2: newTestPlayer(2, 4, 4),
	}

	for i := 0; i < 5; i++ {
		ordered := sortedPlayers(players)
		require.Len(t, ordered, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	}
}

func newGrowthMap() gamemap.GameMap {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Type: gamemap.King, Player: 1, Power: 5})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Type: gamemap.Castle, Player: 1, Power: 5})
	m.Set(gamemap.Point{Row: 1, Col: 0}, gamemap.Cell{Type: gamemap.Field, Player: 1, Power: 5})
	return m
}

func TestMapManager_UpdateMap_KingAndCastleGrowEveryTurn(t *testing.T) {
	m := newGrowthMap()
	mm := NewMapManager(m)
	mm.SetTurn(1)

	p := newTestPlayer(1, 2, 2)
	p.SetInitPoint(gamemap.Point{Row: 0, Col: 0})
	p.Territory.Add(gamemap.Point{Row: 0, Col: 1})
	p.Territory.Add(gamemap.Point{Row: 1, Col: 0})
	players := map[int]*player.Player{1: p}

	mm.UpdateMap(players)

	assert.Equal(t, 6, mm.Map().At(gamemap.Point{Row: 0, Col: 0}).Power, "king grows every turn")
	assert.Equal(t, 6, mm.Map().At(gamemap.Point{Row: 0, Col: 1}).Power, "owned castle grows every turn")
	assert.Equal(t, 5, mm.Map().At(gamemap.Point{Row: 1, Col: 0}).Power, "field only grows on growthInterval turns")
}

func TestMapManager_UpdateMap_FieldGrowsOnIntervalTurn(t *testing.T) {
	m := newGrowthMap()
	mm := NewMapManager(m)
	mm.SetTurn(growthInterval)

	p := newTestPlayer(1, 2, 2)
	p.SetInitPoint(gamemap.Point{Row: 0, Col: 0})
	p.Territory.Add(gamemap.Point{Row: 1, Col: 0})
	players := map[int]*player.Player{1: p}

	mm.UpdateMap(players)

	assert.Equal(t, 6, mm.Map().At(gamemap.Point{Row: 1, Col: 0}).Power)
}

func TestMapManager_ProcessMove_OutOfBoundsResetsMoves(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)
	p.Move(&gamemap.Point{Row: 0, Col: 0}, &gamemap.Point{Row: 5, Col: 5})

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 5, Col: 5})

	_, _, ok := p.GetMovePoints()
	assert.False(t, ok)
}

func TestMapManager_ProcessMove_IntoBlockerResetsMoves(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 5})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Type: gamemap.Blocker})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	assert.Equal(t, 5, mm.Map().At(gamemap.Point{Row: 0, Col: 0}).Power, "blocked move must not mutate the source cell")
}

func TestMapManager_ProcessMove_SourcePowerBelowOneResetsMoves(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 1})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	assert.Equal(t, 1, mm.Map().At(gamemap.Point{Row: 0, Col: 0}).Power)
	assert.Equal(t, 0, mm.Map().At(gamemap.Point{Row: 0, Col: 1}).Player)
}

func TestMapManager_ProcessMove_SameOwnerMerges(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 6})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 1, Power: 2})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	assert.Equal(t, 1, mm.Map().At(gamemap.Point{Row: 0, Col: 0}).Power)
	assert.Equal(t, 7, mm.Map().At(gamemap.Point{Row: 0, Col: 1}).Power)
}

func TestMapManager_ProcessMove_AttackFailsWhenDefenderStronger(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 6})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 2, Power: 10})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	target := mm.Map().At(gamemap.Point{Row: 0, Col: 1})
	assert.Equal(t, 2, target.Player, "defender keeps ownership when stronger")
	assert.Equal(t, 5, target.Power)
	_, _, ok := p.GetMovePoints()
	assert.False(t, ok, "a failed attack resets the attacker's queue")
}

func TestMapManager_ProcessMove_AttackCapturesWhenAttackerStronger(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 10})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 2, Power: 4})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	target := mm.Map().At(gamemap.Point{Row: 0, Col: 1})
	assert.Equal(t, 1, target.Player)
	assert.Equal(t, 5, target.Power, "diff = srcPower(9) - targetPower(4)")

	diff := mm.MapDiff()
	entry, ok := diff[gamemap.Point{Row: 0, Col: 1}]
	require.True(t, ok)
	assert.Equal(t, 2, entry.oldPlayer)
	assert.Equal(t, 1, entry.newPlayer)
}

func TestMapManager_ProcessMove_EqualPowerCapturesWithZeroRemainder(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 5})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 2, Power: 4})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)

	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})

	target := mm.Map().At(gamemap.Point{Row: 0, Col: 1})
	assert.Equal(t, 1, target.Player, "srcPower(4) == targetPower(4) still flips ownership")
	assert.Equal(t, 0, target.Power)
}

func TestMapManager_ClearMapDiff(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Player: 1, Power: 10})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 2, Power: 1})
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)
	mm.ProcessMove(p, gamemap.Point{Row: 0, Col: 0}, gamemap.Point{Row: 0, Col: 1})
	require.NotEmpty(t, mm.MapDiff())

	mm.ClearMapDiff()
	assert.Empty(t, mm.MapDiff())
}

func TestMapManager_CheckCursor_ResetsWhenOutsideTerritory(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)
	cursor := gamemap.Point{Row: 1, Col: 1}
	p.Cursor = &cursor

	mm.CheckCursor(map[int]*player.Player{1: p})

	assert.Nil(t, p.Cursor, "cursor outside the player's own territory must be reset")
}

func TestMapManager_CheckCursor_KeepsCursorInsideTerritory(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	mm := NewMapManager(m)
	p := newTestPlayer(1, 2, 2)
	cursor := gamemap.Point{Row: 1, Col: 1}
	p.Territory.Add(cursor)
	p.Cursor = &cursor

	mm.CheckCursor(map[int]*player.Player{1: p})

	assert.NotNil(t, p.Cursor)
}
