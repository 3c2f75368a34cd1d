package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

func TestTerritoryManager_UpdateTerritories_AppliesAddsAndRemoves(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	tm := NewTerritoryManager(m)

	attacker := newTestPlayer(1, 2, 2)
	attacker.SetInitPoint(gamemap.Point{Row: 0, Col: 0})
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Type: gamemap.King, Player: 1, Power: 10})

	defender := newTestPlayer(2, 2, 2)
	defender.SetInitPoint(gamemap.Point{Row: 1, Col: 1})
	defender.Territory.Add(gamemap.Point{Row: 0, Col: 1})
	m.Set(gamemap.Point{Row: 1, Col: 1}, gamemap.Cell{Type: gamemap.King, Player: 2, Power: 10})
	m.Set(gamemap.Point{Row: 0, Col: 1}, gamemap.Cell{Player: 1, Power: 3})

	players := map[int]*player.Player{1: attacker, 2: defender}
	diff := map[gamemap.Point]mapDiffEntry{
		{Row: 0, Col: 1}: {oldPlayer: 2, newPlayer: 1},
	}

	require.NoError(t, tm.UpdateTerritories(players, diff))

	assert.True(t, attacker.Territory.Contains(gamemap.Point{Row: 0, Col: 1}))
	assert.False(t, defender.Territory.Contains(gamemap.Point{Row: 0, Col: 1}))
}

func TestTerritoryManager_KingdomCapture_TransfersTerritoryAndMarksLoser(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	tm := NewTerritoryManager(m)

	winner := newTestPlayer(1, 2, 2)
	winner.SetInitPoint(gamemap.Point{Row: 0, Col: 0})
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Type: gamemap.King, Player: 1, Power: 10})

	loser := newTestPlayer(2, 2, 2)
	loser.SetInitPoint(gamemap.Point{Row: 1, Col: 1})
	loser.Territory.Add(gamemap.Point{Row: 1, Col: 0})
	m.Set(gamemap.Point{Row: 1, Col: 0}, gamemap.Cell{Player: 2, Power: 4})
	// winner's attack already flipped the kingdom cell itself to player 1.
	m.Set(gamemap.Point{Row: 1, Col: 1}, gamemap.Cell{Type: gamemap.King, Player: 1, Power: 2})

	players := map[int]*player.Player{1: winner, 2: loser}

	require.NoError(t, tm.UpdateTerritories(players, map[gamemap.Point]mapDiffEntry{}))

	assert.Equal(t, player.Loser, loser.Status())
	assert.True(t, winner.Territory.Contains(gamemap.Point{Row: 1, Col: 0}), "captured player's territory transfers to the captor")
	assert.Equal(t, 1, m.At(gamemap.Point{Row: 1, Col: 0}).Player, "every captured cell is relabeled to the new owner")
}

func TestTerritoryManager_KingdomLostWithNoOwner_ReturnsError(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 2)
	tm := NewTerritoryManager(m)

	p := newTestPlayer(1, 2, 2)
	p.SetInitPoint(gamemap.Point{Row: 0, Col: 0})
	// The kingdom cell itself has lost all ownership (player 0), an invariant
	// violation that should never happen in normal play.
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Type: gamemap.King, Player: 0})

	err := tm.UpdateTerritories(map[int]*player.Player{1: p}, map[gamemap.Point]mapDiffEntry{})

	var kingdomLost *ErrKingdomLost
	require.ErrorAs(t, err, &kingdomLost)
	assert.Equal(t, gamemap.Point{Row: 0, Col: 0}, kingdomLost.Point)
}
