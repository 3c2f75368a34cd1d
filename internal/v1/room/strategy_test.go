package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

func TestClassicStrategy_MakeTurn_MovesAndGrowsAndUpdatesPOV(t *testing.T) {
	m := gamemap.NewEmptyMap(2, 3)
	m.Set(gamemap.Point{Row: 0, Col: 0}, gamemap.Cell{Type: gamemap.King, Player: 1, Power: 10})

	p := newTestPlayer(1, 2, 3)
	p.SetInitPoint(gamemap.Point{Row: 0, Col: 0})

	players := map[int]*player.Player{1: p}
	strategy := NewClassicStrategy(m, players)
	strategy.InitTurn(1)

	p.Move(&gamemap.Point{Row: 0, Col: 0}, &gamemap.Point{Row: 0, Col: 1})

	require.NoError(t, strategy.MakeTurn())

	target := m.At(gamemap.Point{Row: 0, Col: 1})
	assert.Equal(t, 1, target.Player, "queued move should have been resolved during the turn")
	assert.NotEqual(t, gamemap.Cell{}, p.POV[0][0], "the player's own kingdom must be visible in their POV")
}

func TestClassicStrategy_IsGameDone_OneReadyPlayerLeft(t *testing.T) {
	winner := newTestPlayer(1, 2, 2)
	winner.SetReady()
	loser := newTestPlayer(2, 2, 2)
	loser.SetLose()

	strategy := NewClassicStrategy(gamemap.NewEmptyMap(2, 2), map[int]*player.Player{1: winner, 2: loser})
	assert.True(t, strategy.IsGameDone())
}

func TestClassicStrategy_IsGameDone_MultipleReadyPlayers(t *testing.T) {
	a := newTestPlayer(1, 2, 2)
	a.SetReady()
	b := newTestPlayer(2, 2, 2)
	b.SetReady()

	strategy := NewClassicStrategy(gamemap.NewEmptyMap(2, 2), map[int]*player.Player{1: a, 2: b})
	assert.False(t, strategy.IsGameDone())
}

func TestClassicStrategy_FinishTurnAndFinishGame_InvokeCallbacksIfSet(t *testing.T) {
	strategy := NewClassicStrategy(gamemap.NewEmptyMap(2, 2), map[int]*player.Player{})

	assert.NotPanics(t, strategy.FinishTurn, "no callback wired yet must be a no-op")

	turnCalled, gameCalled := false, false
	strategy.SetOnTurnDone(func() { turnCalled = true })
	strategy.SetOnGameDone(func() { gameCalled = true })

	strategy.FinishTurn()
	strategy.FinishGame()

	assert.True(t, turnCalled)
	assert.True(t, gameCalled)
}
