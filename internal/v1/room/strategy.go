package room

import (
	"time"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

func observeStep(operation string, start time.Time) {
	metrics.TurnStepDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ClassicStrategy composes one turn as update_map -> process_moves ->
// update_territory -> check_cursor -> update_pov, grounded on
// original_source's ClassicGameStrategy.
type ClassicStrategy struct {
	mapManager       *MapManager
	territoryManager *TerritoryManager
	players          map[int]*player.Player

	onTurnDone func()
	onGameDone func()
}

// NewClassicStrategy builds a ClassicStrategy over gameMap and the room's
// live player map. players is captured by reference: removals the room
// makes later (e.g. on disconnect) are visible to the strategy without any
// further wiring.
func NewClassicStrategy(gameMap gamemap.GameMap, players map[int]*player.Player) *ClassicStrategy {
	return &ClassicStrategy{
		mapManager:       NewMapManager(gameMap),
		territoryManager: NewTerritoryManager(gameMap),
		players:          players,
	}
}

// SetOnTurnDone wires the per-turn broadcast callback.
func (s *ClassicStrategy) SetOnTurnDone(fn func()) { s.onTurnDone = fn }

// SetOnGameDone wires the game-completion callback.
func (s *ClassicStrategy) SetOnGameDone(fn func()) { s.onGameDone = fn }

// InitTurn records the turn number ahead of MakeTurn.
func (s *ClassicStrategy) InitTurn(turn int) { s.mapManager.SetTurn(turn) }

// MakeTurn runs one full turn's worth of simulation. A non-nil error is a
// fatal invariant violation: the caller must stop the loop and finish the
// game.
func (s *ClassicStrategy) MakeTurn() error {
	start := time.Now()
	s.mapManager.UpdateMap(s.players)
	observeStep("update_map", start)

	start = time.Now()
	for _, p := range sortedPlayers(s.players) {
		prev, current, ok := p.GetMovePoints()
		if !ok {
			continue
		}
		p.PrevCursor, p.Cursor = &prev, &current
		s.mapManager.ProcessMove(p, prev, current)
	}
	observeStep("process_moves", start)

	start = time.Now()
	if err := s.territoryManager.UpdateTerritories(s.players, s.mapManager.MapDiff()); err != nil {
		return err
	}
	s.mapManager.CheckCursor(s.players)
	s.mapManager.ClearMapDiff()
	observeStep("update_territory", start)

	start = time.Now()
	done := s.IsGameDone()
	for _, p := range sortedPlayers(s.players) {
		s.updatePOV(p, done)
	}
	observeStep("update_pov", start)
	return nil
}

// FinishTurn invokes the turn-done callback, if wired.
func (s *ClassicStrategy) FinishTurn() {
	if s.onTurnDone != nil {
		s.onTurnDone()
	}
}

// FinishGame invokes the game-done callback, if wired.
func (s *ClassicStrategy) FinishGame() {
	if s.onGameDone != nil {
		s.onGameDone()
	}
}

// IsGameDone reports whether exactly one player still holds READY.
func (s *ClassicStrategy) IsGameDone() bool {
	readyCount := 0
	for _, p := range s.players {
		if p.IsReady() {
			readyCount++
		}
	}
	return readyCount == 1
}

func (s *ClassicStrategy) updatePOV(p *player.Player, gameDone bool) {
	if p.Status() == player.Loser || gameDone {
		p.POV = s.mapManager.Map()
		return
	}

	diff := p.Visibility.Update(p.Territory.Points())
	for _, pt := range diff {
		p.POV.Set(pt, gamemap.Cell{})
	}
	for _, pt := range p.Visibility.VisiblePoints() {
		p.POV.Set(pt, s.mapManager.Map().At(pt))
	}
}
