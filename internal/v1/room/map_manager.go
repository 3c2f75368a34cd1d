package room

import (
	"sort"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

// sortedPlayers returns players ordered by id, giving every per-turn pass
// over the player set a deterministic iteration order.
func sortedPlayers(players map[int]*player.Player) []*player.Player {
	ids := make([]int, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*player.Player, len(ids))
	for i, id := range ids {
		out[i] = players[id]
	}
	return out
}

// growthInterval is the turn cadence at which ordinary owned cells (not a
// KING or a player-owned CASTLE) grow power.
const growthInterval = 15

// mapDiffEntry records a cell's ownership transition between the old and
// new owning player id, 0 meaning unowned.
type mapDiffEntry struct {
	oldPlayer int
	newPlayer int
}

// MapManager applies per-tick power growth and move/combat resolution to
// the authoritative map, grounded on original_source's MapManager.
type MapManager struct {
	gameMap     gamemap.GameMap
	currentTurn int
	mapDiff     map[gamemap.Point]mapDiffEntry
}

// NewMapManager builds a MapManager bound to gameMap.
func NewMapManager(gameMap gamemap.GameMap) *MapManager {
	return &MapManager{gameMap: gameMap, mapDiff: make(map[gamemap.Point]mapDiffEntry)}
}

// SetTurn records the turn number used for the growth cadence check.
func (m *MapManager) SetTurn(turn int) { m.currentTurn = turn }

// Map returns the authoritative map this manager mutates.
func (m *MapManager) Map() gamemap.GameMap { return m.gameMap }

// UpdateMap grows every cell any player currently holds: a KING cell and a
// player-owned CASTLE cell grow every turn; any other owned cell grows only
// on turns divisible by growthInterval.
func (m *MapManager) UpdateMap(players map[int]*player.Player) {
	for _, p := range sortedPlayers(players) {
		for _, pt := range p.Territory.Points() {
			cell := m.gameMap.At(pt)
			switch {
			case cell.Type == gamemap.King:
				cell.Power++
			case cell.Type == gamemap.Castle && cell.HasPlayer():
				cell.Power++
			case m.currentTurn%growthInterval == 0:
				cell.Power++
			}
			m.gameMap.Set(pt, cell)
		}
	}
}

func (m *MapManager) isValidPosition(p gamemap.Point) bool {
	return m.gameMap.InBounds(p.Row, p.Col)
}

// ProcessMove resolves one (cursor, next) move for player p against the
// authoritative map, mutating cells and recording any ownership change in
// the map diff. A move that fails its preconditions resets the player's
// queued moves instead of mutating the map.
func (m *MapManager) ProcessMove(p *player.Player, cursor, next gamemap.Point) {
	if !m.isValidPosition(next) {
		p.ResetMoves()
		return
	}

	target := m.gameMap.At(next)
	if target.Type == gamemap.Blocker {
		p.ResetMoves()
		return
	}

	current := m.gameMap.At(cursor)
	srcPower := current.Power - 1
	if !current.HasPlayer() || current.Player != p.ID || srcPower < 1 {
		p.ResetMoves()
		return
	}

	if current.Player == target.Player {
		current.Power = 1
		target.Power += srcPower
		m.gameMap.Set(cursor, current)
		m.gameMap.Set(next, target)
		return
	}

	diff := srcPower - target.Power
	if diff < 0 {
		current.Power = 1
		target.Power = -diff
		m.gameMap.Set(cursor, current)
		m.gameMap.Set(next, target)
		p.ResetMoves()
		return
	}

	oldOwner := target.Player
	target.Player = p.ID
	target.Power = diff
	current.Power = 1
	m.gameMap.Set(cursor, current)
	m.gameMap.Set(next, target)
	m.mapDiff[next] = mapDiffEntry{oldPlayer: oldOwner, newPlayer: p.ID}
}

// MapDiff returns the ownership transitions accumulated since the last
// ClearMapDiff.
func (m *MapManager) MapDiff() map[gamemap.Point]mapDiffEntry { return m.mapDiff }

// ClearMapDiff empties the accumulated ownership-transition set.
func (m *MapManager) ClearMapDiff() {
	for k := range m.mapDiff {
		delete(m.mapDiff, k)
	}
}

// CheckCursor resets any player whose cursor has fallen outside their own
// territory, e.g. after losing the cell that held it.
func (m *MapManager) CheckCursor(players map[int]*player.Player) {
	for _, p := range sortedPlayers(players) {
		if p.Cursor != nil && !p.Territory.Contains(*p.Cursor) {
			p.ResetMoves()
		}
	}
}
