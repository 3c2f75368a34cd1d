package room

import (
	"fmt"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

// ErrKingdomLost is the fatal invariant violation raised when a player's
// kingdom cell has no owner at all mid-tick; the caller must abort the
// turn and finish the room.
type ErrKingdomLost struct {
	Point gamemap.Point
}

func (e *ErrKingdomLost) Error() string {
	return fmt.Sprintf("room: kingdom cell %v lost its owner entirely", e.Point)
}

// TerritoryManager settles territory ownership from a tick's map diff and
// resolves kingdom takeovers, grounded on original_source's TerritoryManager.
type TerritoryManager struct {
	gameMap gamemap.GameMap
}

// NewTerritoryManager builds a TerritoryManager bound to gameMap.
func NewTerritoryManager(gameMap gamemap.GameMap) *TerritoryManager {
	return &TerritoryManager{gameMap: gameMap}
}

// UpdateTerritories applies the tick's ownership transitions to each
// affected player's territory, then checks whether any player's kingdom
// (their initPoint) changed owner and, if so, transfers the loser's entire
// territory to the captor.
func (t *TerritoryManager) UpdateTerritories(players map[int]*player.Player, mapDiff map[gamemap.Point]mapDiffEntry) error {
	updates := make(map[int][]gamemap.Point)
	removals := make(map[int][]gamemap.Point)

	for pt, transition := range mapDiff {
		if transition.newPlayer != 0 {
			updates[transition.newPlayer] = append(updates[transition.newPlayer], pt)
		}
		if transition.oldPlayer != 0 {
			if owner, ok := players[transition.oldPlayer]; ok && owner.Territory.Contains(pt) {
				removals[transition.oldPlayer] = append(removals[transition.oldPlayer], pt)
			}
		}
	}

	for playerID, points := range updates {
		if p, ok := players[playerID]; ok {
			p.Territory.BatchAddPoints(points)
		}
	}
	for playerID, points := range removals {
		if p, ok := players[playerID]; ok {
			p.Territory.BatchRemovePoints(points)
		}
	}
	ordered := sortedPlayers(players)

	for _, p := range ordered {
		p.Territory.ApplyBatchUpdates()
	}

	type capture struct {
		newKingID int
		captured  *player.Player
	}
	var captures []capture
	for _, p := range ordered {
		initPoint, ok := p.InitPoint()
		if !ok {
			continue
		}
		currentKing := t.gameMap.At(initPoint).Player
		if currentKing == 0 {
			return &ErrKingdomLost{Point: initPoint}
		}
		if currentKing != p.ID {
			captures = append(captures, capture{newKingID: currentKing, captured: p})
		}
	}

	for _, c := range captures {
		for _, pt := range c.captured.Territory.Points() {
			cell := t.gameMap.At(pt)
			cell.Player = c.newKingID
			t.gameMap.Set(pt, cell)
		}
		players[c.newKingID].TakeoverKingdom(c.captured)
	}
	return nil
}
