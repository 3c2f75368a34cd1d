package room

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

// GameStatus identifies a room's lifecycle phase.
type GameStatus int

const (
	StatusWaiting GameStatus = iota
	StatusInProgress
	StatusFinished
)

// Room is the aggregate owning the authoritative map, the connected
// players, and the current lifecycle state. All mutation of players/slots
// goes through room.mu; the map itself is mutated only by the active
// state/strategy, which run cooperatively (see package doc). Grounded on
// original_source's GameRoom.
type Room struct {
	RoomKey string
	GameMap gamemap.GameMap
	Meta    gamemap.MapMeta

	mu      sync.Mutex
	slots   []gamemap.Point
	players map[int]*player.Player

	defaultKingPower   int
	defaultCastlePower int
	colorsCount        int

	states map[GameStatus]GameState
	state  GameState
	status GameStatus
}

// New constructs a Room over a freshly loaded map and metadata, stamping
// CASTLE cells with defaultCastlePower and seeding the slot pool from the
// map's SPAWN points.
func New(roomKey string, gameMap gamemap.GameMap, meta gamemap.MapMeta, defaultKingPower, defaultCastlePower, colorsCount int) *Room {
	r := &Room{
		RoomKey:            roomKey,
		GameMap:            prepareMap(gameMap, defaultCastlePower),
		Meta:               meta,
		slots:              append([]gamemap.Point(nil), meta.PointsOfInterest[gamemap.Spawn]...),
		players:            make(map[int]*player.Player),
		defaultKingPower:   defaultKingPower,
		defaultCastlePower: defaultCastlePower,
		colorsCount:        colorsCount,
	}
	r.states = map[GameStatus]GameState{
		StatusWaiting:    newWaitingState(r),
		StatusInProgress: newInProgressState(r),
		StatusFinished:   newFinishedState(r),
	}
	r.state = r.states[StatusWaiting]
	metrics.RoomGameState.WithLabelValues(roomKey).Set(float64(StatusWaiting))
	return r
}

func prepareMap(gameMap gamemap.GameMap, defaultCastlePower int) gamemap.GameMap {
	height, width := gameMap.Dimensions()
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			pt := gamemap.Point{Row: row, Col: col}
			cell := gameMap.At(pt)
			if cell.Type == gamemap.Castle {
				cell.Power = defaultCastlePower
				gameMap.Set(pt, cell)
			}
		}
	}
	return gameMap
}

// Dimensions returns the room's map height and width.
func (r *Room) Dimensions() (height, width int) { return r.GameMap.Dimensions() }

// Status returns the room's current lifecycle phase.
func (r *Room) Status() GameStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// TransitionTo switches the active state.
func (r *Room) TransitionTo(status GameStatus) {
	metrics.RoomGameState.WithLabelValues(r.RoomKey).Set(float64(status))
	r.mu.Lock()
	r.state = r.states[status]
	r.status = status
	r.mu.Unlock()
}

// PlayerCount returns the number of currently connected players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// RegisterPlayer adds p to the room and wires its message/disconnect
// handlers back to the room. Caller must hold r.mu.
func (r *Room) RegisterPlayer(p *player.Player) {
	r.players[p.ID] = p
	p.SetMessageHandler(r.dispatchPlayerMessage)
	p.SetDisconnectHandler(r.handleDisconnect)
}

func (r *Room) snapshotPlayers() []*player.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*player.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Broadcast fans message out to every connected player concurrently and
// waits for delivery. message is either a plain outbound message or a
// func(*player.Player) any producing one tailored per recipient.
func (r *Room) Broadcast(message any) {
	players := r.snapshotPlayers()

	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p *player.Player) {
			defer wg.Done()
			r.sendMessage(p, message)
		}(p)
	}
	wg.Wait()
}

func (r *Room) sendMessage(p *player.Player, message any) {
	actual := message
	if fn, ok := message.(func(*player.Player) any); ok {
		actual = fn(p)
	}
	if err := p.Send(actual); err != nil {
		logging.Error(context.Background(), "error sending to player",
			zap.Int("player_id", p.ID), zap.Error(err))
		r.Disconnect(p)
	}
}

// WaitAllReady runs the connect sequence for p against the current state,
// blocking until the room is ready to start (Waiting) or failing fast
// (any other state).
func (r *Room) WaitAllReady(ctx context.Context, p *player.Player) error {
	return r.currentState().Connect(ctx, p)
}

// Disconnect removes p from the room per the current state's rules.
func (r *Room) Disconnect(p *player.Player) { r.currentState().Disconnect(p) }

// AllowReconnect reports whether the current state accepts reconnects.
func (r *Room) AllowReconnect() bool { return r.currentState().AllowReconnect() }

// Play runs the current state's play sequence (broadcasts start, drives
// the tick loop, and blocks until the room finishes or ctx is done).
func (r *Room) Play(ctx context.Context, p *player.Player) error {
	return r.currentState().Play(ctx, p)
}

// AfterPlay runs post-game bookkeeping for p (draining its inbound loop).
func (r *Room) AfterPlay(p *player.Player) error { return r.currentState().AfterPlay(p) }

// Cleanup tears down whatever the current state owns (tick loop, inbound
// loops).
func (r *Room) Cleanup() { r.currentState().Cleanup() }

func (r *Room) currentState() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandlePlayerMessage intercepts chat (broadcast verbatim, no state
// dispatch) before delegating to the current state.
func (r *Room) HandlePlayerMessage(p *player.Player, msg player.InMessage) {
	if msg.Kind == player.KindChat {
		r.Broadcast(*msg.Chat)
		return
	}
	r.currentState().HandlePlayerMessage(p, msg)
}

func (r *Room) dispatchPlayerMessage(p *player.Player, msg player.InMessage) {
	r.HandlePlayerMessage(p, msg)
}

func (r *Room) handleDisconnect(p *player.Player) {
	r.Disconnect(p)
}

func observeTerritorySize(count int) {
	metrics.TerritorySize.Observe(float64(count))
}
