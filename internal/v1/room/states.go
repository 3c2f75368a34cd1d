package room

import (
	"context"
	"math/rand/v2"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
)

// GameState mediates every room operation for one lifecycle phase,
// modeled as a dispatched sum-type rather than a class hierarchy per
// spec's state-machine-as-sum-type design note. Grounded on
// original_source's GameState/WaitingState/GameInProgressState/GameFinished.
type GameState interface {
	HandlePlayerMessage(p *player.Player, msg player.InMessage)
	Connect(ctx context.Context, p *player.Player) error
	Play(ctx context.Context, p *player.Player) error
	AllowReconnect() bool
	Cleanup()
	AfterPlay(p *player.Player) error
	Disconnect(p *player.Player)
}

// noColor is the sentinel passed to takeColor to request the first free
// color rather than a specific one.
const noColor = -1

// WaitingState allocates slots and colors and gates start on every
// connected player reaching READY.
type WaitingState struct {
	room   *Room
	gate   *readinessGate
	colors []*player.Player
}

func newWaitingState(room *Room) *WaitingState {
	return &WaitingState{
		room:   room,
		gate:   newReadinessGate(),
		colors: make([]*player.Player, room.colorsCount),
	}
}

func (s *WaitingState) AllowReconnect() bool { return true }

func (s *WaitingState) HandlePlayerMessage(p *player.Player, msg player.InMessage) {
	switch msg.Kind {
	case player.KindColor:
		s.room.mu.Lock()
		s.releaseColor(p)
		s.takeColor(p, msg.Color.Color)
		s.room.mu.Unlock()
		s.room.Broadcast(s.playersMessage())
	case player.KindReady:
		p.SetReady()
		s.room.Broadcast(s.playersMessage())
		s.checkAllReady()
	}
}

// Connect runs the authenticate -> allocate -> register -> wait-for-start
// sequence for one joining player.
func (s *WaitingState) Connect(ctx context.Context, p *player.Player) error {
	if err := p.Authenticate(ctx); err != nil {
		return err
	}

	s.room.mu.Lock()
	slot, err := s.takeSlot()
	if err != nil {
		s.room.mu.Unlock()
		return err
	}
	p.SetInitPoint(slot)
	cell := s.room.GameMap.At(slot)
	cell.Type = gamemap.King
	cell.Player = p.ID
	cell.Power = s.room.defaultKingPower
	s.room.GameMap.Set(slot, cell)
	s.takeColor(p, noColor)
	s.room.RegisterPlayer(p)
	s.room.mu.Unlock()

	p.StartListening()
	s.room.Broadcast(s.playersMessage())

	for !s.isAllReady() {
		if err := s.gate.wait(ctx); err != nil {
			return err
		}
	}

	if s.room.PlayerCount() > 0 {
		s.room.TransitionTo(StatusInProgress)
	}
	return nil
}

func (s *WaitingState) Play(ctx context.Context, p *player.Player) error {
	return ErrRoomNotReady
}

func (s *WaitingState) AfterPlay(p *player.Player) error {
	return ErrRoomNotReady
}

func (s *WaitingState) Disconnect(p *player.Player) {
	s.room.mu.Lock()
	delete(s.room.players, p.ID)
	s.releaseColor(p)
	s.releaseSlot(p)
	s.room.mu.Unlock()

	s.room.Broadcast(s.playersMessage())
	s.checkAllReady()
}

func (s *WaitingState) Cleanup() {
	for _, p := range s.room.snapshotPlayers() {
		p.StopListening()
	}
}

// takeSlot pops a uniformly random free slot. Caller must hold room.mu.
func (s *WaitingState) takeSlot() (gamemap.Point, error) {
	if len(s.room.slots) == 0 {
		return gamemap.Point{}, ErrNoSlots
	}
	idx := rand.IntN(len(s.room.slots))
	slot := s.room.slots[idx]
	s.room.slots = append(s.room.slots[:idx], s.room.slots[idx+1:]...)
	return slot, nil
}

// releaseSlot returns a departing player's init point to the slot pool and
// resets the cell to an unowned SPAWN. Idempotent: clears the player's init
// point so a repeated Disconnect does not re-release the same slot. Caller
// must hold room.mu.
func (s *WaitingState) releaseSlot(p *player.Player) {
	initPoint, ok := p.InitPoint()
	if !ok {
		return
	}
	p.ClearInitPoint()
	s.room.slots = append(s.room.slots, initPoint)
	s.room.GameMap.Set(initPoint, gamemap.Cell{Type: gamemap.Spawn})
}

// takeColor assigns colorPos to p, or the first free color if colorPos is
// noColor. Caller must hold room.mu.
func (s *WaitingState) takeColor(p *player.Player, colorPos int) {
	if colorPos == noColor {
		colorPos = s.firstEmptyColor()
		if colorPos == noColor {
			return
		}
	}
	if colorPos < 0 || colorPos >= len(s.colors) || s.colors[colorPos] != nil {
		return
	}
	s.colors[colorPos] = p
	p.SetColor(colorPos)
}

func (s *WaitingState) firstEmptyColor() int {
	for i, c := range s.colors {
		if c == nil {
			return i
		}
	}
	return noColor
}

// releaseColor frees p's color, if any. Caller must hold room.mu.
func (s *WaitingState) releaseColor(p *player.Player) {
	if p.HasColor() && s.colors[p.Color] == p {
		s.colors[p.Color] = nil
		p.ClearColor()
	}
}

func (s *WaitingState) isAllReady() bool {
	s.room.mu.Lock()
	defer s.room.mu.Unlock()
	if len(s.room.players) <= 1 {
		return false
	}
	for _, p := range s.room.players {
		if !p.IsReady() {
			return false
		}
	}
	return true
}

func (s *WaitingState) checkAllReady() {
	if s.isAllReady() {
		s.gate.broadcast()
	}
}

func (s *WaitingState) playersMessage() player.PlayersMessage {
	players := s.room.snapshotPlayers()
	data := make([]player.Data, 0, len(players))
	for _, p := range players {
		data = append(data, player.Data{ID: p.ID, Username: p.Nick, Color: p.Color, Status: p.Status()})
	}
	return player.PlayersMessage{At: "players", Players: data}
}

// InProgressState drives the tick loop over a ClassicStrategy until the
// game is done.
type InProgressState struct {
	room     *Room
	strategy *ClassicStrategy
	loop     *TickLoop
}

func newInProgressState(room *Room) *InProgressState {
	strategy := NewClassicStrategy(room.GameMap, room.players)
	s := &InProgressState{room: room, strategy: strategy}
	strategy.SetOnTurnDone(s.broadcastState)
	strategy.SetOnGameDone(s.nextState)
	s.loop = NewTickLoop(strategy, room.RoomKey)
	return s
}

func (s *InProgressState) AllowReconnect() bool { return false }

func (s *InProgressState) Connect(ctx context.Context, p *player.Player) error {
	return ErrInGame
}

func (s *InProgressState) HandlePlayerMessage(p *player.Player, msg player.InMessage) {
	if msg.Kind != player.KindMove {
		return
	}
	var prev, current *gamemap.Point
	if msg.Move.Previous != nil {
		pt := msg.Move.Previous.ToPoint()
		prev = &pt
	}
	if msg.Move.Current != nil {
		pt := msg.Move.Current.ToPoint()
		current = &pt
	}
	p.Move(prev, current)
}

func (s *InProgressState) Play(ctx context.Context, p *player.Player) error {
	s.room.Broadcast(player.StartMessage{At: "start"})
	s.loop.Start()
	return s.loop.Wait(ctx)
}

func (s *InProgressState) AfterPlay(p *player.Player) error {
	return ErrRoomNotReady
}

func (s *InProgressState) Disconnect(p *player.Player) {
	s.room.mu.Lock()
	delete(s.room.players, p.ID)
	s.room.mu.Unlock()
}

func (s *InProgressState) Cleanup() {
	s.loop.Stop()
	for _, p := range s.room.snapshotPlayers() {
		p.StopListening()
	}
}

func (s *InProgressState) broadcastState() {
	s.room.Broadcast(func(p *player.Player) any {
		return s.buildUpdateMessage(p)
	})
}

func (s *InProgressState) buildUpdateMessage(p *player.Player) player.UpdateMessage {
	observeTerritorySize(p.Territory.Count())

	msg := player.UpdateMessage{
		At:   "update",
		Map:  p.POV,
		Turn: s.loop.CurrentTurn(),
		Stat: player.Stat{
			Player: player.Data{ID: p.ID, Username: p.Nick, Color: p.Color, Status: p.Status()},
			Game:   player.GameStat{Fields: p.Territory.Count(), Power: p.Power()},
		},
	}
	if p.Cursor != nil {
		wp := player.FromPoint(*p.Cursor)
		msg.Cursor = &wp
	}
	if p.PrevCursor != nil {
		wp := player.FromPoint(*p.PrevCursor)
		msg.PrevCursor = &wp
	}
	return msg
}

func (s *InProgressState) nextState() {
	s.room.TransitionTo(StatusFinished)
}

// FinishedState accepts no new connections or play requests; it only lets
// already-connected players drain their inbound loop.
type FinishedState struct {
	room *Room
}

func newFinishedState(room *Room) *FinishedState { return &FinishedState{room: room} }

func (s *FinishedState) AllowReconnect() bool { return false }

func (s *FinishedState) HandlePlayerMessage(p *player.Player, msg player.InMessage) {}

func (s *FinishedState) Connect(ctx context.Context, p *player.Player) error {
	return ErrRoomNotReady
}

func (s *FinishedState) Play(ctx context.Context, p *player.Player) error {
	return ErrRoomNotReady
}

func (s *FinishedState) AfterPlay(p *player.Player) error {
	p.WaitMessages()
	return nil
}

func (s *FinishedState) Disconnect(p *player.Player) {
	s.room.mu.Lock()
	delete(s.room.players, p.ID)
	s.room.mu.Unlock()
}

func (s *FinishedState) Cleanup() {
	for _, p := range s.room.snapshotPlayers() {
		p.StopListening()
	}
}
