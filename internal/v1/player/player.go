// Package player implements a single connected player: the WebSocket
// transport, the auth handshake, the inbound message loop, and the
// per-player territory/visibility/point-of-view state. Grounded on the
// teacher's internal/v1/session/client.go for the goroutine/channel shape
// and on original_source's services/player.py for the domain semantics.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/territory"
)

// ErrWrongAuthFlow is returned when the first inbound message is not `auth`.
var ErrWrongAuthFlow = errors.New("player: first message must be an auth message")

// ErrTokenInvalid is returned when the auth service rejects the token.
var ErrTokenInvalid = errors.New("player: token is not valid")

const readTimeout = 1 * time.Second
const writeWait = 10 * time.Second

// Connection is the narrow WebSocket surface a Player needs; satisfied by
// *websocket.Conn in production and by a fake in tests, mirroring the
// teacher's wsConnection interface.
type Connection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// TokenValidator validates a bearer token against the external auth
// service. Implemented by internal/v1/auth.Validator.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) error
}

// MessageHandler dispatches a parsed inbound message for a player. Supplied
// by the owning room.
type MessageHandler func(p *Player, msg InMessage)

// DisconnectHandler is invoked when a player's inbound loop exits because of
// a transport failure. Not invoked on a clean StopListening.
type DisconnectHandler func(p *Player)

// Player is one connected user's state within a room for the lifetime of
// one connection.
type Player struct {
	ID       int
	Nick     string
	Color    int
	hasColor bool

	status Status

	initPoint  gamemap.Point
	hasInit    bool
	Territory  *territory.Territory
	Visibility *territory.Visibility
	Moves      moveQueue
	Cursor     *gamemap.Point
	PrevCursor *gamemap.Point
	POV        gamemap.GameMap

	conn      Connection
	sendMu    sync.RWMutex
	send      chan []byte
	closed    bool
	validator TokenValidator

	onMessage    MessageHandler
	onDisconnect DisconnectHandler

	listening atomic.Bool
	done      chan struct{}
}

// New constructs a Player bound to a connection and sized for mapHeight x
// mapWidth.
func New(id int, nick string, mapHeight, mapWidth int, conn Connection, validator TokenValidator) *Player {
	return &Player{
		ID:         id,
		Nick:       nick,
		status:     NotReady,
		Territory:  territory.New(mapWidth, mapHeight),
		Visibility: territory.NewVisibility(mapWidth, mapHeight),
		POV:        gamemap.NewEmptyMap(mapHeight, mapWidth),
		conn:       conn,
		send:       make(chan []byte, 64),
		validator:  validator,
		done:       make(chan struct{}),
	}
}

func (p *Player) Status() Status { return p.status }
func (p *Player) SetReady()      { p.status = Ready }
func (p *Player) SetStop()       { p.status = Stopped }
func (p *Player) IsReady() bool  { return p.status == Ready }

// SetLose marks the player LOSER and clears their territory, grounded on
// Player.set_lose.
func (p *Player) SetLose() {
	p.status = Loser
	p.Territory.Clear()
}

func (p *Player) SetWin() { p.status = Winner }

// InitPoint returns the player's spawn point. ok is false if unset.
func (p *Player) InitPoint() (gamemap.Point, bool) { return p.initPoint, p.hasInit }

// SetInitPoint assigns the spawn point and adds it to the territory.
func (p *Player) SetInitPoint(pt gamemap.Point) {
	p.initPoint = pt
	p.hasInit = true
	p.Territory.Add(pt)
}

// ClearInitPoint unassigns the spawn point, making a repeated slot release
// a no-op.
func (p *Player) ClearInitPoint() { p.hasInit = false }

// SetMessageHandler wires the room's dispatcher.
func (p *Player) SetMessageHandler(h MessageHandler) { p.onMessage = h }

// SetDisconnectHandler wires the room's cleanup hook.
func (p *Player) SetDisconnectHandler(h DisconnectHandler) { p.onDisconnect = h }

// SetColor assigns a color slot to the player.
func (p *Player) SetColor(color int) { p.Color = color; p.hasColor = true }

// HasColor reports whether a color has been assigned.
func (p *Player) HasColor() bool { return p.hasColor }

// ClearColor releases the player's color assignment.
func (p *Player) ClearColor() { p.hasColor = false }

// Authenticate implements the auth handshake contract: the first inbound
// message must be `auth`, carrying a bearer token validated against the
// external auth service. On success it replies with an auth-confirm
// message.
func (p *Player) Authenticate(ctx context.Context) error {
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return err
	}
	msg, err := ParseInMessage(data)
	if err != nil || msg.Kind != KindAuth {
		return ErrWrongAuthFlow
	}

	if err := p.validator.ValidateToken(ctx, msg.Auth.Token); err != nil {
		return ErrTokenInvalid
	}

	return p.Send(AuthConfirmMessage{At: KindAuth, Status: true})
}

// StartListening launches the inbound read loop in its own goroutine.
func (p *Player) StartListening() {
	p.listening.Store(true)
	go p.readLoop()
}

// StopListening marks the player stopped and blocks until the inbound loop
// has exited. A no-op if StartListening was never called, since nothing
// will ever close done in that case.
func (p *Player) StopListening() {
	p.status = Stopped
	if !p.listening.Load() {
		return
	}
	<-p.done
}

// WaitMessages blocks until the inbound loop has exited without requesting
// it to stop (used by the Finished state's afterPlay, which only drains). A
// no-op if StartListening was never called.
func (p *Player) WaitMessages() {
	if !p.listening.Load() {
		return
	}
	<-p.done
}

// readLoop reads one message at a time with a 1-second deadline; a timeout
// is not an error, it simply gives the loop a chance to observe Stopped.
// onDisconnect fires only on a transport failure, mirroring the original
// _receive_loop, which does not treat a clean stop as a disconnect.
func (p *Player) readLoop() {
	defer close(p.done)

	for p.status != Stopped {
		_ = p.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if p.onDisconnect != nil {
				p.onDisconnect(p)
			}
			return
		}

		msg, err := ParseInMessage(data)
		if err != nil {
			logging.Warn(context.Background(), "dropping unparseable message",
				zap.Int("player_id", p.ID), zap.Error(err))
			continue
		}
		if p.onMessage != nil {
			p.onMessage(p, msg)
		}
	}
}

// Send serializes an outbound message as compact JSON text and queues it
// on the connection's writer. Non-blocking: a full send buffer drops the
// message rather than stalling the room's broadcast fan-out. A no-op once
// Close has run.
func (p *Player) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return nil
	}
	select {
	case p.send <- data:
	default:
		logging.Warn(context.Background(), "player send buffer full, dropping message", zap.Int("player_id", p.ID))
	}
	return nil
}

// WritePump drains the send channel onto the connection. Runs in its own
// goroutine for the lifetime of the connection.
func (p *Player) WritePump() {
	defer p.conn.Close()
	for data := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// Close releases the outbound writer goroutine and the underlying
// connection. Safe to call more than once.
func (p *Player) Close() {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}

// Move enqueues a move pair, or resets the queue if either endpoint is nil.
func (p *Player) Move(prev, current *gamemap.Point) {
	if prev != nil && current != nil {
		p.Moves.Enqueue(*prev, *current)
		return
	}
	p.ResetMoves()
}

// GetMovePoints dequeues the next move pair, non-blocking.
func (p *Player) GetMovePoints() (previous, current gamemap.Point, ok bool) {
	pair, ok := p.Moves.Dequeue()
	if !ok {
		return gamemap.Point{}, gamemap.Point{}, false
	}
	return pair.Previous, pair.Current, true
}

// ResetMoves clears the move queue and cursors.
func (p *Player) ResetMoves() {
	p.Moves.Reset()
	p.Cursor = nil
	p.PrevCursor = nil
}

// Power sums the power of every cell the player holds, read from their own
// point-of-view map (mirrors Player.power in the original, which sums over
// pov rather than the authoritative map).
func (p *Player) Power() int {
	total := 0
	for _, pt := range p.Territory.Points() {
		total += p.POV[pt.Row][pt.Col].Power
	}
	return total
}

// TakeoverKingdom merges other's territory into p and marks other LOSER,
// grounded on Player.takeover_kingdom.
func (p *Player) TakeoverKingdom(other *Player) {
	p.Territory.Merge(other.Territory)
	other.SetLose()
}
