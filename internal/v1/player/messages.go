package player

import (
	"encoding/json"
	"fmt"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

// WirePoint is a plain, untagged {row,col} pair as used on the client wire
// protocol (moves, cursors). Unlike gamemap.Point it never carries the
// directory blob's `"type":"Point"` discriminator.
type WirePoint struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ToPoint converts a wire point to the internal gamemap representation.
func (p WirePoint) ToPoint() gamemap.Point { return gamemap.Point{Row: p.Row, Col: p.Col} }

// FromPoint converts a gamemap point to its untagged wire representation.
func FromPoint(p gamemap.Point) WirePoint { return WirePoint{Row: p.Row, Col: p.Col} }

// envelope is decoded first to read the `at` discriminator before parsing
// the rest of an inbound message into its concrete type.
type envelope struct {
	At string `json:"at"`
}

// Inbound message kinds, grounded on app_types/in_messages.py +
// messages.py's ChatMessage.
const (
	KindAuth  = "auth"
	KindColor = "color"
	KindReady = "ready"
	KindMove  = "move"
	KindChat  = "chat"
)

type AuthMessage struct {
	At    string `json:"at"`
	Token string `json:"token"`
}

type ColorMessage struct {
	At    string `json:"at"`
	Color int    `json:"color"`
}

type ReadyMessage struct {
	At string `json:"at"`
}

type MoveMessage struct {
	At       string     `json:"at"`
	Previous *WirePoint `json:"previous"`
	Current  *WirePoint `json:"current"`
}

type ChatMessage struct {
	At        string `json:"at"`
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// InMessage is a parsed inbound message; exactly one of the typed fields is
// non-nil, selected by Kind.
type InMessage struct {
	Kind  string
	Auth  *AuthMessage
	Color *ColorMessage
	Ready *ReadyMessage
	Move  *MoveMessage
	Chat  *ChatMessage
}

// ParseInMessage decodes raw bytes into an InMessage by dispatching on the
// `at` discriminator.
func ParseInMessage(data []byte) (InMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return InMessage{}, fmt.Errorf("player: decode envelope: %w", err)
	}

	msg := InMessage{Kind: env.At}
	var err error
	switch env.At {
	case KindAuth:
		msg.Auth = &AuthMessage{}
		err = json.Unmarshal(data, msg.Auth)
	case KindColor:
		msg.Color = &ColorMessage{}
		err = json.Unmarshal(data, msg.Color)
	case KindReady:
		msg.Ready = &ReadyMessage{}
		err = json.Unmarshal(data, msg.Ready)
	case KindMove:
		msg.Move = &MoveMessage{}
		err = json.Unmarshal(data, msg.Move)
	case KindChat:
		msg.Chat = &ChatMessage{}
		err = json.Unmarshal(data, msg.Chat)
	default:
		return InMessage{}, fmt.Errorf("player: unknown message kind %q", env.At)
	}
	if err != nil {
		return InMessage{}, fmt.Errorf("player: decode %s message: %w", env.At, err)
	}
	return msg, nil
}

// Outbound message types, grounded on app_types/out_messages.py.

type Data struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Color    int    `json:"color"`
	Status   Status `json:"status"`
}

type PlayersMessage struct {
	At      string `json:"at"`
	Players []Data `json:"players"`
}

type AuthConfirmMessage struct {
	At     string `json:"at"`
	Status bool   `json:"status"`
}

type StartMessage struct {
	At string `json:"at"`
}

// GameStat is a player's per-tick territory/power summary.
type GameStat struct {
	Fields int `json:"fields"`
	Power  int `json:"power"`
}

// Stat mirrors the original's `(PlayerData, GameStat)` tuple: it marshals
// as a 2-element JSON array, not an object.
type Stat struct {
	Player Data
	Game   GameStat
}

func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Player, s.Game})
}

type UpdateMessage struct {
	At         string         `json:"at"`
	Map        gamemap.GameMap `json:"map"`
	Turn       int            `json:"turn"`
	Stat       Stat           `json:"stat"`
	Cursor     *WirePoint     `json:"cursor,omitempty"`
	PrevCursor *WirePoint     `json:"prev_cursor,omitempty"`
}
