// Package room implements one game room's aggregate state machine: the
// authoritative map, per-player bookkeeping, the waiting/in-progress/
// finished lifecycle, and the fixed-cadence simulation loop that drives
// in-progress rooms. Grounded module-for-module on original_source's
// services/room/*.py.
package room

import "errors"

// ErrRoomNotReady is returned for an operation invalid in the current
// lifecycle state (e.g. play() before all players are ready).
var ErrRoomNotReady = errors.New("room: not ready for this operation")

// ErrNoSlots is returned when a room has no free spawn slot left.
var ErrNoSlots = errors.New("room: no slots available")

// ErrInGame is returned when a player tries to connect to a room that has
// already started.
var ErrInGame = errors.New("room: game already in progress")
