// Package roommanager caches live rooms on this replica and drives a
// player through the join/play/cleanup sequence against them, composing
// the room and directory packages the way the teacher's session hub
// composes its registry with a token validator. Grounded on
// original_source's services/room/room_manager.py.
package roommanager

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/directory"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/room"
)

// ErrWrongReplica is returned when the room's sharding record points at a
// different replica than this one.
var ErrWrongReplica = errors.New("roommanager: room is owned by another replica")

// Config carries the room-construction defaults sourced from service
// configuration.
type Config struct {
	DefaultKingPower   int
	DefaultCastlePower int
	ColorsCount        int
}

// Manager is the per-replica room cache. Safe for concurrent use.
type Manager struct {
	dir       *directory.Directory
	cfg       Config
	replicaID string

	mu    sync.Mutex
	rooms map[string]*room.Room
}

// New builds a Manager backed by dir.
func New(dir *directory.Directory, cfg Config, replicaID string) *Manager {
	return &Manager{dir: dir, cfg: cfg, replicaID: replicaID, rooms: make(map[string]*room.Room)}
}

// SaveRoom persists a freshly generated map/metadata blob and returns its
// room key, the admin-API entry point for minting a new joinable room.
func (m *Manager) SaveRoom(ctx context.Context, mapAndMeta gamemap.MapAndMeta) (string, error) {
	return m.dir.Rooms.SaveRoom(ctx, mapAndMeta)
}

// GetOrCreateRoom returns the cached Room for roomKey, loading and
// constructing it on a cache miss. A room already claimed by another
// replica is rejected with ErrWrongReplica rather than constructed twice.
func (m *Manager) GetOrCreateRoom(ctx context.Context, roomKey string) (*room.Room, error) {
	replica, err := m.dir.Shards.GetRoomReplica(ctx, roomKey)
	if err != nil {
		return nil, err
	}
	if replica != "" && replica != m.replicaID {
		return nil, ErrWrongReplica
	}

	m.mu.Lock()
	if r, ok := m.rooms[roomKey]; ok {
		m.mu.Unlock()
		return r, nil
	}

	mapAndMeta, err := m.dir.Rooms.LoadRoom(ctx, roomKey)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	r := room.New(roomKey, mapAndMeta.Map, mapAndMeta.Meta,
		m.cfg.DefaultKingPower, m.cfg.DefaultCastlePower, m.cfg.ColorsCount)
	m.rooms[roomKey] = r
	m.mu.Unlock()

	metrics.ActiveRooms.Inc()

	if err := m.dir.Shards.SetRoomReplica(ctx, roomKey); err != nil {
		logging.Error(ctx, "failed to claim room replica",
			zap.String("room_id", roomKey), zap.Error(err))
	}
	maxPlayers := directory.MaxPlayersFromSpawns(mapAndMeta.Meta)
	if err := m.dir.Lobby.AddRoom(ctx, roomKey, maxPlayers, float64(time.Now().Unix())); err != nil {
		logging.Error(ctx, "failed to list room in lobby",
			zap.String("room_id", roomKey), zap.Error(err))
	}
	return r, nil
}

// PlayWithRoom runs one player through the join -> wait-for-start ->
// play -> drain sequence, keeping the public lobby listing in sync. Any
// directory failure aborts the sequence and propagates, matching the
// original's unguarded lobby calls outside of cleanup.
func (m *Manager) PlayWithRoom(ctx context.Context, r *room.Room, p *player.Player) error {
	if err := m.dir.Lobby.AddPlayer(ctx, r.RoomKey); err != nil {
		return err
	}

	if err := r.WaitAllReady(ctx, p); err != nil {
		if rmErr := m.dir.Lobby.RemovePlayer(ctx, r.RoomKey); rmErr != nil {
			return rmErr
		}
		return err
	}
	if err := m.dir.Lobby.RemoveRoom(ctx, r.RoomKey); err != nil {
		return err
	}

	if err := r.Play(ctx, p); err != nil {
		return err
	}
	return r.AfterPlay(p)
}

// Cleanup tears down a player's (and, if no longer needed, a room's)
// state. Every step is best-effort: a failure is logged and the next
// step still runs, mirroring the original's independent try/except
// blocks so one failed Redis call never skips local cleanup.
func (m *Manager) Cleanup(ctx context.Context, r *room.Room, p *player.Player) {
	if r != nil {
		if err := m.dir.Lobby.RemovePlayer(ctx, r.RoomKey); err != nil {
			logging.Error(ctx, "error removing player from lobby",
				zap.String("room_id", r.RoomKey), zap.Error(err))
		}
	}

	if p != nil {
		p.StopListening()
	}

	if p != nil && r != nil {
		r.Disconnect(p)
	}

	if r == nil {
		return
	}
	if r.AllowReconnect() && r.PlayerCount() > 0 {
		return
	}

	if err := m.dir.Rooms.RemoveRoom(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "error clearing room redis state",
			zap.String("room_id", r.RoomKey), zap.Error(err))
	}
	if err := m.dir.Shards.RemoveRoomReplica(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "error clearing room redis state",
			zap.String("room_id", r.RoomKey), zap.Error(err))
	}
	if err := m.dir.Lobby.RemoveRoom(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "error clearing room redis state",
			zap.String("room_id", r.RoomKey), zap.Error(err))
	}

	r.Cleanup()

	m.mu.Lock()
	delete(m.rooms, r.RoomKey)
	m.mu.Unlock()
	metrics.ActiveRooms.Dec()
}
