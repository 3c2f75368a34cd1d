package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

const pkKey = "__pk:rooms"
const roomKeyPrefix = "__rooms:"

// RoomRepo stores and loads the immutable MapAndMeta blob for each room,
// keyed by a short opaque room key minted from a monotonic counter.
// Grounded on original_source's RoomRepo.
type RoomRepo struct {
	client    *Client
	ttl       time.Duration
	alphabet  string
	minKeyLen int
}

// NewRoomRepo builds a RoomRepo using the given TTL and room-key alphabet.
func NewRoomRepo(client *Client, ttl time.Duration, alphabet string) *RoomRepo {
	return &RoomRepo{client: client, ttl: ttl, alphabet: alphabet, minKeyLen: 3}
}

func (r *RoomRepo) makeKey(roomKey string) string { return roomKeyPrefix + roomKey }

// SaveRoom allocates the next room key and persists the blob, returning
// the key.
func (r *RoomRepo) SaveRoom(ctx context.Context, mapAndMeta gamemap.MapAndMeta) (string, error) {
	defer measureOp("save_room")()

	result, err := r.client.execute(ctx, "save_room", func() (any, error) {
		return r.client.rdb.Incr(ctx, pkKey).Result()
	})
	if err != nil {
		return "", fmt.Errorf("directory: allocate room id: %w", err)
	}
	pk := result.(int64)

	roomKey, err := encodeRoomKey(int(pk), r.alphabet, r.minKeyLen)
	if err != nil {
		return "", fmt.Errorf("directory: derive room key: %w", err)
	}

	data, err := json.Marshal(mapAndMeta)
	if err != nil {
		return "", fmt.Errorf("directory: encode room blob: %w", err)
	}

	_, err = r.client.execute(ctx, "save_room", func() (any, error) {
		return nil, r.client.rdb.SetEx(ctx, r.makeKey(roomKey), data, r.ttl).Err()
	})
	if err != nil {
		return "", fmt.Errorf("directory: persist room blob: %w", err)
	}
	return roomKey, nil
}

// LoadRoom fetches and decodes the MapAndMeta blob for roomKey.
func (r *RoomRepo) LoadRoom(ctx context.Context, roomKey string) (gamemap.MapAndMeta, error) {
	defer measureOp("load_room")()

	result, err := r.client.execute(ctx, "load_room", func() (any, error) {
		return r.client.rdb.Get(ctx, r.makeKey(roomKey)).Result()
	})
	if err != nil {
		return gamemap.MapAndMeta{}, notFoundOrErr(err)
	}

	var mapAndMeta gamemap.MapAndMeta
	if err := json.Unmarshal([]byte(result.(string)), &mapAndMeta); err != nil {
		return gamemap.MapAndMeta{}, fmt.Errorf("directory: decode room blob: %w", err)
	}
	return mapAndMeta, nil
}

// RemoveRoom deletes the blob for roomKey.
func (r *RoomRepo) RemoveRoom(ctx context.Context, roomKey string) error {
	defer measureOp("remove_room")()
	_, err := r.client.execute(ctx, "remove_room", func() (any, error) {
		return nil, r.client.rdb.Del(ctx, r.makeKey(roomKey)).Err()
	})
	return err
}
