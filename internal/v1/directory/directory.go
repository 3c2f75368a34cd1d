package directory

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/config"
)

// Directory bundles the three repositories RoomManager needs: the room
// blob store, the replica-ownership index, and the public lobby index.
type Directory struct {
	Rooms  *RoomRepo
	Shards *ShardingRepo
	Lobby  *LobbyRepo
	Pinger *Client
}

// New wires a Directory from validated config and a Redis client.
func New(cfg *config.Config, rdb *redis.Client) *Directory {
	client := NewClient(rdb)
	ttl := time.Duration(cfg.RoomTTLSeconds) * time.Second

	return &Directory{
		Rooms:  NewRoomRepo(client, ttl, cfg.RoomKeyAlphabet),
		Shards: NewShardingRepo(client, ttl, cfg.ReplicaID),
		Lobby:  NewLobbyRepo(client),
		Pinger: client,
	}
}
