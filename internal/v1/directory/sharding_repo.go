package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const shardPrefix = "__shard:rooms:"

// ShardingRepo tracks which replica currently owns a live room, grounded
// on original_source's ShardingRepo.
type ShardingRepo struct {
	client    *Client
	ttl       time.Duration
	replicaID string
}

// NewShardingRepo builds a ShardingRepo for this replica.
func NewShardingRepo(client *Client, ttl time.Duration, replicaID string) *ShardingRepo {
	return &ShardingRepo{client: client, ttl: ttl, replicaID: replicaID}
}

func (s *ShardingRepo) makeKey(roomKey string) string { return shardPrefix + roomKey }

// GetRoomReplica returns the replica id owning roomKey, or "" if unset.
func (s *ShardingRepo) GetRoomReplica(ctx context.Context, roomKey string) (string, error) {
	defer measureOp("get_room_replica")()
	result, err := s.client.execute(ctx, "get_room_replica", func() (any, error) {
		return s.client.rdb.Get(ctx, s.makeKey(roomKey)).Result()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return result.(string), nil
}

// SetRoomReplica claims roomKey for this replica.
func (s *ShardingRepo) SetRoomReplica(ctx context.Context, roomKey string) error {
	defer measureOp("set_room_replica")()
	_, err := s.client.execute(ctx, "set_room_replica", func() (any, error) {
		return nil, s.client.rdb.SetEx(ctx, s.makeKey(roomKey), s.replicaID, s.ttl).Err()
	})
	return err
}

// RemoveRoomReplica releases roomKey's replica claim.
func (s *ShardingRepo) RemoveRoomReplica(ctx context.Context, roomKey string) error {
	defer measureOp("remove_room_replica")()
	_, err := s.client.execute(ctx, "remove_room_replica", func() (any, error) {
		return nil, s.client.rdb.Del(ctx, s.makeKey(roomKey)).Err()
	})
	return err
}
