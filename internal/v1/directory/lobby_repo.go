package directory

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/set"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
)

const lobbyKey = "lobby:rooms"
const lobbyRoomPrefix = "lobby:room:"

// LobbyEntry is a joinable room's public listing, grounded on
// original_source's LobbyRoom TypedDict.
type LobbyEntry struct {
	Name           string `json:"name"`
	MaxPlayers     int    `json:"max_players"`
	CurrentPlayers int    `json:"current_players"`
}

func zMember(score float64, member string) redis.Z {
	return redis.Z{Score: score, Member: member}
}

// LobbyRepo maintains the public list of pre-start, joinable rooms: a
// sorted set by creation time plus a per-room population hash. Grounded
// on original_source's LobbyRepository.
type LobbyRepo struct {
	client *Client
}

// NewLobbyRepo builds a LobbyRepo.
func NewLobbyRepo(client *Client) *LobbyRepo { return &LobbyRepo{client: client} }

func (l *LobbyRepo) makeKey(roomKey string) string { return lobbyRoomPrefix + roomKey }

// AddRoom lists roomKey in the lobby with zero current players.
func (l *LobbyRepo) AddRoom(ctx context.Context, roomKey string, maxPlayers int, createdAtUnix float64) error {
	defer measureOp("lobby_add_room")()
	_, err := l.client.execute(ctx, "lobby_add_room", func() (any, error) {
		pipe := l.client.rdb.TxPipeline()
		pipe.HSet(ctx, l.makeKey(roomKey), map[string]any{
			"name":            roomKey,
			"max_players":     maxPlayers,
			"current_players": 0,
		})
		pipe.ZAdd(ctx, lobbyKey, zMember(createdAtUnix, roomKey))
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

// AddPlayer increments the room's current-player count.
func (l *LobbyRepo) AddPlayer(ctx context.Context, roomKey string) error {
	defer measureOp("lobby_add_player")()
	_, err := l.client.execute(ctx, "lobby_add_player", func() (any, error) {
		return nil, l.client.rdb.HIncrBy(ctx, l.makeKey(roomKey), "current_players", 1).Err()
	})
	return err
}

// RemovePlayer decrements the room's current-player count.
func (l *LobbyRepo) RemovePlayer(ctx context.Context, roomKey string) error {
	defer measureOp("lobby_remove_player")()
	_, err := l.client.execute(ctx, "lobby_remove_player", func() (any, error) {
		return nil, l.client.rdb.HIncrBy(ctx, l.makeKey(roomKey), "current_players", -1).Err()
	})
	return err
}

// GetRooms returns up to limit joinable rooms, most-recently-created first.
func (l *LobbyRepo) GetRooms(ctx context.Context, offset, limit int) ([]LobbyEntry, error) {
	defer measureOp("lobby_get_rooms")()

	result, err := l.client.execute(ctx, "lobby_get_rooms", func() (any, error) {
		return l.client.rdb.ZRevRange(ctx, lobbyKey, int64(offset), int64(offset+limit-1)).Result()
	})
	if err != nil {
		return nil, err
	}
	roomKeys := result.([]string)

	entries := make([]LobbyEntry, 0, len(roomKeys))
	for _, roomKey := range roomKeys {
		data, err := l.client.execute(ctx, "lobby_get_room", func() (any, error) {
			return l.client.rdb.HGetAll(ctx, l.makeKey(roomKey)).Result()
		})
		if err != nil {
			continue
		}
		fields := data.(map[string]string)
		if len(fields) == 0 {
			continue
		}
		maxPlayers, _ := strconv.Atoi(fields["max_players"])
		currentPlayers, _ := strconv.Atoi(fields["current_players"])
		entries = append(entries, LobbyEntry{
			Name:           fields["name"],
			MaxPlayers:     maxPlayers,
			CurrentPlayers: currentPlayers,
		})
	}
	return entries, nil
}

// RemoveRoom delists roomKey, removing both its hash and sorted-set entry.
func (l *LobbyRepo) RemoveRoom(ctx context.Context, roomKey string) error {
	defer measureOp("lobby_remove_room")()
	_, err := l.client.execute(ctx, "lobby_remove_room", func() (any, error) {
		pipe := l.client.rdb.TxPipeline()
		pipe.Del(ctx, l.makeKey(roomKey))
		pipe.ZRem(ctx, lobbyKey, roomKey)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

// MaxPlayersFromSpawns counts distinct SPAWN points, used as a room's
// capacity. Deduplicated since a malformed map blob could list the same
// coordinate twice.
func MaxPlayersFromSpawns(meta gamemap.MapMeta) int {
	return set.New(meta.PointsOfInterest[gamemap.Spawn]...).Len()
}
