package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/directory"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/room"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/roommanager"
)

func TestCloseCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"wrong replica", roommanager.ErrWrongReplica, 1008},
		{"no slots", room.ErrNoSlots, 4010},
		{"in game", room.ErrInGame, 4020},
		{"token invalid", player.ErrTokenInvalid, 4030},
		{"wrong auth flow", player.ErrWrongAuthFlow, 4031},
		{"room not found", directory.ErrRoomNotFound, 4040},
		{"unrecognized error", errors.New("boom"), 4999},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, closeCodeFor(tc.err))
		})
	}
}

func TestCloseCodeFor_WrappedErrorsStillMatch(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), room.ErrInGame)
	assert.Equal(t, 4020, closeCodeFor(wrapped))
}
