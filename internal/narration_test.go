package internal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waustin14/storyfill/internal"
)

func newRevealedRoom(t *testing.T) (*internal.Room, *internal.Player) {
	t.Helper()
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)
	fillAllPrompts(t, room, []string{host.ID, guest.ID})
	_, err = room.Reveal(host.Token)
	require.Nil(t, err)
	return room, host
}

func TestRequestNarrationOnlyAfterReveal(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	facade := internal.NewNarrationFacade()
	_, narrErr := room.RequestNarration(host.Token, facade)
	require.NotNil(t, narrErr)
	assert.Equal(t, internal.KindStateConflict, narrErr.Kind)
}

func TestRequestNarrationRequiresHostToken(t *testing.T) {
	room, host := newRevealedRoom(t)
	facade := internal.NewNarrationFacade()

	_, err := room.RequestNarration("not-the-host-token", facade)
	require.NotNil(t, err)
	assert.Equal(t, internal.KindAuth, err.Kind)

	_, err = room.RequestNarration("", facade)
	require.NotNil(t, err)
	assert.Equal(t, internal.KindAuth, err.Kind)

	_, err = room.RequestNarration(host.Token, facade)
	assert.Nil(t, err)
}

func TestRequestNarrationIsIdempotentPerRound(t *testing.T) {
	room, host := newRevealedRoom(t)
	facade := internal.NewNarrationFacade()

	first, err := room.RequestNarration(host.Token, facade)
	require.Nil(t, err)
	assert.Equal(t, internal.NarrationReady, first.Status)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.AudioURL, "a ready narration must carry a playable audio URL")

	second, err := room.RequestNarration(host.Token, facade)
	require.Nil(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRequestNarrationResolvesFromCacheOnIdenticalStory(t *testing.T) {
	facade := internal.NewNarrationFacade()

	roomA, hostA := newRevealedRoom(t)
	firstView, err := roomA.RequestNarration(hostA.Token, facade)
	require.Nil(t, err)
	assert.False(t, firstView.FromCache)

	roomB, hostB := newTestRoom(t)
	guestB, _, _ := roomB.Join("Guest")
	_, err = roomB.Start(hostB.Token)
	require.Nil(t, err)
	fillAllPrompts(t, roomB, []string{hostB.ID, guestB.ID})
	_, err = roomB.Reveal(hostB.Token)
	require.Nil(t, err)

	secondView, err := roomB.RequestNarration(hostB.Token, facade)
	require.Nil(t, err)
	assert.True(t, secondView.FromCache, "identical rendered text should resolve from the synthesis cache")
}

func TestUpdatePlaybackRequiresReadyNarration(t *testing.T) {
	room, host := newRevealedRoom(t)

	_, err := room.UpdatePlayback("play")
	require.NotNil(t, err)
	assert.Equal(t, internal.KindNotFound, err.Kind)

	facade := internal.NewNarrationFacade()
	_, err = room.RequestNarration(host.Token, facade)
	require.Nil(t, err)

	view, err := room.UpdatePlayback("play")
	require.Nil(t, err)
	assert.Equal(t, internal.PlaybackPlaying, view.Playback)

	view, err = room.UpdatePlayback("pause")
	require.Nil(t, err)
	assert.Equal(t, internal.PlaybackPaused, view.Playback)

	_, err = room.UpdatePlayback("not-a-real-action")
	require.NotNil(t, err)
	assert.Equal(t, internal.KindValidation, err.Kind)
}

func TestGetNarrationNotFoundBeforeRequest(t *testing.T) {
	room, _ := newRevealedRoom(t)

	_, err := room.GetNarration()
	require.NotNil(t, err)
	assert.Equal(t, internal.KindNotFound, err.Kind)
}

func TestNarrationClearedOnReplay(t *testing.T) {
	room, host := newRevealedRoom(t)
	facade := internal.NewNarrationFacade()

	_, err := room.RequestNarration(host.Token, facade)
	require.Nil(t, err)

	_, err = room.Replay(host.Token)
	require.Nil(t, err)

	_, err = room.GetNarration()
	require.NotNil(t, err)
	assert.Equal(t, internal.KindNotFound, err.Kind)
}

func TestNarrationFacadeSynthesisIsFast(t *testing.T) {
	room, host := newRevealedRoom(t)
	facade := internal.NewNarrationFacade()

	start := time.Now()
	_, err := room.RequestNarration(host.Token, facade)
	require.Nil(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
