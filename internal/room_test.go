package internal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waustin14/storyfill/internal"
)

func testRoomConfig() internal.RoomConfig {
	return internal.RoomConfig{
		MinPlayersToStart: 2,
		MaxPlayersPerRoom: 4,
		PromptsPerPlayer:  2,
		DisconnectGrace:   50 * time.Millisecond,
		RoomTTL:           time.Hour,
		ShareTTL:          time.Hour,
	}
}

func newTestRoom(t *testing.T) (*internal.Room, *internal.Player) {
	t.Helper()
	bus := internal.NewBus()
	room, host, err := internal.NewRoom(internal.NewRoomID(), "ABC123", "t-forest-mishap", testRoomConfig(), bus, "Host")
	require.Nil(t, err)
	require.NotNil(t, room)
	require.NotNil(t, host)
	return room, host
}

func TestNewRoomSeatsHostInLobby(t *testing.T) {
	room, host := newTestRoom(t)

	snap := room.Snapshot()
	assert.Equal(t, internal.StateLobbyOpen, snap.State)
	assert.False(t, snap.Locked)
	assert.Len(t, snap.Players, 1)
	assert.Equal(t, host.ID, snap.HostPlayerID)
	assert.True(t, snap.Players[0].IsHost)
}

func TestNewRoomRejectsUnknownTemplate(t *testing.T) {
	bus := internal.NewBus()
	room, host, err := internal.NewRoom(internal.NewRoomID(), "ABC123", "does-not-exist", testRoomConfig(), bus, "Host")
	assert.Nil(t, room)
	assert.Nil(t, host)
	require.NotNil(t, err)
}

func TestRoomJoin(t *testing.T) {
	room, _ := newTestRoom(t)

	p2, snap, err := room.Join("Guest")
	require.Nil(t, err)
	assert.Equal(t, "Guest", p2.DisplayName)
	assert.Len(t, snap.Players, 2)
	assert.False(t, p2.IsHost)
}

func TestRoomJoinRejectedWhenLocked(t *testing.T) {
	room, host := newTestRoom(t)

	_, err := room.SetLocked(host.Token, true)
	require.Nil(t, err)

	_, _, joinErr := room.Join("Guest")
	require.NotNil(t, joinErr)
	assert.Equal(t, internal.KindLocked, joinErr.Kind)
}

func TestRoomJoinRejectedWhenFull(t *testing.T) {
	room, _ := newTestRoom(t) // MaxPlayersPerRoom: 4, host already seated

	for i := 0; i < 3; i++ {
		_, _, err := room.Join("Guest")
		require.Nil(t, err)
	}

	_, _, err := room.Join("OneTooMany")
	require.NotNil(t, err)
	assert.Equal(t, internal.KindFull, err.Kind)
}

func TestRoomJoinRejectedOncePromptingStarted(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")

	_, err := room.Start(host.Token)
	require.Nil(t, err)

	_, _, joinErr := room.Join("Latecomer")
	require.NotNil(t, joinErr)
	assert.Equal(t, internal.KindStateConflict, joinErr.Kind)
}

func TestRoomStartRequiresHostToken(t *testing.T) {
	room, _ := newTestRoom(t)
	_, _, _ = room.Join("Guest")

	_, err := room.Start("not-the-host-token")
	require.NotNil(t, err)
	assert.Equal(t, internal.KindAuth, err.Kind)
}

func TestRoomStartRequiresMinimumPlayers(t *testing.T) {
	room, host := newTestRoom(t) // only the host is seated

	_, err := room.Start(host.Token)
	require.NotNil(t, err)
	assert.Equal(t, internal.KindValidation, err.Kind)
}

func TestRoomStartDealsPrompts(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")

	snap, err := room.Start(host.Token)
	require.Nil(t, err)
	assert.Equal(t, internal.StatePrompting, snap.State)
	assert.Greater(t, snap.Progress.TotalPrompts, 0)
	assert.Equal(t, 0, snap.Progress.SubmittedPrompts)

	hostPrompts, err := room.PromptsFor(host.ID)
	require.Nil(t, err)
	guestPrompts, err := room.PromptsFor(guest.ID)
	require.Nil(t, err)
	assert.Equal(t, snap.Progress.TotalPrompts, len(hostPrompts)+len(guestPrompts))
}

func TestRoomSubmitPromptAdvancesToAwaitingReveal(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	var snap internal.Snapshot
	for _, playerID := range []string{host.ID, guest.ID} {
		prompts, perr := room.PromptsFor(playerID)
		require.Nil(t, perr)
		for _, p := range prompts {
			snap, err = room.SubmitPrompt(playerID, p.ID, "ducks")
			require.Nil(t, err)
		}
	}

	assert.Equal(t, internal.StateAwaitingReveal, snap.State)
	assert.True(t, room.ReadyToReveal())
}

func TestRoomSubmitPromptRejectsWrongAssignee(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	hostPrompts, _ := room.PromptsFor(host.ID)
	require.NotEmpty(t, hostPrompts)

	_, submitErr := room.SubmitPrompt(guest.ID, hostPrompts[0].ID, "ducks")
	require.NotNil(t, submitErr)
	assert.Equal(t, internal.KindAuth, submitErr.Kind)
}

func TestRoomSubmitPromptRejectsBlockedContent(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	hostPrompts, _ := room.PromptsFor(host.ID)
	require.NotEmpty(t, hostPrompts)

	_, submitErr := room.SubmitPrompt(host.ID, hostPrompts[0].ID, "shit")
	require.NotNil(t, submitErr)
	assert.Equal(t, internal.KindValidation, submitErr.Kind)

	// the prompt is still unsubmitted and open to retry
	prompts, _ := room.PromptsFor(host.ID)
	assert.Len(t, prompts, len(hostPrompts))
}

func fillAllPrompts(t *testing.T, room *internal.Room, playerIDs []string) {
	t.Helper()
	for _, playerID := range playerIDs {
		prompts, err := room.PromptsFor(playerID)
		require.Nil(t, err)
		for _, p := range prompts {
			_, err := room.SubmitPrompt(playerID, p.ID, "ducks")
			require.Nil(t, err)
		}
	}
}

func TestRoomRevealRendersStory(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)
	fillAllPrompts(t, room, []string{host.ID, guest.ID})

	snap, err := room.Reveal(host.Token)
	require.Nil(t, err)
	assert.Equal(t, internal.StateRevealed, snap.State)
	assert.Contains(t, snap.RevealedStory, "ducks")
}

func TestRoomRevealRejectedBeforeAwaitingReveal(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	_, revealErr := room.Reveal(host.Token)
	require.NotNil(t, revealErr)
	assert.Equal(t, internal.KindStateConflict, revealErr.Kind)
}

func TestRoomStoryUnreachableAfterReplay(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)
	fillAllPrompts(t, room, []string{host.ID, guest.ID})

	revealSnap, err := room.Reveal(host.Token)
	require.Nil(t, err)
	oldRoundID := revealSnap.RoundID

	story, err := room.Story(oldRoundID)
	require.Nil(t, err)
	assert.NotEmpty(t, story)

	_, err = room.Replay(host.Token)
	require.Nil(t, err)

	_, storyErr := room.Story(oldRoundID)
	require.NotNil(t, storyErr)
	assert.Equal(t, internal.KindNotFound, storyErr.Kind)
}

func TestRoomReplayStartsFreshRound(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)
	fillAllPrompts(t, room, []string{host.ID, guest.ID})

	_, err = room.Reveal(host.Token)
	require.Nil(t, err)

	snap, err := room.Replay(host.Token)
	require.Nil(t, err)
	assert.Equal(t, internal.StatePrompting, snap.State)
	assert.Equal(t, 1, snap.RoundIndex)
	assert.Empty(t, snap.RevealedStory)
}

func TestRoomLeaveHandsOffHost(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")

	snap, err := room.Leave(host.ID)
	require.Nil(t, err)
	assert.Equal(t, guest.ID, snap.HostPlayerID)
	assert.Len(t, snap.Players, 1)

	_, err = room.SetLocked(guest.Token, true)
	assert.Nil(t, err, "new host's own token should now satisfy host-only commands")

	_, err = room.SetLocked(host.Token, false)
	assert.NotNil(t, err, "the departed host's old token must no longer work")
	assert.Equal(t, internal.KindAuth, err.Kind)
}

func TestRoomLeaveReassignsDisconnectedPlayerPrompts(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	guestPrompts, err := room.PromptsFor(guest.ID)
	require.Nil(t, err)
	require.NotEmpty(t, guestPrompts)

	_, err = room.Leave(guest.ID)
	require.Nil(t, err)

	hostPrompts, err := room.PromptsFor(host.ID)
	require.Nil(t, err)
	assert.GreaterOrEqual(t, len(hostPrompts), len(guestPrompts))
}

func TestRoomKickRequiresHostToken(t *testing.T) {
	room, _ := newTestRoom(t)
	guest, _, _ := room.Join("Guest")

	_, err := room.Kick("not-the-host", guest.ID)
	require.NotNil(t, err)
	assert.Equal(t, internal.KindAuth, err.Kind)
}

func TestRoomKickCannotTargetHost(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")

	_, err := room.Kick(host.Token, host.ID)
	require.NotNil(t, err)
	assert.Equal(t, internal.KindValidation, err.Kind)
}

func TestRoomKickRemovesPlayerImmediately(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")

	snap, err := room.Kick(host.Token, guest.ID)
	require.Nil(t, err)
	assert.Len(t, snap.Players, 1)

	_, promptErr := room.PromptsFor(guest.ID)
	require.NotNil(t, promptErr)
	assert.Equal(t, internal.KindNotFound, promptErr.Kind)
}

func TestRoomSetTemplateOnlyInLobby(t *testing.T) {
	room, host := newTestRoom(t)
	_, _, _ = room.Join("Guest")

	_, err := room.SetTemplate(host.Token, "t-space-voyage")
	require.Nil(t, err)

	_, startErr := room.Start(host.Token)
	require.Nil(t, startErr)

	_, tmplErr := room.SetTemplate(host.Token, "t-office-disaster")
	require.NotNil(t, tmplErr)
	assert.Equal(t, internal.KindStateConflict, tmplErr.Kind)
}

func TestRoomSetConnectedAndDisconnectGrace(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	guestPromptsBefore, _ := room.PromptsFor(guest.ID)
	require.NotEmpty(t, guestPromptsBefore)

	_, gen, err := room.SetConnected(guest.ID, false)
	require.Nil(t, err)

	// a stale generation must not reassign anything
	_, err = room.ExpireDisconnect(guest.ID, gen-1)
	require.Nil(t, err)
	stillAssigned, _ := room.PromptsFor(guest.ID)
	assert.Equal(t, len(guestPromptsBefore), len(stillAssigned))

	// the current generation reassigns the disconnected player's prompts
	_, err = room.ExpireDisconnect(guest.ID, gen)
	require.Nil(t, err)
	afterExpiry, _ := room.PromptsFor(guest.ID)
	assert.Empty(t, afterExpiry)
}

func TestRoomReconnectCancelsDisconnectGrace(t *testing.T) {
	room, host := newTestRoom(t)
	guest, _, _ := room.Join("Guest")
	_, err := room.Start(host.Token)
	require.Nil(t, err)

	_, gen, err := room.SetConnected(guest.ID, false)
	require.Nil(t, err)

	_, _, err = room.SetConnected(guest.ID, true)
	require.Nil(t, err)

	// the earlier generation is now stale because the player reconnected
	_, err = room.ExpireDisconnect(guest.ID, gen)
	require.Nil(t, err)
	prompts, _ := room.PromptsFor(guest.ID)
	assert.NotEmpty(t, prompts)
}

func TestRoomIsExpired(t *testing.T) {
	room, _ := newTestRoom(t)
	assert.False(t, room.IsExpired(time.Now()))
	assert.True(t, room.IsExpired(time.Now().Add(2*time.Hour)))
}

func TestRoomExpireNow(t *testing.T) {
	room, _ := newTestRoom(t)
	room.ExpireNow()
	assert.Equal(t, internal.StateExpired, room.Snapshot().State)

	// idempotent
	room.ExpireNow()
	assert.Equal(t, internal.StateExpired, room.Snapshot().State)
}
