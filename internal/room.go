package internal

import (
	"sync"
	"time"
)

// RoomState is the room's finite state machine (spec §3):
//
//	LobbyOpen → Prompting → AwaitingReveal → Revealed → Prompting (replay)
//	   any non-terminal state → Expired (inactivity sweep)
//
// Prompting auto-advances to AwaitingReveal the moment every dealt prompt in
// the round carries a submitted value; reveal is still an explicit host
// command that renders the story and moves AwaitingReveal → Revealed.
type RoomState string

const (
	StateLobbyOpen      RoomState = "lobby_open"
	StatePrompting      RoomState = "prompting"
	StateAwaitingReveal RoomState = "awaiting_reveal"
	StateRevealed       RoomState = "revealed"
	StateExpired        RoomState = "expired"
)

// RoomConfig is the set of tunables captured at room creation time. Values
// come from Config (config.go) at the moment CreateRoom is called, so a
// live room's behavior never shifts underneath it when an operator changes
// an environment variable and restarts (spec §6).
type RoomConfig struct {
	MinPlayersToStart int
	MaxPlayersPerRoom int
	PromptsPerPlayer  int
	DisconnectGrace   time.Duration
	RoomTTL           time.Duration
	ShareTTL          time.Duration
}

// Progress is the client-facing submission tally for the room's live round.
type Progress struct {
	TotalPrompts     int `json:"total_prompts"`
	SubmittedPrompts int `json:"submitted_prompts"`
}

// Snapshot is the full client-facing projection of a Room, the sole payload
// carried by room.snapshot events and every command's HTTP response body
// (spec §4.4, §6).
type Snapshot struct {
	RoomID        string       `json:"room_id"`
	Code          string       `json:"code"`
	State         RoomState    `json:"state"`
	Locked        bool         `json:"locked"`
	TemplateID    string       `json:"template_id,omitempty"`
	RoundID       string       `json:"round_id,omitempty"`
	RoundIndex    int          `json:"round_index"`
	StateVersion  int64        `json:"state_version"`
	HostPlayerID  string       `json:"host_player_id"`
	Players       []PlayerView `json:"players"`
	Progress      Progress     `json:"progress"`
	RevealedStory string       `json:"revealed_story,omitempty"`
	ShareToken    string       `json:"share_token,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Room is the single exclusive-lock aggregate for one game: every accepted
// command bumps StateVersion, so there's no read path that doesn't also
// need the write lock (unlike the teacher's karaoke room, which reads far
// more often than it writes). A plain sync.Mutex keeps that explicit rather
// than dressing up a fast path that doesn't exist.
type Room struct {
	ID        string
	Code      string
	CreatedAt time.Time

	cfg RoomConfig
	bus *Bus

	mu sync.Mutex

	state          RoomState
	locked         bool
	stateVersion   int64
	lastActivityAt time.Time

	templateID   string
	hostPlayerID string
	hostToken    string

	players     map[string]*Player
	playerOrder []string

	roundID    string
	roundIndex int
	prompts    []*Prompt

	revealedStory string

	narration *narrationJob
	share     *ShareArtifact

	disconnectGen map[string]int
}

// NewRoom creates a room in LobbyOpen with the creator seated as host.
func NewRoom(id, code, templateID string, cfg RoomConfig, bus *Bus, hostDisplayName string) (*Room, *Player, *Error) {
	if _, ok := GetTemplate(templateID); !ok {
		return nil, nil, errValidation("unknown template %q", templateID)
	}

	token, err := NewToken()
	if err != nil {
		return nil, nil, errInternal(err)
	}

	now := time.Now()
	host := &Player{
		ID:          NewPlayerID(),
		DisplayName: sanitizeDisplayName(hostDisplayName),
		Token:       token,
		IsHost:      true,
		Connected:   true,
		JoinedAt:    now,
	}

	r := &Room{
		ID:             id,
		Code:           code,
		CreatedAt:      now,
		cfg:            cfg,
		bus:            bus,
		state:          StateLobbyOpen,
		lastActivityAt: now,
		templateID:     templateID,
		hostPlayerID:   host.ID,
		hostToken:      token,
		players:        map[string]*Player{host.ID: host},
		playerOrder:    []string{host.ID},
		disconnectGen:  make(map[string]int),
	}
	return r, host, nil
}

// Lock/Unlock expose the room's exclusive lock to RoomStore, which needs to
// hold it across a lookup-then-act sequence (e.g. store sweep checking
// IsExpired before removing the room) without re-entering through a method
// that would deadlock by locking again.
func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) touch() {
	r.lastActivityAt = time.Now()
	r.stateVersion++
}

func (r *Room) publish() {
	r.bus.Publish(RoomEvent{Type: EventRoomSnapshot, RoomID: r.ID, Payload: r.snapshotLocked()})
}

// snapshotLocked builds a Snapshot. Caller must hold r.mu.
func (r *Room) snapshotLocked() Snapshot {
	players := make([]PlayerView, 0, len(r.playerOrder))
	for _, id := range r.playerOrder {
		if p := r.players[id]; p != nil && !p.Kicked {
			players = append(players, p.view())
		}
	}

	submitted := 0
	for _, p := range r.prompts {
		if p.Submitted {
			submitted++
		}
	}

	shareToken := ""
	if r.share != nil {
		shareToken = r.share.Token
	}

	return Snapshot{
		RoomID:        r.ID,
		Code:          r.Code,
		State:         r.state,
		Locked:        r.locked,
		TemplateID:    r.templateID,
		RoundID:       r.roundID,
		RoundIndex:    r.roundIndex,
		StateVersion:  r.stateVersion,
		HostPlayerID:  r.hostPlayerID,
		Players:       players,
		Progress:      Progress{TotalPrompts: len(r.prompts), SubmittedPrompts: submitted},
		RevealedStory: r.revealedStory,
		ShareToken:    shareToken,
		CreatedAt:     r.CreatedAt,
	}
}

// Snapshot returns the current client-facing projection of the room.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) connectedPlayers() []*Player {
	out := make([]*Player, 0, len(r.playerOrder))
	for _, id := range r.playerOrder {
		if p := r.players[id]; p != nil && !p.Kicked && p.Connected {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) playerByToken(token string) *Player {
	for _, id := range r.playerOrder {
		p := r.players[id]
		if p != nil && !p.Kicked && TokensEqual(p.Token, token) {
			return p
		}
	}
	return nil
}

func (r *Room) requireHost(hostToken string) *Error {
	if !TokensEqual(r.hostToken, hostToken) {
		return errAuth("host token required")
	}
	return nil
}

// Join seats a new player in the lobby. Rejected once the room is locked,
// full, or past LobbyOpen (spec §4.1).
func (r *Room) Join(displayName string) (*Player, Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateExpired {
		return nil, Snapshot{}, errExpired("room has expired")
	}
	if r.locked {
		return nil, Snapshot{}, errLocked("room is locked")
	}
	if r.state != StateLobbyOpen {
		return nil, Snapshot{}, errStateConflict("room is not accepting new players")
	}
	if len(r.players) >= r.cfg.MaxPlayersPerRoom {
		return nil, Snapshot{}, errFull("room is full")
	}

	token, err := NewToken()
	if err != nil {
		return nil, Snapshot{}, errInternal(err)
	}

	p := &Player{
		ID:          NewPlayerID(),
		DisplayName: sanitizeDisplayName(displayName),
		Token:       token,
		Connected:   true,
		JoinedAt:    time.Now(),
	}
	r.players[p.ID] = p
	r.playerOrder = append(r.playerOrder, p.ID)
	r.touch()
	r.publish()

	return p, r.snapshotLocked(), nil
}

// Leave removes a player permanently. If the host leaves, the host role
// passes to the longest-seated remaining player (spec §4.1, mirroring the
// teacher's host-handoff-on-departure rule in manager/room).
func (r *Room) Leave(playerID string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || p.Kicked {
		return Snapshot{}, errNotFound("player not in room")
	}

	delete(r.players, playerID)
	r.playerOrder = removeID(r.playerOrder, playerID)

	if playerID == r.hostPlayerID {
		r.handoffHost()
	}

	r.reassignAfterDeparture(playerID)
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// Kick removes target immediately, bypassing any disconnect grace period:
// a host-initiated kick is a deliberate decision, not a flaky connection,
// so there's nothing to wait out.
func (r *Room) Kick(hostToken, targetPlayerID string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	if targetPlayerID == r.hostPlayerID {
		return Snapshot{}, errValidation("host cannot kick themselves")
	}
	p, ok := r.players[targetPlayerID]
	if !ok || p.Kicked {
		return Snapshot{}, errNotFound("player not in room")
	}

	p.Kicked = true
	delete(r.players, targetPlayerID)
	r.playerOrder = removeID(r.playerOrder, targetPlayerID)
	delete(r.disconnectGen, targetPlayerID)

	r.reassignAfterDeparture(targetPlayerID)
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// reassignAfterDeparture redeals any prompt the departed player held onto
// whoever is left connected. Caller holds r.mu.
func (r *Room) reassignAfterDeparture(departedID string) {
	if r.state != StatePrompting {
		return
	}
	connected := r.connectedPlayers()
	if len(connected) == 0 {
		return
	}
	reassignDisconnected(r.prompts, map[string]bool{departedID: true}, connected)
	r.maybeAdvanceToAwaitingReveal()
}

func (r *Room) handoffHost() {
	if len(r.playerOrder) == 0 {
		r.hostPlayerID = ""
		r.hostToken = ""
		return
	}
	var next *Player
	for _, id := range r.playerOrder {
		p := r.players[id]
		if p == nil || p.Kicked {
			continue
		}
		if next == nil || p.JoinedAt.Before(next.JoinedAt) {
			next = p
		}
	}
	if next != nil {
		next.IsHost = true
		r.hostPlayerID = next.ID
		r.hostToken = next.Token
	}
}

// SetLocked toggles whether new players may join (spec §4.1).
func (r *Room) SetLocked(hostToken string, locked bool) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	r.locked = locked
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// SetTemplate changes the template used for the next round started. Only
// legal in LobbyOpen, before any prompts have been dealt (spec §4.1).
func (r *Room) SetTemplate(hostToken, templateID string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	if r.state != StateLobbyOpen {
		return Snapshot{}, errStateConflict("template can only be changed before the round starts")
	}
	if _, ok := GetTemplate(templateID); !ok {
		return Snapshot{}, errValidation("unknown template %q", templateID)
	}

	r.templateID = templateID
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// Start deals the first round's prompts and moves LobbyOpen → Prompting
// (spec §4.1, §4.3).
func (r *Room) Start(hostToken string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	if r.state != StateLobbyOpen {
		return Snapshot{}, errStateConflict("room has already started")
	}
	if len(r.players) < r.cfg.MinPlayersToStart {
		return Snapshot{}, errValidation("at least %d players are required to start", r.cfg.MinPlayersToStart)
	}

	r.beginRound()
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// beginRound deals a fresh set of prompts for roundIndex and enters
// Prompting. Caller holds r.mu.
func (r *Room) beginRound() {
	template, _ := GetTemplate(r.templateID)
	players := r.connectedPlayers()

	r.roundID = NewRoundID()
	r.prompts = dealPrompts(template, players, r.cfg.PromptsPerPlayer, r.roundIndex)
	r.revealedStory = ""
	r.narration = nil
	r.share = nil
	r.state = StatePrompting
}

// PromptsFor returns the prompts currently assigned to playerID, for the
// getPrompts command.
func (r *Room) PromptsFor(playerID string) ([]*Prompt, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return nil, errNotFound("player not in room")
	}
	out := make([]*Prompt, 0)
	for _, p := range r.prompts {
		if p.AssignedPlayerID == playerID && !p.Submitted {
			out = append(out, p)
		}
	}
	return out, nil
}

// SubmitPrompt records a player's free-text answer. Blocked content is
// rejected without consuming the assignment, so the player can retry
// (spec §4.3, §4.7).
func (r *Room) SubmitPrompt(playerID, promptID, value string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePrompting {
		return Snapshot{}, errStateConflict("room is not accepting submissions")
	}
	if _, ok := r.players[playerID]; !ok {
		return Snapshot{}, errNotFound("player not in room")
	}

	var prompt *Prompt
	for _, p := range r.prompts {
		if p.ID == promptID {
			prompt = p
			break
		}
	}
	if prompt == nil {
		return Snapshot{}, errNotFound("prompt not found")
	}
	if prompt.AssignedPlayerID != playerID {
		return Snapshot{}, errAuth("prompt is not assigned to you")
	}
	if prompt.Submitted {
		return Snapshot{}, errStateConflict("prompt already submitted")
	}

	trimmed := trimToSlotLen(value, prompt.SlotType)
	if trimmed == "" {
		return Snapshot{}, errValidation("value cannot be empty")
	}
	if blocked, reason := Moderate(trimmed); blocked {
		return Snapshot{}, errValidation("%s", reason)
	}

	now := time.Now()
	prompt.Value = trimmed
	prompt.Submitted = true
	prompt.SubmittedAt = &now

	r.maybeAdvanceToAwaitingReveal()
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

func trimToSlotLen(value string, slotType SlotType) string {
	v := value
	if max := maxValueLen(slotType); len(v) > max {
		v = v[:max]
	}
	return v
}

// maybeAdvanceToAwaitingReveal auto-advances Prompting → AwaitingReveal the
// moment every dealt prompt carries a submission, counted against whoever
// currently holds it (spec decision: submissions made before a reassignment
// still count; ready_to_reveal never un-counts work already done).
func (r *Room) maybeAdvanceToAwaitingReveal() {
	if r.state != StatePrompting || len(r.prompts) == 0 {
		return
	}
	for _, p := range r.prompts {
		if !p.Submitted {
			return
		}
	}
	r.state = StateAwaitingReveal
}

// ReadyToReveal reports whether every prompt in the live round has been
// submitted.
func (r *Room) ReadyToReveal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateAwaitingReveal
}

// Reveal renders the story from submitted values and moves
// AwaitingReveal → Revealed (spec §4.1, §4.5).
func (r *Room) Reveal(hostToken string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	if r.state != StateAwaitingReveal {
		return Snapshot{}, errStateConflict("room is not ready to reveal")
	}

	template, ok := GetTemplate(r.templateID)
	if !ok {
		return Snapshot{}, errInternal(nil)
	}

	values := make(map[string]string, len(r.prompts))
	for _, p := range r.prompts {
		values[p.SlotID] = p.Value
	}
	r.revealedStory = RenderStory(template.Story, template.Slots, values)
	r.state = StateRevealed
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// Replay clears the revealed round's artifacts and deals a fresh round,
// rotating round_id and incrementing round_index. The outgoing round's
// story stops being reachable the instant the round rotates (spec §8
// scenario 3) — Room never retains more than its one live round.
func (r *Room) Replay(hostToken string) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return Snapshot{}, err
	}
	if r.state != StateRevealed {
		return Snapshot{}, errStateConflict("room has not been revealed yet")
	}

	r.roundIndex++
	r.beginRound()
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// Story returns the revealed story for roundID, or a conflict error if the
// round hasn't been revealed yet or has since rotated away.
func (r *Room) Story(roundID string) (string, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roundID != roundID {
		return "", errNotFound("round not found")
	}
	if r.state != StateRevealed {
		return "", errStateConflict("round has not been revealed yet")
	}
	return r.revealedStory, nil
}

// SetConnected marks playerID connected or disconnected and arms/disarms
// the disconnect-grace generation counter the websocket hub uses to decide
// whether a later grace-timer firing is still valid (spec §4.6, §4.3).
func (r *Room) SetConnected(playerID string, connected bool) (Snapshot, int, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || p.Kicked {
		return Snapshot{}, 0, errNotFound("player not in room")
	}

	p.Connected = connected
	if connected {
		p.DisconnectedAt = nil
	} else {
		now := time.Now()
		p.DisconnectedAt = &now
	}
	r.disconnectGen[playerID]++
	gen := r.disconnectGen[playerID]

	r.touch()
	r.publish()
	return r.snapshotLocked(), gen, nil
}

// ExpireDisconnect is invoked by the hub's grace timer once DisconnectGrace
// has elapsed since a player went offline. gen must match the generation
// captured when the timer was armed, or the player reconnected (or
// disconnected again) in the interim and this firing is stale.
func (r *Room) ExpireDisconnect(playerID string, gen int) (Snapshot, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disconnectGen[playerID] != gen {
		return Snapshot{}, nil
	}
	p, ok := r.players[playerID]
	if !ok || p.Kicked || p.Connected {
		return Snapshot{}, nil
	}

	r.reassignAfterDeparture(playerID)
	r.touch()
	r.publish()
	return r.snapshotLocked(), nil
}

// IsExpired reports whether the room should be swept: a room whose state is
// already Expired, or whose last activity is older than RoomTTL.
func (r *Room) IsExpired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateExpired {
		return true
	}
	return now.Sub(r.lastActivityAt) > r.cfg.RoomTTL
}

// ExpireNow transitions the room to Expired and publishes room.expired so
// every connected hub can close its sockets with the expired close code.
func (r *Room) ExpireNow() {
	r.mu.Lock()
	if r.state == StateExpired {
		r.mu.Unlock()
		return
	}
	r.state = StateExpired
	r.touch()
	r.mu.Unlock()

	r.bus.Publish(RoomEvent{Type: EventRoomExpired, RoomID: r.ID, Payload: struct{}{}})
}

// DisconnectGrace exposes the room's configured grace window so the
// websocket hub can arm a timer without duplicating config wiring.
func (r *Room) DisconnectGrace() time.Duration {
	return r.cfg.DisconnectGrace
}

func removeID(ids []string, target string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
