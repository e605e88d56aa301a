package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// NarrationStatus mirrors the lifecycle of a narration job (spec §4.9),
// grounded on the TTS job states a real provider-backed implementation
// would carry (queued while waiting on a provider, generating while the
// call is in flight, ready once audio exists, blocked when moderation
// vetoes the story, error on provider failure).
type NarrationStatus string

const (
	NarrationQueued     NarrationStatus = "queued"
	NarrationGenerating NarrationStatus = "generating"
	NarrationReady      NarrationStatus = "ready"
	NarrationBlocked    NarrationStatus = "blocked"
	NarrationError      NarrationStatus = "error"
)

// PlaybackState tracks what clients report back about an in-progress
// narration so a late joiner's snapshot reflects where the room actually
// is (spec §4.9).
type PlaybackState string

const (
	PlaybackIdle     PlaybackState = "idle"
	PlaybackPlaying  PlaybackState = "playing"
	PlaybackPaused   PlaybackState = "paused"
	PlaybackStopped  PlaybackState = "stopped"
	PlaybackComplete PlaybackState = "complete"
)

var playbackActions = map[string]PlaybackState{
	"play":     PlaybackPlaying,
	"resume":   PlaybackPlaying,
	"pause":    PlaybackPaused,
	"stop":     PlaybackStopped,
	"complete": PlaybackComplete,
}

// narrationJob is the at-most-one-per-round narration handle a Room holds
// (spec §4.9: "at most one active narration job per round").
type narrationJob struct {
	ID            string
	RoundID       string
	Status        NarrationStatus
	CacheKey      string
	AudioURL      string
	FromCache     bool
	ErrorMessage  string
	Playback      PlaybackState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NarrationView is the client-facing projection of a narration job.
type NarrationView struct {
	ID           string          `json:"id"`
	Status       NarrationStatus `json:"status"`
	AudioURL     string          `json:"audio_url,omitempty"`
	FromCache    bool            `json:"from_cache"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Playback     PlaybackState   `json:"playback_state"`
}

func (j *narrationJob) view() NarrationView {
	return NarrationView{
		ID:           j.ID,
		Status:       j.Status,
		AudioURL:     j.AudioURL,
		FromCache:    j.FromCache,
		ErrorMessage: j.ErrorMessage,
		Playback:     j.Playback,
	}
}

// narrationCacheVersion namespaces the cache key so a future change to how
// audio is synthesized invalidates every previously cached key.
const narrationCacheVersion = "v1"

// NarrationFacade stands in for a real narration/TTS provider: out of
// scope is the actual speech synthesis pipeline (spec Non-goals), but the
// request/cache/job lifecycle around it is fully exercised so callers see
// the real shape of that boundary. A story that already produced audio
// for the same fingerprint resolves instantly from cache, matching the
// sha256 cache-key fingerprinting a provider-backed implementation uses
// to avoid re-synthesizing identical text.
type NarrationFacade struct {
	mu    sync.Mutex
	ready map[string]bool // cacheKey -> synthesized
}

// NewNarrationFacade returns a facade with an empty synthesis cache.
func NewNarrationFacade() *NarrationFacade {
	return &NarrationFacade{ready: make(map[string]bool)}
}

func narrationCacheKey(story string) string {
	sum := sha256.Sum256([]byte(story + "|" + narrationCacheVersion))
	return hex.EncodeToString(sum[:])
}

// synthesize resolves a story to a finished job, either from cache or by
// running moderation and "generating" deterministically in place of a real
// provider round trip.
func (f *NarrationFacade) synthesize(roundID, story string) *narrationJob {
	now := time.Now()
	job := &narrationJob{
		ID:        "narration_" + roundID,
		RoundID:   roundID,
		CacheKey:  narrationCacheKey(story),
		Playback:  PlaybackIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if blocked, reason := Moderate(story); blocked {
		job.Status = NarrationBlocked
		job.ErrorMessage = fmt.Sprintf("narration is disabled for this round: %s", reason)
		return job
	}

	f.mu.Lock()
	fromCache := f.ready[job.CacheKey]
	f.ready[job.CacheKey] = true
	f.mu.Unlock()

	job.Status = NarrationReady
	job.FromCache = fromCache
	job.AudioURL = "https://cdn.storyfill.invalid/narration/" + job.ID + ".mp3"
	return job
}

// RequestNarration returns the room's existing job for the live round if
// one is already queued, generating, ready, or blocked; otherwise it
// synthesizes a new one and stores it (spec §4.9: at most one job per
// round, repeat requests are idempotent). Host-only, like every other
// command that spends the room's shared narration/share budget.
func (r *Room) RequestNarration(hostToken string, facade *NarrationFacade) (NarrationView, *Error) {
	r.mu.Lock()
	if err := r.requireHost(hostToken); err != nil {
		r.mu.Unlock()
		return NarrationView{}, err
	}
	if r.state != StateRevealed {
		r.mu.Unlock()
		return NarrationView{}, errStateConflict("narration is only available once the round is revealed")
	}
	if r.narration != nil && r.narration.RoundID == r.roundID {
		view := r.narration.view()
		r.mu.Unlock()
		return view, nil
	}
	story := r.revealedStory
	roundID := r.roundID
	r.mu.Unlock()

	job := facade.synthesize(roundID, story)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roundID != roundID {
		return NarrationView{}, errStateConflict("round has moved on")
	}
	if r.narration != nil && r.narration.RoundID == roundID {
		return r.narration.view(), nil
	}
	r.narration = job
	r.touch()
	r.publish()
	return job.view(), nil
}

// GetNarration returns the live round's narration job, if any.
func (r *Room) GetNarration() (NarrationView, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.narration == nil || r.narration.RoundID != r.roundID {
		return NarrationView{}, errNotFound("no narration requested for this round")
	}
	return r.narration.view(), nil
}

// UpdatePlayback records a client's reported playback transition.
func (r *Room) UpdatePlayback(action string) (NarrationView, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.narration == nil || r.narration.RoundID != r.roundID {
		return NarrationView{}, errNotFound("no narration requested for this round")
	}
	state, ok := playbackActions[action]
	if !ok {
		return NarrationView{}, errValidation("unknown playback action %q", action)
	}
	if r.narration.Status != NarrationReady {
		return NarrationView{}, errStateConflict("narration is not ready for playback")
	}

	r.narration.Playback = state
	r.narration.UpdatedAt = time.Now()
	r.touch()
	r.publish()
	return r.narration.view(), nil
}
