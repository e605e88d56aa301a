package internal

import "time"

// ShareArtifact is the read-only, unauthenticated link to a revealed
// round's story (spec §4.10). It carries its own expiry independent of the
// room's — a room can expire and be swept while its last share link stays
// valid a little longer, since the artifact only needs the rendered text,
// not the live room.
type ShareArtifact struct {
	Token         string    `json:"share_token"`
	RoomCode      string    `json:"room_code"`
	RoundID       string    `json:"round_id"`
	TemplateTitle string    `json:"template_title"`
	Story         string    `json:"story"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CreateShare mints a share link for the currently revealed round. Calling
// it again for the same round returns the existing artifact unchanged
// (spec §4.10: idempotent per round). Host-only — minting a public link is
// a host decision, same as reveal or replay.
func (r *Room) CreateShare(hostToken string) (*ShareArtifact, *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireHost(hostToken); err != nil {
		return nil, err
	}
	if r.state != StateRevealed {
		return nil, errStateConflict("room is not revealed")
	}
	if r.share != nil && r.share.RoundID == r.roundID {
		return r.share, nil
	}

	token, err := NewToken()
	if err != nil {
		return nil, errInternal(err)
	}

	template, _ := GetTemplate(r.templateID)
	title := ""
	if template != nil {
		title = template.Title
	}

	now := time.Now()
	r.share = &ShareArtifact{
		Token:         token,
		RoomCode:      r.Code,
		RoundID:       r.roundID,
		TemplateTitle: title,
		Story:         r.revealedStory,
		CreatedAt:     now,
		ExpiresAt:     now.Add(r.cfg.ShareTTL),
	}
	r.touch()
	r.publish()
	return r.share, nil
}
