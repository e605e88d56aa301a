package internal

import "time"

// Player is one participant in a Room. The host is an ordinary player
// carrying IsHost and an additional host_token secret held on the Room,
// not here — presence, prompts, and kick apply uniformly to host and
// guest alike (spec §9: host-as-player collapse).
type Player struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	Token          string     `json:"-"`
	IsHost         bool       `json:"is_host"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
	Kicked         bool       `json:"-"`
}

// PlayerView is the client-facing projection of a Player used in
// room_snapshot.players[] (spec §6: id, display_name, is_host, connected).
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
	Connected   bool   `json:"connected"`
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		IsHost:      p.IsHost,
		Connected:   p.Connected,
	}
}
