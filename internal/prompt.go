package internal

import "time"

// Prompt is one slot in a template, assigned to exactly one player at a
// time, awaiting a free-text value.
type Prompt struct {
	ID               string     `json:"id"`
	SlotID           string     `json:"slot_id"`
	SlotType         SlotType   `json:"slot_type"`
	Label            string     `json:"label"`
	AssignedPlayerID string     `json:"assigned_player_id,omitempty"`
	Submitted        bool       `json:"submitted"`
	Value            string     `json:"value,omitempty"`
	AssignedAt       time.Time  `json:"assigned_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	LastReassignedAt *time.Time `json:"last_reassigned_at,omitempty"`
}
