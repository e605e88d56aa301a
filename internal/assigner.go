package internal

import "time"

// PromptsPerPlayer is the default number of prompts dealt to each player.
const DefaultPromptsPerPlayer = 3

// dealPrompts builds the prompt list for a new round and deals it to
// players round-robin, per spec §4.3:
//  1. read the template's ordered slots
//  2. repeat the slot list cyclically until it reaches
//     max(len(slots), promptsPerPlayer*len(players))
//  3. deal round-robin in players order, rotating the starting player by
//     roundIndex mod len(players)
func dealPrompts(template *Template, players []*Player, promptsPerPlayer, roundIndex int) []*Prompt {
	if len(players) == 0 || len(template.Slots) == 0 {
		return nil
	}

	total := promptsPerPlayer * len(players)
	if len(template.Slots) > total {
		total = len(template.Slots)
	}

	now := time.Now()
	prompts := make([]*Prompt, total)
	for i := 0; i < total; i++ {
		slot := template.Slots[i%len(template.Slots)]
		prompts[i] = &Prompt{
			ID:         NewPromptID(),
			SlotID:     slot.ID,
			SlotType:   slot.Type,
			Label:      slot.Label,
			Submitted:  false,
			AssignedAt: now,
		}
	}

	start := roundIndex % len(players)
	for i, p := range prompts {
		player := players[(start+i)%len(players)]
		p.AssignedPlayerID = player.ID
	}

	return prompts
}

// reassignDisconnected redeals every unsubmitted prompt currently held by a
// disconnected player to the currently connected players, round-robin,
// preferring whoever holds the fewest prompts, ties broken by earliest
// JoinedAt (spec §4.3).
func reassignDisconnected(prompts []*Prompt, disconnectedPlayerIDs map[string]bool, connected []*Player) {
	if len(connected) == 0 {
		return
	}

	held := make(map[string]int, len(connected))
	for _, p := range connected {
		held[p.ID] = 0
	}
	for _, p := range prompts {
		if _, ok := held[p.AssignedPlayerID]; ok {
			held[p.AssignedPlayerID]++
		}
	}

	now := time.Now()
	for _, p := range prompts {
		if p.Submitted || !disconnectedPlayerIDs[p.AssignedPlayerID] {
			continue
		}
		target := pickLeastLoaded(connected, held)
		p.AssignedPlayerID = target.ID
		p.LastReassignedAt = &now
		held[target.ID]++
	}
}

// pickLeastLoaded returns the connected player holding the fewest prompts,
// ties broken by earliest JoinedAt.
func pickLeastLoaded(connected []*Player, held map[string]int) *Player {
	best := connected[0]
	for _, p := range connected[1:] {
		if held[p.ID] < held[best.ID] || (held[p.ID] == held[best.ID] && p.JoinedAt.Before(best.JoinedAt)) {
			best = p
		}
	}
	return best
}
