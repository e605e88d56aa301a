// Command storyfill runs a collaborative fill-in-the-blanks party game
// server: one host creates a room, players join with a short room code,
// everyone is dealt a handful of blank prompts from a template, and once
// every prompt is filled the room reveals the assembled story.
//
// # Room lifecycle
//
// A room moves through a small state machine:
//   - lobby_open: players join, the host can lock the room or change the
//     template
//   - prompting: prompts are dealt and players fill them in
//   - awaiting_reveal: every prompt has a submission, waiting on the host
//   - revealed: the story is rendered and available to read, narrate, and
//     share
//
// A disconnected player's unsubmitted prompts are redealt to whoever is
// still connected once a grace period elapses, so one dropped connection
// never stalls a room.
//
// # Real-time sync
//
// Every accepted command publishes a full room snapshot over a per-room
// event bus. Connected websocket clients receive it immediately; a late
// joiner gets one on connect. The bus never blocks a slow subscriber —
// stale snapshots are coalesced away rather than queued.
//
// # Concurrency
//
// Each room is a single exclusive-lock aggregate. Every accepted operation
// changes the room's state version, so there's no meaningful read-only
// fast path to optimize for with a reader/writer lock.
//
// # Configuration
//
// Runtime behavior is controlled by STORYFILL_-prefixed environment
// variables: STORYFILL_PORT, STORYFILL_ROOM_TTL,
// STORYFILL_DISCONNECT_GRACE, STORYFILL_PROMPTS_PER_PLAYER,
// STORYFILL_MIN_PLAYERS_TO_START, STORYFILL_MAX_PLAYERS_PER_ROOM,
// STORYFILL_SHARE_TTL, STORYFILL_REDIS_ADDR, STORYFILL_LOG_LEVEL, and
// STORYFILL_LOG_FORMAT.
//
// # Running
//
//	go run ./cmd/server
package main
