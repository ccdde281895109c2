package game

import "time"

const (
	// MinPlayers is the smallest room that can be created
	MinPlayers = 2

	// MaxPlayers is the largest room that can be created
	MaxPlayers = 4

	// GraceSeconds is added to every turn deadline before a lapse is declared
	GraceSeconds = 3

	// Grace is GraceSeconds as a duration
	Grace = GraceSeconds * time.Second

	// DefaultMaxMisses is how many consecutive lapses end the match
	DefaultMaxMisses = 3

	// MoveJournalSize bounds the per-room idempotency journal
	MoveJournalSize = 256

	// DefaultTokenTTL is how long a session token stays valid
	DefaultTokenTTL = 24 * time.Hour

	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6

	// RoomCodeChars are the characters used for generating room codes (excluding ambiguous chars)
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// roomCodeAttempts bounds retries on a room code collision
	roomCodeAttempts = 16
)
