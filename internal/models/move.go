package models

import "encoding/json"

// Move is one player's submission. MoveData is opaque to the engine
// and interpreted only by the rule engine.
type Move struct {
	ClientMoveID string          `json:"clientMoveId,omitempty"`
	Wallet       string          `json:"wallet"`
	MoveData     json.RawMessage `json:"moveData"`
	TurnNumber   int             `json:"turnNumber,omitempty"` // addressed turn, 0 = current
}

// MoveResult is the outcome of a submission, journaled per clientMoveId
type MoveResult struct {
	Applied      bool `json:"applied"`
	TurnSwitched bool `json:"turnSwitched"`
	TurnNumber   int  `json:"turnNumber"`
	Finished     bool `json:"finished,omitempty"`
	Error        Code `json:"error,omitempty"`
}
