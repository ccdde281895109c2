// Package api holds the JSON request and response bodies of the RPC surface.
// Application failures travel as success:false with a string code; the
// HTTP status stays 200 so retry logic only has to look at transport errors.
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// Paths of the RPC endpoints
const (
	PathCreateRoom  = "/rpc/create-room"
	PathJoinRoom    = "/rpc/join-room"
	PathGetSession  = "/rpc/get-session"
	PathSubmitMove  = "/rpc/submit-move"
	PathAcceptRules = "/rpc/accept-rules"
	PathSkipTurn    = "/rpc/skip-turn"
	PathForfeitTurn = "/rpc/forfeit-turn"
	PathResign      = "/rpc/resign"
	PathCancelRoom  = "/rpc/cancel-room"
	PathSettle      = "/rpc/settle"
	PathRefundDraw  = "/rpc/refund-draw"
)

// SessionTokenHeader carries the server-issued session token
const SessionTokenHeader = "X-Session-Token"

// Result is the common part of every mutating response
type Result struct {
	Success bool        `json:"success"`
	Error   models.Code `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

type CreateRoomRequest struct {
	Wallet          string          `json:"wallet"`
	Mode            models.GameMode `json:"mode"`
	MaxPlayers      int             `json:"maxPlayers"`
	TurnTimeSeconds int             `json:"turnTimeSeconds"`
	Stake           decimal.Decimal `json:"stake"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
	Wallet string `json:"wallet,omitempty"`
}

type TokenResponse struct {
	Result
	RoomID       string    `json:"roomId,omitempty"`
	SessionToken string    `json:"sessionToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
	InviteURL    string    `json:"inviteUrl,omitempty"`
}

type SubmitMoveRequest struct {
	RoomID       string          `json:"roomId"`
	Wallet       string          `json:"wallet"`
	MoveData     json.RawMessage `json:"moveData"`
	ClientMoveID string          `json:"clientMoveId,omitempty"`
	TurnNumber   int             `json:"turnNumber,omitempty"`
}

type SubmitMoveResponse struct {
	Result
	TurnSwitched bool `json:"turnSwitched,omitempty"`
	TurnNumber   int  `json:"turnNumber,omitempty"`
	Finished     bool `json:"finished,omitempty"`
}

type AcceptRulesResponse struct {
	Result
	Acceptances *models.Acceptances `json:"acceptances,omitempty"`
}

type EscalationRequest struct {
	RoomID       string `json:"roomId"`
	Wallet       string `json:"wallet"`
	LapsedWallet string `json:"lapsedWallet"`
	TurnNumber   int    `json:"turnNumber,omitempty"`
}

type EscalationResponse struct {
	Result
	TurnSwitched bool   `json:"turnSwitched,omitempty"`
	TurnNumber   int    `json:"turnNumber,omitempty"`
	MissedTurns  int    `json:"missedTurns,omitempty"`
	Finished     bool   `json:"finished,omitempty"`
	Winner       string `json:"winner,omitempty"`
}

type SettleRequest struct {
	RoomID       string           `json:"roomId"`
	WinnerWallet string           `json:"winnerWallet"`
	Reason       models.WinReason `json:"reason"`
}

type SettleResponse struct {
	Result
	Signature       string `json:"signature,omitempty"`
	AlreadySettled  bool   `json:"alreadySettled,omitempty"`
	AlreadyClosed   bool   `json:"alreadyClosed,omitempty"`
	AlreadyRefunded bool   `json:"alreadyRefunded,omitempty"`
}

// SessionResponse mirrors render.SessionEnvelope for decoding on the client
type SessionResponse struct {
	OK          bool                `json:"ok"`
	Session     *SessionView        `json:"session,omitempty"`
	Acceptances *models.Acceptances `json:"acceptances,omitempty"`
	Viewer      *ViewerView         `json:"viewer,omitempty"`
	Error       models.Code         `json:"error,omitempty"`
}

type ViewerView struct {
	Wallet   string `json:"wallet"`
	Seat     int    `json:"seat"`
	YourTurn bool   `json:"yourTurn"`
	Quorum   string `json:"quorum"`
}

// SessionView is the client's decoded copy of the session read model
type SessionView struct {
	RoomID            string            `json:"roomId"`
	Status            models.GameStatus `json:"status"`
	Mode              models.GameMode   `json:"mode"`
	MaxPlayers        int               `json:"maxPlayers"`
	Participants      []string          `json:"participants"`
	CurrentTurnWallet *string           `json:"currentTurnWallet"`
	TurnStartedAt     *time.Time        `json:"turnStartedAt"`
	TurnTimeSeconds   int               `json:"turnTimeSeconds"`
	TurnNumber        int               `json:"turnNumber"`
	ReadyFlags        map[string]bool   `json:"readyFlags"`
	MissedTurns       map[string]int    `json:"missedTurns"`
	Winner            string            `json:"winner,omitempty"`
	WinReason         models.WinReason  `json:"winReason,omitempty"`
	ServerTime        time.Time         `json:"serverTime"`
}

// Holder returns the current turn wallet or ""
func (v *SessionView) Holder() string {
	if v.CurrentTurnWallet == nil {
		return ""
	}
	return *v.CurrentTurnWallet
}

// Err returns the application failure carried by r, or nil on success.
// A failure without a code reports CodeInternal.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	code := r.Error
	if code == "" {
		code = models.CodeInternal
	}
	return &models.Error{Code: code, Message: r.Message}
}
