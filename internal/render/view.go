// Package render builds the JSON read model served to clients
package render

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// SessionView is the session as the wire sees it. The idempotency journal
// and other bookkeeping stay on the server.
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
	StakeAmount       decimal.Decimal   `json:"stakeAmount"`
	MoveCount         int               `json:"moveCount"`
	AuxState          json.RawMessage   `json:"auxState,omitempty"`
	Revision          int64             `json:"revision"`
	ServerTime        time.Time         `json:"serverTime"`
}

// ViewerView is the part of the read model that depends on who is asking
type ViewerView struct {
	Wallet   string           `json:"wallet"`
	Seat     int              `json:"seat"`
	YourTurn bool             `json:"yourTurn"`
	Quorum   game.QuorumState `json:"quorum"`
}

// SessionEnvelope is the get-session response and the push payload
type SessionEnvelope struct {
	OK          bool                `json:"ok"`
	Session     *SessionView        `json:"session,omitempty"`
	Acceptances *models.Acceptances `json:"acceptances,omitempty"`
	Viewer      *ViewerView         `json:"viewer,omitempty"`
	Error       models.Code         `json:"error,omitempty"`
}

// Session renders s for viewer; an empty viewer omits the viewer block
func Session(s *models.GameSession, viewer string, now time.Time) SessionEnvelope {
	v := &SessionView{
		RoomID:          s.RoomID,
		Status:          s.Status,
		Mode:            s.Mode,
		MaxPlayers:      s.MaxPlayers,
		Participants:    s.Participants,
		TurnStartedAt:   s.TurnStartedAt,
		TurnTimeSeconds: s.TurnTimeSeconds,
		TurnNumber:      s.TurnNumber,
		ReadyFlags:      s.ReadyFlags,
		MissedTurns:     s.MissedTurns,
		Winner:          s.Winner,
		WinReason:       s.WinReason,
		StakeAmount:     s.StakeAmount,
		MoveCount:       s.MoveCount,
		AuxState:        s.AuxState,
		Revision:        s.Revision,
		ServerTime:      now,
	}
	if v.Participants == nil {
		v.Participants = []string{}
	}
	if v.ReadyFlags == nil {
		v.ReadyFlags = map[string]bool{}
	}
	if s.CurrentTurnWallet != "" {
		w := s.CurrentTurnWallet
		v.CurrentTurnWallet = &w
	}
	acc := s.Acceptances()
	env := SessionEnvelope{OK: true, Session: v, Acceptances: &acc}
	if viewer != "" {
		env.Viewer = &ViewerView{
			Wallet:   viewer,
			Seat:     game.SeatOf(s, viewer),
			YourTurn: s.IsTurnOf(viewer),
			Quorum:   game.QuorumStateOf(s, viewer),
		}
	}
	return env
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
