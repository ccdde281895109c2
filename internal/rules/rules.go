// Package rules classifies submitted moves. Per-game legality lives behind
// the Engine port; the coordination engine only needs to know whether a move
// closes the turn and whether it ends the match.
package rules

import (
	"bytes"
	"encoding/json"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// Outcome is a terminal result reported by the engine
type Outcome struct {
	Winner string
	Draw   bool
}

// Verdict is the engine's classification of one move
type Verdict struct {
	TurnEnding bool
	Outcome    *Outcome
}

// Engine evaluates a move against the current session. A returned error
// rejects the move without any state change.
type Engine interface {
	Evaluate(s *models.GameSession, m models.Move) (Verdict, error)
}

// Declared trusts flags carried in the move payload:
//
//	{"endsTurn": false}                  intermediate step
//	{"result": "win", "winner": "<w>"}   match over, winner defaults to mover
//	{"result": "draw"}                   match drawn
//
// Anything that is not a JSON object is a plain turn-ending move.
type Declared struct{}

type declaredMove struct {
	EndsTurn *bool  `json:"endsTurn"`
	Result   string `json:"result"`
	Winner   string `json:"winner"`
}

// Evaluate implements Engine
func (Declared) Evaluate(s *models.GameSession, m models.Move) (Verdict, error) {
	raw := bytes.TrimSpace(m.MoveData)
	if len(raw) == 0 || raw[0] != '{' {
		return Verdict{TurnEnding: true}, nil
	}
	var d declaredMove
	if err := json.Unmarshal(raw, &d); err != nil {
		return Verdict{}, models.Errorf(models.CodeInvalidInput, "moveData: %v", err)
	}

	v := Verdict{TurnEnding: d.EndsTurn == nil || *d.EndsTurn}
	switch d.Result {
	case "":
	case "draw":
		v.Outcome = &Outcome{Draw: true}
	case "win":
		winner := d.Winner
		if winner == "" {
			winner = m.Wallet
		}
		if !s.IsParticipant(winner) {
			return Verdict{}, models.Errorf(models.CodeInvalidInput, "winner %s is not seated", winner)
		}
		v.Outcome = &Outcome{Winner: winner}
	default:
		return Verdict{}, models.Errorf(models.CodeInvalidInput, "unknown result %q", d.Result)
	}
	return v, nil
}
