package handlers

import (
	"context"
	"net/http"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
)

// HandleSubmitMove forwards a move to the gateway
func (ctx *Context) HandleSubmitMove(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitMoveRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if !ctx.authorize(w, r, req.RoomID, req.Wallet) {
		return
	}

	res, err := ctx.Engine.SubmitMove(r.Context(), game.MoveRequest{
		RoomID:       req.RoomID,
		Wallet:       req.Wallet,
		MoveData:     req.MoveData,
		ClientMoveID: req.ClientMoveID,
		TurnNumber:   req.TurnNumber,
	})
	if err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, api.SubmitMoveResponse{
		Result:       ok(),
		TurnSwitched: res.TurnSwitched,
		TurnNumber:   res.TurnNumber,
		Finished:     res.Finished,
	})
}

// HandleAcceptRules records a rules acceptance
func (ctx *Context) HandleAcceptRules(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if !ctx.authorize(w, r, req.RoomID, req.Wallet) {
		return
	}

	acc, err := ctx.Engine.AcceptRules(r.Context(), req.RoomID, req.Wallet)
	if err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, api.AcceptRulesResponse{Result: ok(), Acceptances: &acc})
}

func (ctx *Context) HandleSkipTurn(w http.ResponseWriter, r *http.Request) {
	ctx.escalate(w, r, ctx.Engine.SkipTurn)
}

func (ctx *Context) HandleForfeitTurn(w http.ResponseWriter, r *http.Request) {
	ctx.escalate(w, r, ctx.Engine.ForfeitTurn)
}

type escalateFunc func(ctx context.Context, req game.EscalationRequest) (game.EscalationResult, error)

func (ctx *Context) escalate(w http.ResponseWriter, r *http.Request, fn escalateFunc) {
	var req api.EscalationRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if !ctx.authorize(w, r, req.RoomID, req.Wallet) {
		return
	}

	res, err := fn(r.Context(), game.EscalationRequest{
		RoomID:     req.RoomID,
		Reporter:   req.Wallet,
		Lapsed:     req.LapsedWallet,
		TurnNumber: req.TurnNumber,
	})
	if err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, api.EscalationResponse{
		Result:       ok(),
		TurnSwitched: res.TurnSwitched,
		TurnNumber:   res.TurnNumber,
		MissedTurns:  res.MissedTurns,
		Finished:     res.Finished,
		Winner:       res.Winner,
	})
}

// HandleResign concedes the match for the caller
func (ctx *Context) HandleResign(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if !ctx.authorize(w, r, req.RoomID, req.Wallet) {
		return
	}

	if _, err := ctx.Engine.Resign(r.Context(), req.RoomID, req.Wallet); err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, ok())
}
