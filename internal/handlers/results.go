package handlers

import (
	"net/http"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
)

// HandleSettle pays out a finished staked match. Settlement may be
// triggered by any observer; the recorded winner is authoritative.
func (ctx *Context) HandleSettle(w http.ResponseWriter, r *http.Request) {
	var req api.SettleRequest
	if !ctx.decode(w, r, &req) {
		return
	}

	res, err := ctx.Engine.Settle(r.Context(), req.RoomID, req.WinnerWallet, req.Reason)
	ctx.writeSettle(w, r, req.RoomID, res, err)
}

// HandleRefundDraw returns the stakes of a drawn match
func (ctx *Context) HandleRefundDraw(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}

	res, err := ctx.Engine.RefundDraw(r.Context(), req.RoomID)
	ctx.writeSettle(w, r, req.RoomID, res, err)
}

func (ctx *Context) writeSettle(w http.ResponseWriter, r *http.Request, roomID string, res models.SettleResult, err error) {
	if err != nil {
		ctx.fail(w, r, roomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, api.SettleResponse{
		Result:          ok(),
		Signature:       res.Signature,
		AlreadySettled:  res.AlreadySettled,
		AlreadyClosed:   res.AlreadyClosed,
		AlreadyRefunded: res.AlreadyRefunded,
	})
}
