package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
)

// HandleCreateRoom opens a room and seats the creator
func (ctx *Context) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}

	s, tok, err := ctx.Engine.CreateRoom(r.Context(), game.CreateRoomRequest{
		Creator:         req.Wallet,
		Mode:            req.Mode,
		MaxPlayers:      req.MaxPlayers,
		TurnTimeSeconds: req.TurnTimeSeconds,
		Stake:           req.Stake,
	})
	if err != nil {
		ctx.fail(w, r, "", err)
		return
	}
	ctx.Log.Info("room created", logging.Room(s.RoomID), logging.Wallet(req.Wallet),
		zap.String("mode", string(s.Mode)), zap.Int("maxPlayers", s.MaxPlayers))
	render.WriteJSON(w, http.StatusOK, ctx.tokenResponse(s.RoomID, tok))
}

// HandleJoinRoom seats a wallet. A seated wallet must present its token to
// have it renewed.
func (ctx *Context) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}

	s, tok, err := ctx.Engine.JoinRoom(r.Context(), req.RoomID, req.Wallet, sessionToken(r))
	if err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	ctx.Log.Debug("room joined", logging.Room(s.RoomID), logging.Wallet(req.Wallet),
		zap.Int("seat", game.SeatOf(s, req.Wallet)))
	render.WriteJSON(w, http.StatusOK, ctx.tokenResponse(s.RoomID, tok))
}

// HandleCancelRoom cancels a waiting room on its creator's request
func (ctx *Context) HandleCancelRoom(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if !ctx.authorize(w, r, req.RoomID, req.Wallet) {
		return
	}

	if _, err := ctx.Engine.CancelRoom(r.Context(), req.RoomID, req.Wallet); err != nil {
		ctx.fail(w, r, req.RoomID, err)
		return
	}
	render.WriteJSON(w, http.StatusOK, ok())
}

// HandleGetSession returns the read model. The wallet is optional and only
// adds the viewer block.
func (ctx *Context) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	var req api.RoomRequest
	if !ctx.decode(w, r, &req) {
		return
	}
	if req.RoomID == "" {
		render.WriteJSON(w, http.StatusOK, render.SessionEnvelope{Error: models.CodeInvalidInput})
		return
	}

	s, err := ctx.Engine.GetSession(r.Context(), req.RoomID)
	if err != nil {
		code, status := ctx.failure(r, req.RoomID, err)
		render.WriteJSON(w, status, render.SessionEnvelope{Error: code})
		return
	}
	render.WriteJSON(w, http.StatusOK, render.Session(s, req.Wallet, ctx.Clock.Now()))
}

// HandleInviteQR serves a PNG of the room's invite link
func (ctx *Context) HandleInviteQR(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if !game.ValidRoomCode(roomID) {
		http.Error(w, "invalid room code", http.StatusBadRequest)
		return
	}
	png, err := render.InviteQR(render.InviteLink(ctx.PublicURL, roomID), 256)
	if err != nil {
		ctx.Log.Error("render invite", logging.Room(roomID), zap.Error(err))
		http.Error(w, "failed to render invite", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (ctx *Context) tokenResponse(roomID string, tok models.SessionToken) api.TokenResponse {
	return api.TokenResponse{
		Result:       ok(),
		RoomID:       roomID,
		SessionToken: tok.Token,
		ExpiresAt:    tok.ExpiresAt,
		InviteURL:    render.InviteLink(ctx.PublicURL, roomID),
	}
}
