package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
)

const maxBodyBytes = 64 << 10

// decode reads a JSON body; an unparseable body is a transport-level 400
func (ctx *Context) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		render.WriteJSON(w, http.StatusBadRequest, api.Result{Error: models.CodeInvalidInput, Message: "malformed request body"})
		return false
	}
	return true
}

// statusFor keeps application outcomes on 200 and lets store and internal
// failures surface as transport errors so callers retry them
func statusFor(code models.Code) int {
	switch code {
	case models.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case models.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// failure logs err when it is not an application outcome and returns its code and status
func (ctx *Context) failure(r *http.Request, roomID string, err error) (models.Code, int) {
	code := models.CodeOf(err)
	status := statusFor(code)
	if status != http.StatusOK {
		ctx.Log.Error("rpc failed", zap.String("path", r.URL.Path), logging.Room(roomID), zap.Error(err))
	}
	return code, status
}

func (ctx *Context) fail(w http.ResponseWriter, r *http.Request, roomID string, err error) {
	code, status := ctx.failure(r, roomID, err)
	render.WriteJSON(w, status, api.Result{Error: code})
}

func ok() api.Result {
	return api.Result{Success: true}
}

// authorize checks the session token when tokens are required. It writes
// the unauthorized response itself.
func (ctx *Context) authorize(w http.ResponseWriter, r *http.Request, roomID, wallet string) bool {
	if !ctx.RequireToken {
		return true
	}
	if err := ctx.Engine.Authorize(r.Context(), sessionToken(r), roomID, wallet); err != nil {
		ctx.fail(w, r, roomID, err)
		return false
	}
	return true
}

func sessionToken(r *http.Request) string {
	if t := r.Header.Get(api.SessionTokenHeader); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
