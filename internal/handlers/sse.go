package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/sse"
)

// subscribe resolves the viewer of a push stream and returns the initial
// session event. The viewer is optional; a named viewer must hold a valid
// token when tokens are required.
func (ctx *Context) subscribe(r *http.Request, roomID string) (viewer string, initial sse.Message, err error) {
	viewer = r.URL.Query().Get("wallet")
	if viewer != "" && ctx.RequireToken {
		if err := ctx.Engine.Authorize(r.Context(), sessionToken(r), roomID, viewer); err != nil {
			return "", sse.Message{}, err
		}
	}
	s, err := ctx.Engine.GetSession(r.Context(), roomID)
	if err != nil {
		return "", sse.Message{}, err
	}
	raw, err := json.Marshal(render.Session(s, viewer, ctx.Clock.Now()))
	if err != nil {
		return "", sse.Message{}, err
	}
	return viewer, sse.Message{Event: sse.EventSession, Data: raw}, nil
}

func errorEvent(err error) sse.Message {
	raw, _ := json.Marshal(render.SessionEnvelope{Error: models.CodeOf(err)})
	return sse.Message{Event: sse.EventError, Data: raw}
}

// HandleSSE streams session changes for one room
func (ctx *Context) HandleSSE(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering in nginx/proxies

	viewer, initial, err := ctx.subscribe(r, roomID)
	if err != nil {
		writeEvent(w, errorEvent(err))
		flusher.Flush()
		return
	}

	ch, unsubscribe := ctx.Push.Subscribe(roomID, viewer)
	defer unsubscribe()
	ctx.Log.Debug("sse connected", logging.Room(roomID), logging.Wallet(viewer),
		zap.Int("subscribers", ctx.Push.Subscribers(roomID)))

	writeEvent(w, initial)
	flusher.Flush()

	reqCtx := r.Context()
	for {
		select {
		case <-reqCtx.Done():
			ctx.Log.Debug("sse disconnected", logging.Room(roomID), logging.Wallet(viewer))
			return
		case msg := <-ch:
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg sse.Message) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
}
