package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/sse"
)

const (
	wsPingInterval = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// wsMsg is the websocket envelope: the event name and its JSON payload
type wsMsg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

// HandleWS is the websocket twin of HandleSSE. The socket is push only;
// client frames are discarded.
func (ctx *Context) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(ctx.AllowOrigins)})
	if err != nil {
		ctx.Log.Debug("ws accept", logging.Room(roomID), zap.Error(err))
		return
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "bye") }()

	viewer, initial, err := ctx.subscribe(r, roomID)
	if err != nil {
		_ = writeWS(r.Context(), c, errorEvent(err))
		_ = c.Close(websocket.StatusPolicyViolation, string(models.CodeOf(err)))
		return
	}

	ch, unsubscribe := ctx.Push.Subscribe(roomID, viewer)
	defer unsubscribe()
	ctx.Log.Debug("ws connected", logging.Room(roomID), logging.Wallet(viewer))

	connCtx := c.CloseRead(r.Context())
	if err := writeWS(connCtx, c, initial); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-connCtx.Done():
			ctx.Log.Debug("ws disconnected", logging.Room(roomID), logging.Wallet(viewer))
			return
		case msg := <-ch:
			if err := writeWS(connCtx, c, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.Ping(connCtx); err != nil {
				return
			}
		}
	}
}

func writeWS(ctx context.Context, c *websocket.Conn, msg sse.Message) error {
	raw, err := json.Marshal(wsMsg{T: msg.Event, M: msg.Data})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, raw)
}

// originPatterns turns allowed origins into the host patterns websocket.Accept matches
func originPatterns(allow []string) []string {
	var out []string
	for _, a := range allow {
		if a == "" {
			continue
		}
		if _, host, ok := strings.Cut(a, "://"); ok {
			a = host
		}
		out = append(out, a)
	}
	return out
}
