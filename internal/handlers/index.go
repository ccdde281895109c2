package handlers

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/metrics"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/sse"
)

// Context holds shared application dependencies
type Context struct {
	Engine  *game.Coordinator
	Push    *sse.Broadcaster
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Clock   clock.Clock

	// RequireToken makes mutating calls present the session token issued at create/join
	RequireToken bool
	PublicURL    string
	AllowOrigins []string
}

// Routes builds the HTTP surface
func (ctx *Context) Routes() http.Handler {
	if ctx.Log == nil {
		ctx.Log = zap.NewNop()
	}
	if ctx.Clock == nil {
		ctx.Clock = clock.New()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathCreateRoom, ctx.HandleCreateRoom)
	mux.HandleFunc("POST "+api.PathJoinRoom, ctx.HandleJoinRoom)
	mux.HandleFunc("POST "+api.PathGetSession, ctx.HandleGetSession)
	mux.HandleFunc("POST "+api.PathCancelRoom, ctx.HandleCancelRoom)
	mux.HandleFunc("POST "+api.PathSubmitMove, ctx.HandleSubmitMove)
	mux.HandleFunc("POST "+api.PathAcceptRules, ctx.HandleAcceptRules)
	mux.HandleFunc("POST "+api.PathSkipTurn, ctx.HandleSkipTurn)
	mux.HandleFunc("POST "+api.PathForfeitTurn, ctx.HandleForfeitTurn)
	mux.HandleFunc("POST "+api.PathResign, ctx.HandleResign)
	mux.HandleFunc("POST "+api.PathSettle, ctx.HandleSettle)
	mux.HandleFunc("POST "+api.PathRefundDraw, ctx.HandleRefundDraw)

	mux.HandleFunc("GET /sse/{roomId}", ctx.HandleSSE)
	mux.HandleFunc("GET /ws/{roomId}", ctx.HandleWS)
	mux.HandleFunc("GET /rooms/{roomId}/invite.png", ctx.HandleInviteQR)
	mux.Handle("GET /metrics", ctx.Metrics.Handler())
	mux.HandleFunc("GET /health", ctx.HandleHealth)

	return ctx.logRequests(cors(ctx.AllowOrigins, mux))
}

// HandleHealth reports liveness
func (ctx *Context) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
