package watch

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/handlers"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/sse"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

// TestThreeLapsesForfeit drives a detector against a real server sharing
// one mock clock: two skips, then a forfeit on the third lapse.
func TestThreeLapsesForfeit(t *testing.T) {
	clk := clock.NewMock()
	mem := store.NewMemoryStore()
	engine := game.New(game.Deps{Sessions: mem, Tokens: mem, Receipts: mem, Clock: clk}, game.Options{})
	srv := httptest.NewServer((&handlers.Context{Engine: engine, Push: sse.New(clk, nil), Clock: clk}).Routes())
	defer srv.Close()

	ctx := context.Background()
	alice := client.New(srv.URL, "alice")
	bob := client.New(srv.URL, "bob")
	room, err := alice.CreateRoom(ctx, api.CreateRoomRequest{Mode: models.ModeCasual, MaxPlayers: 2, TurnTimeSeconds: 60})
	require.NoError(t, err)
	_, err = bob.JoinRoom(ctx, room.RoomID)
	require.NoError(t, err)

	d := NewDetector(bob, room.RoomID, "bob", Config{MaxMisses: 3}, WithClock(clk))

	for lapse := 1; lapse <= 3; lapse++ {
		st, err := d.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatePolling, st)

		clk.Add(64 * time.Second)
		st, err = d.Tick(ctx)
		require.NoError(t, err)
		if lapse < 3 {
			require.Equal(t, StateEscalatedSkip, st, "lapse %d", lapse)
			view, err := bob.GetSession(ctx, room.RoomID)
			require.NoError(t, err)
			assert.Equal(t, lapse, view.Session.MissedTurns["alice"])
			assert.Equal(t, "bob", view.Session.Holder())

			st, _ = d.Tick(ctx)
			assert.Equal(t, StateIdle, st)
			_, err = bob.SubmitMove(ctx, api.SubmitMoveRequest{RoomID: room.RoomID, MoveData: json.RawMessage(`{}`)})
			require.NoError(t, err)
			continue
		}
		assert.Equal(t, StateDone, st)
	}

	view, err := alice.GetSession(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, view.Session.Status)
	assert.Equal(t, "bob", view.Session.Winner)
	assert.Equal(t, models.ReasonTimeout, view.Session.WinReason)
}
