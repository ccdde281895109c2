package game

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/payout"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/roster"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

type fixture struct {
	c      *Coordinator
	store  *store.MemoryStore
	clock  *clock.Mock
	payer  *payout.LedgerPayer
	roster *countingRoster
}

type countingRoster struct {
	*roster.Static
	calls atomic.Int32
}

func (r *countingRoster) Participants(ctx context.Context, roomID string) ([]string, error) {
	r.calls.Add(1)
	return r.Static.Participants(ctx, roomID)
}

func newFixture(t *testing.T, mutate ...func(*Deps, *Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		clock:  clock.NewMock(),
		payer:  payout.NewLedgerPayer(),
		roster: &countingRoster{Static: roster.NewStatic()},
	}
	deps := Deps{
		Sessions: f.store,
		Tokens:   f.store,
		Receipts: f.store,
		Roster:   f.roster,
		Payer:    f.payer,
		Clock:    f.clock,
	}
	opts := Options{FeeBps: 500}
	for _, m := range mutate {
		m(&deps, &opts)
	}
	f.c = New(deps, opts)
	return f
}

// activeRoom creates a room seating players in order and brings it to turn 1
func (f *fixture) activeRoom(t *testing.T, mode models.GameMode, players ...string) *models.GameSession {
	t.Helper()
	ctx := context.Background()
	stake := decimal.Zero
	if mode.Staked() {
		stake = decimal.NewFromInt(10)
	}
	s, _, err := f.c.CreateRoom(ctx, CreateRoomRequest{
		Creator:         players[0],
		Mode:            mode,
		MaxPlayers:      len(players),
		TurnTimeSeconds: 60,
		Stake:           stake,
	})
	require.NoError(t, err)
	for _, p := range players[1:] {
		_, _, err := f.c.JoinRoom(ctx, s.RoomID, p, "")
		require.NoError(t, err)
	}
	if mode.RequiresQuorum() {
		for _, p := range players {
			_, err := f.c.AcceptRules(ctx, s.RoomID, p)
			require.NoError(t, err)
		}
	}
	s, err = f.c.GetSession(ctx, s.RoomID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, s.Status)
	return s
}

func (f *fixture) move(roomID, wallet, data, clientMoveID string, turn int) (models.MoveResult, error) {
	return f.c.SubmitMove(context.Background(), MoveRequest{
		RoomID:       roomID,
		Wallet:       wallet,
		MoveData:     json.RawMessage(data),
		ClientMoveID: clientMoveID,
		TurnNumber:   turn,
	})
}

func (f *fixture) session(t *testing.T, roomID string) *models.GameSession {
	t.Helper()
	s, err := f.c.GetSession(context.Background(), roomID)
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, code models.Code, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.CodeOf(err), "error: %v", err)
}
