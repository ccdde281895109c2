package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPayer(t *testing.T) {
	p := NewLedgerPayer()
	ctx := context.Background()
	o := Order{RoomID: "ROOM01", Winner: "alice", Reason: "normal", Amount: decimal.NewFromInt(19), Fee: decimal.NewFromInt(1)}

	sig, err := p.Payout(ctx, o)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	_, err = p.Payout(ctx, o)
	assert.ErrorIs(t, err, ErrAccountClosed)
	assert.Len(t, p.Orders(), 1)

	r := RefundOrder{RoomID: "ROOM02", Participants: []string{"alice", "bob"}, Stake: decimal.NewFromInt(10)}
	_, err = p.Refund(ctx, r)
	require.NoError(t, err)
	_, err = p.Refund(ctx, r)
	assert.ErrorIs(t, err, ErrAccountClosed)
	assert.Len(t, p.Refunds(), 1)

	p.RefundDisabled = true
	_, err = p.Refund(ctx, RefundOrder{RoomID: "ROOM03"})
	assert.ErrorIs(t, err, ErrUnavailable)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Payout(cancelled, Order{RoomID: "ROOM04"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPPayer(t *testing.T) {
	var got Order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payout":
			_ = json.NewDecoder(r.Body).Decode(&got)
			switch got.RoomID {
			case "CLOSED":
				_, _ = w.Write([]byte(`{"error":"already_closed"}`))
			case "NOPE":
				_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			case "FAIL":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"rpc node down"}`))
			case "EMPTY":
				_, _ = w.Write([]byte(`{}`))
			default:
				_, _ = w.Write([]byte(`{"signature":"5ig"}`))
			}
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	defer srv.Close()
	p := NewHTTPPayer(srv.URL, nil)
	ctx := context.Background()

	sig, err := p.Payout(ctx, Order{RoomID: "ROOM01", Winner: "alice", Amount: decimal.RequireFromString("19.5")})
	require.NoError(t, err)
	assert.Equal(t, "5ig", sig)
	assert.Equal(t, "alice", got.Winner)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("19.5")))

	_, err = p.Payout(ctx, Order{RoomID: "CLOSED"})
	assert.ErrorIs(t, err, ErrAccountClosed)
	_, err = p.Payout(ctx, Order{RoomID: "NOPE"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = p.Payout(ctx, Order{RoomID: "FAIL"})
	assert.ErrorContains(t, err, "rpc node down")
	_, err = p.Payout(ctx, Order{RoomID: "EMPTY"})
	assert.Error(t, err)

	_, err = p.Refund(ctx, RefundOrder{RoomID: "ROOM01"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
