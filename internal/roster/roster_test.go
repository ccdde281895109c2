package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic()
	got, err := s.Participants(context.Background(), "ROOM01")
	require.NoError(t, err)
	assert.Empty(t, got)

	wallets := []string{"alice", "bob"}
	s.Set("ROOM01", wallets...)
	wallets[0] = "mallory"
	got, _ = s.Participants(context.Background(), "ROOM01")
	assert.Equal(t, []string{"alice", "bob"}, got)

	got[1] = "eve"
	again, _ := s.Participants(context.Background(), "ROOM01")
	assert.Equal(t, []string{"alice", "bob"}, again)
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rooms/ROOM01/participants":
			_, _ = w.Write([]byte(`{"participants":["alice","bob"]}`))
		case "/rooms/BROKEN/participants":
			w.WriteHeader(http.StatusBadGateway)
		case "/rooms/GARBLE/participants":
			_, _ = w.Write([]byte(`[`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	h := NewHTTP(srv.URL+"/", nil)
	ctx := context.Background()

	got, err := h.Participants(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got)

	got, err = h.Participants(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = h.Participants(ctx, "BROKEN")
	assert.ErrorContains(t, err, "502")
	_, err = h.Participants(ctx, "GARBLE")
	assert.Error(t, err)
}
