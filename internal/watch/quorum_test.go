package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

type scriptedSessions struct {
	mu    sync.Mutex
	steps []func() (*api.SessionResponse, error)
	polls int
}

func (s *scriptedSessions) GetSession(context.Context, string) (*api.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.polls, len(s.steps)-1)
	s.polls++
	return s.steps[i]()
}

func accepted(n, of int, status models.GameStatus) func() (*api.SessionResponse, error) {
	return func() (*api.SessionResponse, error) {
		return &api.SessionResponse{
			OK:          true,
			Session:     &api.SessionView{Status: status, MaxPlayers: of},
			Acceptances: &models.Acceptances{AcceptedCount: n, RequiredCount: of, BothAccepted: n >= of},
		}, nil
	}
}

func waitAsync(s Sessions, clk *clock.Mock) (<-chan *api.SessionResponse, <-chan error) {
	out := make(chan *api.SessionResponse, 1)
	errc := make(chan error, 1)
	go func() {
		resp, err := WaitForQuorum(context.Background(), s, "ROOM01", time.Second, clk, nil)
		out <- resp
		errc <- err
	}()
	return out, errc
}

func drive(t *testing.T, clk *clock.Mock, out <-chan *api.SessionResponse) *api.SessionResponse {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case resp := <-out:
			return resp
		case <-deadline:
			t.Fatal("quorum wait did not return")
		case <-time.After(5 * time.Millisecond):
			clk.Add(time.Second)
		}
	}
}

func TestWaitForQuorumNeedsServerConfirmation(t *testing.T) {
	clk := clock.NewMock()
	s := &scriptedSessions{steps: []func() (*api.SessionResponse, error){
		accepted(0, 4, models.StatusWaiting),
		func() (*api.SessionResponse, error) { return nil, &client.TransportError{Op: "get-session", Status: 503} },
		accepted(3, 4, models.StatusWaiting),
		accepted(4, 4, models.StatusActive),
	}}
	out, errc := waitAsync(s, clk)
	resp := drive(t, clk, out)
	require.NoError(t, <-errc)
	assert.Equal(t, 4, resp.Acceptances.AcceptedCount)
	assert.GreaterOrEqual(t, s.polls, 4)
}

func TestWaitForQuorumRoomEnded(t *testing.T) {
	clk := clock.NewMock()
	s := &scriptedSessions{steps: []func() (*api.SessionResponse, error){
		accepted(1, 2, models.StatusCancelled),
	}}
	out, errc := waitAsync(s, clk)
	drive(t, clk, out)
	assert.Equal(t, models.CodeSessionFinished, models.CodeOf(<-errc))
}

func TestWaitForQuorumApplicationError(t *testing.T) {
	clk := clock.NewMock()
	s := &scriptedSessions{steps: []func() (*api.SessionResponse, error){
		func() (*api.SessionResponse, error) { return nil, models.NewError(models.CodeRoomNotFound) },
	}}
	out, errc := waitAsync(s, clk)
	assert.Nil(t, drive(t, clk, out))
	assert.Equal(t, models.CodeRoomNotFound, models.CodeOf(<-errc))
}
