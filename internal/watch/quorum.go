package watch

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// Sessions fetches the read model
type Sessions interface {
	GetSession(ctx context.Context, roomID string) (*api.SessionResponse, error)
}

// WaitForQuorum polls until the server reports every seat accepted.
// Transport failures are retried; application errors and a room that
// ends before starting are returned.
func WaitForQuorum(ctx context.Context, s Sessions, roomID string, interval time.Duration, clk clock.Clock, log *zap.Logger) (*api.SessionResponse, error) {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		resp, err := s.GetSession(ctx, roomID)
		switch {
		case err != nil && client.IsTransport(err):
			log.Warn("poll quorum", logging.Room(roomID), zap.Error(err))
		case err != nil:
			return nil, err
		case resp.Acceptances != nil && resp.Acceptances.BothAccepted:
			return resp, nil
		case resp.Session.Status.Terminal():
			return resp, models.Errorf(models.CodeSessionFinished, "room %s ended before quorum", roomID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
