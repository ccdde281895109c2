// Package janitor runs periodic housekeeping on the coordinator
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Engine is the housekeeping surface of game.Coordinator
type Engine interface {
	PurgeTokens(ctx context.Context) (int, error)
	CancelStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Clock provides the sweep's notion of now
type Clock interface {
	Now() time.Time
}

type Janitor struct {
	engine     Engine
	clock      Clock
	waitingTTL time.Duration
	timeout    time.Duration
	log        *zap.Logger
	cron       *cron.Cron
}

// New creates a janitor. Waiting rooms older than waitingTTL are cancelled;
// a zero waitingTTL keeps them.
func New(engine Engine, clk Clock, waitingTTL time.Duration, log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{
		engine:     engine,
		clock:      clk,
		waitingTTL: waitingTTL,
		timeout:    30 * time.Second,
		log:        log,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Sweep runs one housekeeping pass
func (j *Janitor) Sweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	purged, err := j.engine.PurgeTokens(ctx)
	if err != nil {
		return fmt.Errorf("purge tokens: %w", err)
	}
	cancelled := 0
	if j.waitingTTL > 0 {
		cancelled, err = j.engine.CancelStale(ctx, j.clock.Now().Add(-j.waitingTTL))
		if err != nil {
			return fmt.Errorf("cancel stale rooms: %w", err)
		}
	}
	if purged > 0 || cancelled > 0 {
		j.log.Info("housekeeping", zap.Int("tokensPurged", purged), zap.Int("roomsCancelled", cancelled))
	}
	return nil
}

// Run schedules Sweep on spec (cron syntax or "@every 1m") until ctx is done
func (j *Janitor) Run(ctx context.Context, spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		if err := j.Sweep(ctx); err != nil {
			j.log.Warn("housekeeping failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	return nil
}
