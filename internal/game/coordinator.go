package game

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/metrics"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/payout"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/roster"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/rules"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

// Notifier is told about every committed session change. It is called
// after the record lock is released and must not block.
type Notifier interface {
	SessionChanged(s *models.GameSession)
}

type nopNotifier struct{}

func (nopNotifier) SessionChanged(*models.GameSession) {}

// errUnchanged aborts an update that found nothing to write
var errUnchanged = errors.New("unchanged")

// Deps are the collaborators of a Coordinator. Sessions, Tokens and
// Receipts are required; everything else has a working default.
type Deps struct {
	Sessions store.SessionStore
	Tokens   store.TokenStore
	Receipts store.ReceiptStore
	Rules    rules.Engine
	Roster   roster.Source
	Payer    payout.Payer
	Notifier Notifier
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Options tune the coordination rules
type Options struct {
	// FeeBps is the house fee on a win payout in basis points
	FeeBps int
	// MaxMisses is how many consecutive lapses turn a skip into a forfeit
	MaxMisses int
	// TokenTTL is the lifetime of issued session tokens
	TokenTTL time.Duration
}

// Coordinator is the server side of the engine: it owns every mutation of
// a GameSession and routes each through the store's record lock.
type Coordinator struct {
	sessions store.SessionStore
	tokens   store.TokenStore
	receipts store.ReceiptStore
	rules    rules.Engine
	roster   roster.Source
	payer    payout.Payer
	notify   Notifier
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// New builds a Coordinator
func New(d Deps, opts Options) *Coordinator {
	c := &Coordinator{
		sessions: d.Sessions,
		tokens:   d.Tokens,
		receipts: d.Receipts,
		rules:    d.Rules,
		roster:   d.Roster,
		payer:    d.Payer,
		notify:   d.Notifier,
		clock:    d.Clock,
		log:      d.Logger,
		metrics:  d.Metrics,
		opts:     opts,
	}
	if c.rules == nil {
		c.rules = rules.Declared{}
	}
	if c.notify == nil {
		c.notify = nopNotifier{}
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.opts.MaxMisses <= 0 {
		c.opts.MaxMisses = DefaultMaxMisses
	}
	if c.opts.TokenTTL <= 0 {
		c.opts.TokenTTL = DefaultTokenTTL
	}
	return c
}

// MaxMisses is the effective forfeit threshold
func (c *Coordinator) MaxMisses() int {
	return c.opts.MaxMisses
}

// Clock is the time source used for turn deadlines
func (c *Coordinator) Clock() clock.Clock {
	return c.clock
}

// update runs fn under the record lock and publishes the committed session.
// errUnchanged from fn is not an error: the current session is returned
// as is and nothing is published.
func (c *Coordinator) update(ctx context.Context, roomID string, fn store.UpdateFunc) (*models.GameSession, error) {
	s, err := c.sessions.Update(ctx, roomID, func(s *models.GameSession) error {
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = c.clock.Now()
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return c.sessions.Get(ctx, roomID)
	}
	if err != nil {
		return nil, err
	}
	c.notify.SessionChanged(s)
	return s, nil
}

// GetSession returns the current session
func (c *Coordinator) GetSession(ctx context.Context, roomID string) (*models.GameSession, error) {
	if roomID == "" {
		return nil, models.Errorf(models.CodeInvalidInput, "roomId required")
	}
	return c.sessions.Get(ctx, roomID)
}
