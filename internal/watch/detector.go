// Package watch holds the observer-side loops: the turn timeout detector
// and the quorum wait. Both only read server state; neither keeps a local
// flag that could stand in for a server decision.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// API is the part of the RPC surface the observer loops need.
// *client.Client implements it.
type API interface {
	GetSession(ctx context.Context, roomID string) (*api.SessionResponse, error)
	SkipTurn(ctx context.Context, roomID, lapsed string, turnNumber int) (api.EscalationResponse, error)
	ForfeitTurn(ctx context.Context, roomID, lapsed string, turnNumber int) (api.EscalationResponse, error)
}

var _ API = (*client.Client)(nil)

// State of one observer's detector
type State string

const (
	StateIdle             State = "idle"
	StatePolling          State = "polling"
	StateTimeoutPending   State = "timeout_pending"
	StateEscalatedSkip    State = "escalated_skip"
	StateEscalatedForfeit State = "escalated_forfeit"
	StateDone             State = "done"
)

// Event describes an escalation the detector sent
type Event struct {
	RoomID     string
	Lapsed     string
	TurnNumber int
	Misses     int
	State      State
	Result     api.EscalationResponse
}

// Sink receives escalation events, e.g. to play a sound or notify a UI
type Sink func(Event)

// Config tunes a detector
type Config struct {
	PollInterval time.Duration
	MaxMisses    int
}

const DefaultPollInterval = 2 * time.Second

// lapseKey identifies one lapse. The wallet is part of the key so a new
// holder sharing a stale turnStartedAt is not suppressed.
type lapseKey struct {
	startedAt int64
	wallet    string
}

// Detector watches one room on behalf of one participant and escalates
// the holder's lapses. It only acts while someone else holds the turn.
type Detector struct {
	api    API
	roomID string
	self   string
	cfg    Config
	clock  clock.Clock
	log    *zap.Logger
	sink   Sink

	mu      sync.Mutex
	state   State
	handled map[lapseKey]bool
}

type Option func(*Detector)

func WithClock(c clock.Clock) Option  { return func(d *Detector) { d.clock = c } }
func WithLogger(l *zap.Logger) Option { return func(d *Detector) { d.log = l } }
func WithSink(s Sink) Option          { return func(d *Detector) { d.sink = s } }

// NewDetector creates a detector for self in roomID
func NewDetector(a API, roomID, self string, cfg Config, opts ...Option) *Detector {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxMisses <= 0 {
		cfg.MaxMisses = game.DefaultMaxMisses
	}
	d := &Detector{
		api:     a,
		roomID:  roomID,
		self:    self,
		cfg:     cfg,
		clock:   clock.New(),
		log:     zap.NewNop(),
		state:   StateIdle,
		handled: make(map[lapseKey]bool),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With(logging.Room(roomID), zap.String("observer", self))
	return d
}

// State returns the current detector state
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Detector) setState(s State) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateDone {
		d.state = s
	}
	return d.state
}

// mark claims key. It reports false when another tick already owns it.
func (d *Detector) mark(k lapseKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled[k] {
		return false
	}
	d.handled[k] = true
	return true
}

func (d *Detector) unmark(k lapseKey) {
	d.mu.Lock()
	delete(d.handled, k)
	d.mu.Unlock()
}

// Run polls until the match ends or ctx is cancelled. A finished match
// returns nil.
func (d *Detector) Run(ctx context.Context) error {
	ticker := d.clock.Ticker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if st, _ := d.Tick(ctx); st == StateDone {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one poll. Poll failures are logged and returned; they never
// count as a miss and the next tick retries.
func (d *Detector) Tick(ctx context.Context) (State, error) {
	if d.State() == StateDone {
		return StateDone, nil
	}

	resp, err := d.api.GetSession(ctx, d.roomID)
	if err != nil {
		d.log.Warn("poll session", zap.Error(err))
		return d.State(), err
	}
	s := resp.Session

	switch {
	case s.Status.Terminal():
		return d.setState(StateDone), nil
	case s.Status != models.StatusActive:
		return d.setState(StateIdle), nil
	}
	holder := s.Holder()
	if holder == "" || holder == d.self || s.TurnStartedAt == nil || s.TurnTimeSeconds <= 0 {
		return d.setState(StateIdle), nil
	}

	expiry := s.TurnStartedAt.Add(time.Duration(s.TurnTimeSeconds) * time.Second)
	if !d.clock.Now().After(expiry.Add(game.Grace)) {
		return d.setState(StatePolling), nil
	}

	key := lapseKey{startedAt: s.TurnStartedAt.UnixNano(), wallet: holder}
	if !d.mark(key) {
		return d.State(), nil
	}
	d.setState(StateTimeoutPending)
	return d.escalate(ctx, s, key)
}

func (d *Detector) escalate(ctx context.Context, s *api.SessionView, key lapseKey) (State, error) {
	lapsed := s.Holder()
	misses := s.MissedTurns[lapsed] + 1
	log := d.log.With(zap.String("lapsed", lapsed), zap.Int("turn", s.TurnNumber), zap.Int("misses", misses))

	next := StateEscalatedSkip
	var res api.EscalationResponse
	var err error
	if misses >= d.cfg.MaxMisses {
		next = StateEscalatedForfeit
		res, err = d.api.ForfeitTurn(ctx, d.roomID, lapsed, s.TurnNumber)
		if models.CodeOf(err) == models.CodeForfeitNotReached {
			log.Info("server has not reached the forfeit threshold, skipping instead")
			next = StateEscalatedSkip
			res, err = d.api.SkipTurn(ctx, d.roomID, lapsed, s.TurnNumber)
		}
	} else {
		res, err = d.api.SkipTurn(ctx, d.roomID, lapsed, s.TurnNumber)
	}

	switch {
	case err == nil:
	case client.IsTransport(err):
		d.unmark(key)
		log.Warn("escalation not delivered, retrying next tick", zap.Error(err))
		return d.setState(StatePolling), err
	case models.CodeOf(err) == models.CodeNotTimedOut:
		d.unmark(key)
		log.Debug("server clock has not reached the deadline yet")
		return d.setState(StatePolling), nil
	default:
		log.Info("escalation rejected", zap.String("code", string(models.CodeOf(err))))
		return d.setState(StatePolling), nil
	}

	log.Info("turn escalated", zap.String("kind", string(next)), zap.Bool("finished", res.Finished))
	if d.sink != nil {
		d.sink(Event{RoomID: d.roomID, Lapsed: lapsed, TurnNumber: s.TurnNumber, Misses: misses, State: next, Result: res})
	}
	if res.Finished {
		return d.setState(StateDone), nil
	}
	return d.setState(next), nil
}
