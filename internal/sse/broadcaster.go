// Package sse fans committed session changes out to push subscribers
package sse

import (
	"context"
	"encoding/json"
	"maps"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/render"
)

const (
	// BufferSize is the buffer size for subscriber channels
	BufferSize = 10

	queueSize = 256
)

// Broadcaster keeps per-room subscribers and pushes every session change
// to them. It implements game.Notifier.
type Broadcaster struct {
	mu    sync.RWMutex
	rooms map[string]map[chan Message]string // channel -> viewer wallet

	queue chan *models.GameSession
	clock clock.Clock
	log   *zap.Logger
}

// New creates a Broadcaster; call Run to start delivery
func New(clk clock.Clock, log *zap.Logger) *Broadcaster {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		rooms: make(map[string]map[chan Message]string),
		queue: make(chan *models.GameSession, queueSize),
		clock: clk,
		log:   log,
	}
}

// Subscribe registers a subscriber for roomID. The returned func removes it.
func (b *Broadcaster) Subscribe(roomID, viewer string) (<-chan Message, func()) {
	ch := make(chan Message, BufferSize)
	b.mu.Lock()
	subs, ok := b.rooms[roomID]
	if !ok {
		subs = make(map[chan Message]string)
		b.rooms[roomID] = subs
	}
	dup := 0
	for _, v := range subs {
		if viewer != "" && v == viewer {
			dup++
		}
	}
	subs[ch] = viewer
	b.mu.Unlock()

	if dup > 0 {
		b.log.Debug("viewer opened additional subscription", logging.Room(roomID),
			logging.Wallet(viewer), zap.Int("existing", dup))
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.rooms[roomID], ch)
			if len(b.rooms[roomID]) == 0 {
				delete(b.rooms, roomID)
			}
		})
	}
}

// Subscribers counts the subscribers of a room
func (b *Broadcaster) Subscribers(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[roomID])
}

// SessionChanged queues s for delivery without blocking the caller
func (b *Broadcaster) SessionChanged(s *models.GameSession) {
	select {
	case b.queue <- s:
	default:
		b.log.Warn("push queue full, dropping update", logging.Room(s.RoomID), zap.Int64("revision", s.Revision))
	}
}

// Run delivers queued updates until ctx is done
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.queue:
			b.Publish(s)
		}
	}
}

// Publish sends a personalized session event to every subscriber of the room
func (b *Broadcaster) Publish(s *models.GameSession) {
	now := b.clock.Now()
	b.publish(s.RoomID, EventSession, func(viewer string) []byte {
		raw, err := json.Marshal(render.Session(s, viewer, now))
		if err != nil {
			b.log.Error("encode session event", logging.Room(s.RoomID), zap.Error(err))
			return nil
		}
		return raw
	})
}

// publish renders one payload per subscriber. Subscribers are collected
// under the lock and sent to after it is released. Sends never block: a
// subscriber with a full buffer loses its oldest pending event, and every
// event is a full snapshot, so it still ends on the latest state.
func (b *Broadcaster) publish(roomID, event string, renderFn func(viewer string) []byte) {
	b.mu.RLock()
	subs := maps.Clone(b.rooms[roomID])
	b.mu.RUnlock()

	dropped := 0
	for ch, viewer := range subs {
		data := renderFn(viewer)
		if data == nil {
			continue
		}
		if !offer(ch, Message{Event: event, Data: data}) {
			dropped++
			b.log.Debug("subscriber lagging, dropped oldest event", logging.Room(roomID), logging.Wallet(viewer))
		}
	}
	b.log.Debug("push", logging.Room(roomID), zap.String("event", event),
		zap.Int("subscribers", len(subs)), zap.Int("lagging", dropped))
}

// offer queues msg on ch, evicting the oldest queued message when ch is
// full. Reports false when something was evicted.
func offer(ch chan Message, msg Message) bool {
	select {
	case ch <- msg:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
	return false
}
