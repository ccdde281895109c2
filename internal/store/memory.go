package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// MemoryStore keeps sessions, tokens and receipts in process.
// Each room has its own record lock so updates to different rooms never contend.
type MemoryStore struct {
	sessions map[string]*record
	tokens   map[string]models.SessionToken
	receipts map[receiptKey]models.SettlementReceipt
	mu       sync.RWMutex
}

type record struct {
	mu      sync.Mutex
	session *models.GameSession
}

type receiptKey struct {
	room string
	kind models.ReceiptKind
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*record),
		tokens:   make(map[string]models.SessionToken),
		receipts: make(map[receiptKey]models.SettlementReceipt),
	}
}

// Create stores a new session; fails if the room already exists
func (s *MemoryStore) Create(_ context.Context, session *models.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.RoomID]; exists {
		return models.Errorf(models.CodeRoomExists, "room %s", session.RoomID)
	}
	s.sessions[session.RoomID] = &record{session: session.Clone()}
	return nil
}

// Get returns a copy of the session
func (s *MemoryStore) Get(_ context.Context, roomID string) (*models.GameSession, error) {
	rec, ok := s.record(roomID)
	if !ok {
		return nil, notFound(roomID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session.Clone(), nil
}

// Update runs fn against a copy under the record lock and commits it on success
func (s *MemoryStore) Update(ctx context.Context, roomID string, fn UpdateFunc) (*models.GameSession, error) {
	rec, ok := s.record(roomID)
	if !ok {
		return nil, notFound(roomID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next := rec.session.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Revision = rec.session.Revision + 1
	rec.session = next
	return next.Clone(), nil
}

// RoomIDs lists known rooms in sorted order
func (s *MemoryStore) RoomIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) record(roomID string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[roomID]
	return rec, ok
}

// PutToken stores a session token
func (s *MemoryStore) PutToken(_ context.Context, t models.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = t
	return nil
}

// GetToken looks up a token. Expiry is checked by the caller.
func (s *MemoryStore) GetToken(_ context.Context, token string) (models.SessionToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	if !ok {
		return models.SessionToken{}, models.Errorf(models.CodeUnauthorized, "unknown session token")
	}
	return t, nil
}

// PurgeTokens drops every token expired at now
func (s *MemoryStore) PurgeTokens(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

// Claim inserts a pending receipt unless one exists
func (s *MemoryStore) Claim(_ context.Context, r models.SettlementReceipt) (models.SettlementReceipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := receiptKey{r.RoomID, r.Kind}
	if existing, ok := s.receipts[k]; ok {
		return existing, false, nil
	}
	r.State = models.ReceiptPending
	s.receipts[k] = r
	return r, true, nil
}

// Complete marks a pending receipt as done
func (s *MemoryStore) Complete(_ context.Context, roomID string, kind models.ReceiptKind, signature string, closed bool) (models.SettlementReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := receiptKey{roomID, kind}
	r, ok := s.receipts[k]
	if !ok {
		return models.SettlementReceipt{}, ErrNoReceipt
	}
	if r.State == models.ReceiptPending {
		r.State = models.ReceiptDone
		r.Signature = signature
		r.AlreadyClosed = closed
		r.UpdatedAt = time.Now()
		s.receipts[k] = r
	}
	return r, nil
}

// Release removes a pending claim so the settlement can be attempted again
func (s *MemoryStore) Release(_ context.Context, roomID string, kind models.ReceiptKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := receiptKey{roomID, kind}
	if r, ok := s.receipts[k]; ok && r.State == models.ReceiptPending {
		delete(s.receipts, k)
	}
	return nil
}

// Receipt returns the stored receipt
func (s *MemoryStore) Receipt(_ context.Context, roomID string, kind models.ReceiptKind) (models.SettlementReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[receiptKey{roomID, kind}]
	if !ok {
		return models.SettlementReceipt{}, ErrNoReceipt
	}
	return r, nil
}
