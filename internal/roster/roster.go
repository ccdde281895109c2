// Package roster resolves the authoritative participant list of a room
// from a source outside the session store, such as an on-chain registry
// whose join finality lags the session record.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

// Source returns the ordered participant list for a room
type Source interface {
	Participants(ctx context.Context, roomID string) ([]string, error)
}

// Static is an in-process Source, filled by whatever observes joins
type Static struct {
	mu    sync.RWMutex
	rooms map[string][]string
}

// NewStatic creates an empty Static source
func NewStatic() *Static {
	return &Static{rooms: make(map[string][]string)}
}

// Set replaces the roster for a room
func (s *Static) Set(roomID string, wallets ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = slices.Clone(wallets)
}

// Participants implements Source
func (s *Static) Participants(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rooms[roomID]), nil
}

// HTTP queries GET {base}/rooms/{roomId}/participants, expecting
// {"participants": ["..."]}
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP builds an HTTP source rooted at base
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(base, "/"), client: client}
}

// Participants implements Source
func (h *HTTP) Participants(ctx context.Context, roomID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/rooms/"+url.PathEscape(roomID)+"/participants", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("roster lookup: status %d", resp.StatusCode)
	}
	var body struct {
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("roster lookup: %w", err)
	}
	return body.Participants, nil
}
