// Package client calls the coordination RPC surface over HTTP. Transport
// failures (network, non-200 status, undecodable body) come back as
// *TransportError; application outcomes come back as *models.Error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

const defaultTimeout = 10 * time.Second

// TransportError is a failure below the application layer. Callers retry
// these with their own backoff.
type TransportError struct {
	Op     string
	Status int
	Code   models.Code
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Code)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client is one wallet's connection to the server
type Client struct {
	base   string
	http   *http.Client
	wallet string

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken presets the session token
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client acting as wallet against base
func New(base, wallet string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: defaultTimeout},
		wallet: wallet,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Wallet is the identity the client acts as
func (c *Client) Wallet() string {
	return c.wallet
}

// Token is the session token of the last create or join
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(t string) {
	if t == "" {
		return
	}
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) call(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t := c.Token(); t != "" {
		req.Header.Set(api.SessionTokenHeader, t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: path, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var r api.Result
		_ = json.Unmarshal(body, &r)
		return &TransportError{Op: path, Status: resp.StatusCode, Code: r.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: path, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// CreateRoom opens a room with this wallet as creator
func (c *Client) CreateRoom(ctx context.Context, req api.CreateRoomRequest) (api.TokenResponse, error) {
	req.Wallet = c.wallet
	var out api.TokenResponse
	if err := c.call(ctx, api.PathCreateRoom, req, &out); err != nil {
		return out, err
	}
	c.setToken(out.SessionToken)
	return out, out.Err()
}

// JoinRoom takes a seat in roomID
func (c *Client) JoinRoom(ctx context.Context, roomID string) (api.TokenResponse, error) {
	var out api.TokenResponse
	if err := c.call(ctx, api.PathJoinRoom, api.RoomRequest{RoomID: roomID, Wallet: c.wallet}, &out); err != nil {
		return out, err
	}
	c.setToken(out.SessionToken)
	return out, out.Err()
}

// GetSession fetches the read model as seen by this wallet
func (c *Client) GetSession(ctx context.Context, roomID string) (*api.SessionResponse, error) {
	var out api.SessionResponse
	if err := c.call(ctx, api.PathGetSession, api.RoomRequest{RoomID: roomID, Wallet: c.wallet}, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return &out, api.Result{Error: out.Error}.Err()
	}
	if out.Session == nil {
		return &out, &TransportError{Op: api.PathGetSession, Status: http.StatusOK, Err: errors.New("response without session")}
	}
	return &out, nil
}

// SubmitMove plays moveData for this wallet
func (c *Client) SubmitMove(ctx context.Context, req api.SubmitMoveRequest) (api.SubmitMoveResponse, error) {
	req.Wallet = c.wallet
	var out api.SubmitMoveResponse
	if err := c.call(ctx, api.PathSubmitMove, req, &out); err != nil {
		return out, err
	}
	return out, out.Err()
}

// AcceptRules records this wallet's acceptance
func (c *Client) AcceptRules(ctx context.Context, roomID string) (api.AcceptRulesResponse, error) {
	var out api.AcceptRulesResponse
	if err := c.call(ctx, api.PathAcceptRules, api.RoomRequest{RoomID: roomID, Wallet: c.wallet}, &out); err != nil {
		return out, err
	}
	return out, out.Err()
}

// SkipTurn reports lapsed for missing turn turnNumber
func (c *Client) SkipTurn(ctx context.Context, roomID, lapsed string, turnNumber int) (api.EscalationResponse, error) {
	return c.escalate(ctx, api.PathSkipTurn, roomID, lapsed, turnNumber)
}

// ForfeitTurn asks the server to end the match on lapsed's final miss
func (c *Client) ForfeitTurn(ctx context.Context, roomID, lapsed string, turnNumber int) (api.EscalationResponse, error) {
	return c.escalate(ctx, api.PathForfeitTurn, roomID, lapsed, turnNumber)
}

func (c *Client) escalate(ctx context.Context, path, roomID, lapsed string, turnNumber int) (api.EscalationResponse, error) {
	var out api.EscalationResponse
	req := api.EscalationRequest{RoomID: roomID, Wallet: c.wallet, LapsedWallet: lapsed, TurnNumber: turnNumber}
	if err := c.call(ctx, path, req, &out); err != nil {
		return out, err
	}
	return out, out.Err()
}

// Resign concedes for this wallet
func (c *Client) Resign(ctx context.Context, roomID string) error {
	var out api.Result
	if err := c.call(ctx, api.PathResign, api.RoomRequest{RoomID: roomID, Wallet: c.wallet}, &out); err != nil {
		return err
	}
	return out.Err()
}

// CancelRoom cancels a waiting room this wallet created
func (c *Client) CancelRoom(ctx context.Context, roomID string) error {
	var out api.Result
	if err := c.call(ctx, api.PathCancelRoom, api.RoomRequest{RoomID: roomID, Wallet: c.wallet}, &out); err != nil {
		return err
	}
	return out.Err()
}

// Settle requests the win payout of a finished match
func (c *Client) Settle(ctx context.Context, req api.SettleRequest) (api.SettleResponse, error) {
	var out api.SettleResponse
	if err := c.call(ctx, api.PathSettle, req, &out); err != nil {
		return out, err
	}
	return out, out.Err()
}

// RefundDraw requests the stake refund of a drawn match
func (c *Client) RefundDraw(ctx context.Context, roomID string) (api.SettleResponse, error) {
	var out api.SettleResponse
	if err := c.call(ctx, api.PathRefundDraw, api.RoomRequest{RoomID: roomID}, &out); err != nil {
		return out, err
	}
	return out, out.Err()
}
