package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

const (
	defaultLockTTL  = 5 * time.Second
	defaultLockPoll = 10 * time.Millisecond
)

// releaseLock deletes the lock only if this holder still owns it
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// commitSession writes the session only while this holder still owns the
// record lock. Returns 0 when the lock expired or passed to another holder.
var commitSession = redis.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("set", KEYS[2], ARGV[2])
return 1
`)

// ErrLockLost reports an update whose record lock expired before it committed
var ErrLockLost = errors.New("record lock lost before commit")

// RedisStore keeps sessions and tokens in Redis. The record lock is a
// SET NX key holding a random owner token with a TTL, so a crashed holder
// cannot wedge a room.
type RedisStore struct {
	rdb      *redis.Client
	prefix   string
	lockTTL  time.Duration
	lockPoll time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithPrefix namespaces every key
func WithPrefix(p string) RedisOption {
	return func(r *RedisStore) { r.prefix = p }
}

// WithLockTTL bounds how long a record lock survives its holder
func WithLockTTL(d time.Duration) RedisOption {
	return func(r *RedisStore) { r.lockTTL = d }
}

// NewRedisStore wraps an existing client
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	r := &RedisStore{rdb: rdb, prefix: "turnsettle", lockTTL: defaultLockTTL, lockPoll: defaultLockPoll}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OpenRedis dials the server named by a redis:// or rediss:// URL and pings it
func OpenRedis(ctx context.Context, rawURL string, opts ...RedisOption) (*RedisStore, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("redis url required")
	}
	o, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(o)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, opts...), nil
}

// Close closes the underlying client
func (r *RedisStore) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *RedisStore) sessionKey(id string) string { return r.prefix + ":session:" + id }
func (r *RedisStore) lockKey(id string) string    { return r.prefix + ":lock:" + id }
func (r *RedisStore) roomsKey() string            { return r.prefix + ":rooms" }
func (r *RedisStore) tokenKey(t string) string    { return r.prefix + ":token:" + t }

// Create stores a new session; fails if the room already exists
func (r *RedisStore) Create(ctx context.Context, s *models.GameSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := r.rdb.SetNX(ctx, r.sessionKey(s.RoomID), raw, 0).Result()
	if err != nil {
		return unavailable("create", err)
	}
	if !ok {
		return models.Errorf(models.CodeRoomExists, "room %s", s.RoomID)
	}
	if err := r.rdb.SAdd(ctx, r.roomsKey(), s.RoomID).Err(); err != nil {
		return unavailable("create", err)
	}
	return nil
}

// Get reads the session without taking the record lock
func (r *RedisStore) Get(ctx context.Context, roomID string) (*models.GameSession, error) {
	raw, err := r.rdb.Get(ctx, r.sessionKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, notFound(roomID)
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	var s models.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", roomID, err)
	}
	return &s, nil
}

// Update runs fn under the room's record lock and writes the result back.
// The write is dropped when the lock expired while fn ran.
func (r *RedisStore) Update(ctx context.Context, roomID string, fn UpdateFunc) (*models.GameSession, error) {
	owner, err := r.lock(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer r.unlock(ctx, roomID, owner)

	s, err := r.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rev := s.Revision
	if err := fn(s); err != nil {
		return nil, err
	}
	s.Revision = rev + 1

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	n, err := commitSession.Run(ctx, r.rdb, []string{r.lockKey(roomID), r.sessionKey(roomID)}, owner, raw).Int()
	if err != nil {
		return nil, unavailable("update", err)
	}
	if n == 0 {
		return nil, unavailable("update", ErrLockLost)
	}
	return s, nil
}

func (r *RedisStore) lock(ctx context.Context, roomID string) (string, error) {
	owner := uuid.NewString()
	ticker := time.NewTicker(r.lockPoll)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, r.lockKey(roomID), owner, r.lockTTL).Result()
		if err != nil {
			return "", unavailable("lock", err)
		}
		if ok {
			return owner, nil
		}
		select {
		case <-ctx.Done():
			return "", unavailable("lock", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *RedisStore) unlock(ctx context.Context, roomID, owner string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = releaseLock.Run(ctx, r.rdb, []string{r.lockKey(roomID)}, owner).Err()
}

// RoomIDs lists known rooms
func (r *RedisStore) RoomIDs(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, r.roomsKey()).Result()
	if err != nil {
		return nil, unavailable("rooms", err)
	}
	return ids, nil
}

// PutToken stores a token with a TTL matching its expiry
func (r *RedisStore) PutToken(ctx context.Context, t models.SessionToken) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	ttl := time.Until(t.ExpiresAt)
	if t.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, r.tokenKey(t.Token), raw, ttl).Err(); err != nil {
		return unavailable("token", err)
	}
	return nil
}

// GetToken looks up a token
func (r *RedisStore) GetToken(ctx context.Context, token string) (models.SessionToken, error) {
	raw, err := r.rdb.Get(ctx, r.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return models.SessionToken{}, models.Errorf(models.CodeUnauthorized, "unknown session token")
	}
	if err != nil {
		return models.SessionToken{}, unavailable("token", err)
	}
	var t models.SessionToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return models.SessionToken{}, fmt.Errorf("decode token: %w", err)
	}
	return t, nil
}

// PurgeTokens is a no-op; Redis expires token keys itself
func (r *RedisStore) PurgeTokens(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	o := &redis.Options{Addr: u.Host, Password: pass, DB: db}
	if u.User != nil {
		o.Username = u.User.Username()
	}
	return o, nil
}
