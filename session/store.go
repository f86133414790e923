package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minSlidingTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store that handles persistence, expiration and sliding
// window renewal.
//
// With sliding enabled a record lives for idleTimeout after its last read, never past the
// absolute lifetime passed to Get.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	sliding       bool
	idleTimeout   time.Duration
	jitterEnabled bool
	jitterRange   time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client. prefix sets the Redis
// key namespace; sliding, idleTimeout, jitterEnabled and jitterRange control expiration
// behavior. A zero idleTimeout disables the idle window.
func NewStore(
	redis redis.UniversalClient,
	prefix string,
	sliding bool,
	idleTimeout time.Duration,
	jitterEnabled bool,
	jitterRange time.Duration,
) *Store {
	return &Store{
		redis:         redis,
		prefix:        prefix,
		sliding:       sliding,
		idleTimeout:   idleTimeout,
		jitterEnabled: jitterEnabled,
		jitterRange:   jitterRange,
	}
}

// InitialTTL is the TTL a new session should be saved with: the idle window when sliding is
// on and it is shorter than lifetime, otherwise lifetime.
func (s *Store) InitialTTL(lifetime time.Duration) time.Duration {
	if s.sliding && s.idleTimeout > 0 && s.idleTimeout < lifetime {
		return s.idleTimeout
	}
	return lifetime
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(username string) string {
	return "su:" + username
}

// Save persists sess with the given TTL and indexes it under its username.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.Username), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the session stored under sessionID. A missing or expired session yields
// redis.Nil. absoluteLifetime caps the lifetime measured from CreatedAt; zero trusts the stored
// expiry alone.
func (s *Store) Get(ctx context.Context, sessionID string, absoluteLifetime time.Duration) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID

	remainingAbsolute := s.remainingAbsoluteTTL(sess, absoluteLifetime, time.Now())
	if remainingAbsolute <= 0 {
		if err := s.deleteSessionAndIndex(ctx, sess.Username, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	if s.sliding {
		nextTTL, err := s.nextSlidingTTL(remainingAbsolute)
		if err != nil {
			return nil, err
		}
		if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Delete removes a session and its index entry. Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Unreadable records are removed without touching any index.
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}

	return s.deleteSessionAndIndex(ctx, sess.Username, sessionID)
}

// DeleteAllForUser removes every session indexed under username and returns how many
// still existed.
//
// Not atomic: a session saved between the index read and the delete survives until it expires
// or the next call.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	userKey := s.userKey(username)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, sid := range sessionIDs {
		keys = append(keys, s.key(sid))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// ActiveSessionCount returns the number of indexed session ids for username. Index entries
// of sessions that expired in Redis are only pruned on Delete, so this is an upper bound.
func (s *Store) ActiveSessionCount(ctx context.Context, username string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) remainingAbsoluteTTL(sess *Session, absoluteLifetime time.Duration, now time.Time) time.Duration {
	storedExpiry := time.Unix(sess.ExpiresAt, 0)
	if absoluteLifetime <= 0 {
		return storedExpiry.Sub(now)
	}

	configCap := time.Unix(sess.CreatedAt, 0).Add(absoluteLifetime)
	if configCap.Before(storedExpiry) {
		return configCap.Sub(now)
	}
	return storedExpiry.Sub(now)
}

func (s *Store) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := remainingAbsolute
	if s.idleTimeout > 0 {
		nextTTL = s.idleTimeout
	}

	if s.jitterEnabled && s.jitterRange > 0 {
		jitter, err := randomJitter(s.jitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return time.Duration(n.Int64() - max), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, username, sessionID string) error {
	keys := []string{s.key(sessionID), s.userKey(username)}
	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
