package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

const defaultSessionTTL = 72 * time.Hour

// advanceScript rewrites stage and selection only when the new stage ranks
// higher than the stored one. The key's remaining TTL is preserved.
// Returns the stored JSON, or false when the key is absent.
var advanceScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return false
end
local ranks = {intro = 1, details = 2, confirmation = 3}
local s = cjson.decode(raw)
local current = ranks[s['stage']] or 0
if tonumber(ARGV[2]) <= current then
  return raw
end
s['stage'] = ARGV[1]
s['selection'] = ARGV[3]
s['updated_at'] = ARGV[4]
local encoded = cjson.encode(s)
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], encoded, 'PX', ttl)
else
  redis.call('SET', KEYS[1], encoded)
end
return encoded
`)

// closeScript deletes the key only while the stored session id is ARGV[1].
var closeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
if cjson.decode(raw)['id'] ~= ARGV[1] then
  return 0
end
return redis.call('DEL', KEYS[1])
`)

// RedisStore keeps one JSON document per caller under session:<caller>.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	now    func() time.Time
}

// NewRedisStore builds a store whose sessions expire after ttl of inactivity
// since open. A zero ttl uses 72h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("sessions: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("missedcall.internal.sessions.redis"),
		now:    time.Now,
	}
}

func sessionKey(callerID string) string {
	return fmt.Sprintf("session:%s", callerID)
}

func (s *RedisStore) Open(ctx context.Context, callerID, businessRef string, category catalog.CategoryKey) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.open")
	defer span.End()

	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateOpen(category); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := Session{
		ID:          uuid.NewString(),
		CallerID:    key,
		Category:    category,
		BusinessRef: businessRef,
		Stage:       catalog.StageIntro,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("sessions: marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(key), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sessions: open session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Get(ctx context.Context, callerID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.get")
	defer span.End()

	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	data, err := s.redis.Get(ctx, sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("sessions: load session: %w", err)
	}
	return decodeSession(data)
}

func (s *RedisStore) Advance(ctx context.Context, callerID string, next catalog.Stage, selection string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.advance")
	defer span.End()

	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateStage(next); err != nil {
		return nil, err
	}
	res, err := advanceScript.Run(ctx, s.redis, []string{sessionKey(key)},
		string(next),
		strconv.Itoa(next.Rank()),
		selection,
		s.now().UTC().Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveSession
		}
		span.RecordError(err)
		return nil, fmt.Errorf("sessions: advance session: %w", err)
	}
	return decodeSession([]byte(res))
}

func (s *RedisStore) Close(ctx context.Context, callerID string) error {
	ctx, span := s.tracer.Start(ctx, "sessions.close")
	defer span.End()

	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, sessionKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: close session: %w", err)
	}
	return nil
}

func (s *RedisStore) CloseSession(ctx context.Context, callerID, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "sessions.close")
	defer span.End()

	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	if err := closeScript.Run(ctx, s.redis, []string{sessionKey(key)}, sessionID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: close session: %w", err)
	}
	return nil
}

func decodeSession(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("sessions: decode session: %w", err)
	}
	return &sess, nil
}
