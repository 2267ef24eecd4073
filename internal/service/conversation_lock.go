package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrConversationBusy: otro turno de la misma conversacion sigue en vuelo.
var ErrConversationBusy = errors.New("conversation already being processed")

// ConversationLocker serializa los turnos por conversacion: dos pipelines en
// vuelo sobre el mismo id divergirian en estado y version del plan.
// Conversaciones distintas corren en paralelo sin restriccion.
type ConversationLocker interface {
	Acquire(ctx context.Context, conversationID string) (release func(), err error)
}

// MemoryLocker implementa el lock en proceso.
type MemoryLocker struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{inUse: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inUse[conversationID]; busy {
		return nil, ErrConversationBusy
	}
	l.inUse[conversationID] = struct{}{}

	return func() {
		l.mu.Lock()
		delete(l.inUse, conversationID)
		l.mu.Unlock()
	}, nil
}

const redisLockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisEvaler interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker implementa el lock distribuido con SET NX y liberacion
// compare-and-delete via Lua, para despliegues con mas de una replica.
type RedisLocker struct {
	client redisEvaler
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		prefix: "conv:lock:",
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := l.prefix + conversationID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationBusy
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(releaseCtx, redisLockReleaseScript, []string{key}, token).Err()
	}, nil
}
