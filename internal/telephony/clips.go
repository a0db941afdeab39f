package telephony

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrClipNotFound is returned for unknown or expired clips.
var ErrClipNotFound = errors.New("clip not found")

// ClipStore holds synthesized replies until the provider fetches them.
type ClipStore interface {
	Put(ctx context.Context, audio []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

var (
	_ ClipStore = (*MemoryClips)(nil)
	_ ClipStore = (*RedisClips)(nil)
)

type clip struct {
	audio   []byte
	expires time.Time
}

// MemoryClips keeps clips in process for ttl.
type MemoryClips struct {
	mu    sync.Mutex
	ttl   time.Duration
	clips map[string]clip
	Now   func() time.Time
}

func NewMemoryClips(ttl time.Duration) *MemoryClips {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryClips{ttl: ttl, clips: make(map[string]clip), Now: time.Now}
}

func (m *MemoryClips) Put(_ context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	for id, c := range m.clips {
		if !now.Before(c.expires) {
			delete(m.clips, id)
		}
	}
	id := uuid.NewString()
	m.clips[id] = clip{audio: audio, expires: now.Add(m.ttl)}
	return id, nil
}

func (m *MemoryClips) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok || !m.Now().Before(c.expires) {
		return nil, ErrClipNotFound
	}
	return c.audio, nil
}

// RedisClips shares clips between instances behind a load balancer.
type RedisClips struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisClips(client *redis.Client, ttl time.Duration) *RedisClips {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisClips{Client: client, TTL: ttl}
}

func (r *RedisClips) Put(ctx context.Context, audio []byte) (string, error) {
	id := uuid.NewString()
	if err := r.Client.Set(ctx, "janani:clip:"+id, audio, r.TTL).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisClips) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := r.Client.Get(ctx, "janani:clip:"+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrClipNotFound
	}
	return b, err
}
