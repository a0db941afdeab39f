// Package dedup remembers which telephony recordings have already been
// processed so a recording reported by both the action callback and the
// status callback runs through the pipeline once.
package dedup

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RecordingSet is an atomic check-and-insert set of recording ids.
type RecordingSet interface {
	// Seen reports whether id was already marked, marking it if not.
	// Empty ids are never treated as seen.
	Seen(ctx context.Context, id string) (bool, error)
}

type entry struct {
	id      string
	expires time.Time
}

// MemorySet is a process-local RecordingSet bounded by capacity
// (least recently seen evicted first) and by TTL.
type MemorySet struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	order    *list.List
	items    map[string]*list.Element

	// Now is the clock; tests replace it.
	Now func() time.Time
}

var (
	_ RecordingSet = (*MemorySet)(nil)
	_ RecordingSet = (*RedisSet)(nil)
)

// NewMemorySet builds a MemorySet. Non-positive arguments fall back to
// 10000 entries and two minutes.
func NewMemorySet(capacity int, ttl time.Duration) *MemorySet {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &MemorySet{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		Now:      time.Now,
	}
}

func (s *MemorySet) Seen(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	s.evictExpired(now)

	if el, ok := s.items[id]; ok {
		el.Value.(*entry).expires = now.Add(s.ttl)
		s.order.MoveToFront(el)
		return true, nil
	}
	s.items[id] = s.order.PushFront(&entry{id: id, expires: now.Add(s.ttl)})
	for s.order.Len() > s.capacity {
		s.remove(s.order.Back())
	}
	return false, nil
}

// Len returns the number of live entries.
func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired(s.Now())
	return s.order.Len()
}

// evictExpired walks from the least recently seen end; the list is ordered
// by last touch, so expiry times only increase toward the front.
func (s *MemorySet) evictExpired(now time.Time) {
	for el := s.order.Back(); el != nil; el = s.order.Back() {
		if now.Before(el.Value.(*entry).expires) {
			return
		}
		s.remove(el)
	}
}

func (s *MemorySet) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry).id)
}

// RedisSet shares the set across server instances with SETNX and a TTL.
type RedisSet struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisSet returns a RedisSet with keys under "janani:recording:".
func NewRedisSet(client *redis.Client, ttl time.Duration) *RedisSet {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisSet{Client: client, Prefix: "janani:recording:", TTL: ttl}
}

func (s *RedisSet) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	added, err := s.Client.SetNX(ctx, s.Prefix+id, 1, s.TTL).Result()
	if err != nil {
		return false, err
	}
	return !added, nil
}
