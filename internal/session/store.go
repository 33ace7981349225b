package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Store persists sessions by ID. Get returns ErrNotFound for unknown or
// expired sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
}

// MemoryStore keeps sessions in a bounded LRU with a fixed TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, Session]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: expirable.NewLRU[string, Session](capacity, nil, ttl)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	sess, ok := m.lru.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	m.lru.Add(sess.ID, *sess)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.lru.Remove(id)
	return nil
}

func (m *MemoryStore) IDs(_ context.Context) ([]string, error) {
	return m.lru.Keys(), nil
}

const redisKeyPrefix = "sdyn:session:"

// RedisStore keeps sessions as JSON values with a TTL so several portal
// replicas can share them. Each portal gets its own key namespace.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.Cmdable, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: redisKeyPrefix + namespace + ":", ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &sess, nil
}

func (r *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(r.rdb.Set(ctx, r.prefix+sess.ID, data, r.ttl).Err(), "save session")
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(r.rdb.Del(ctx, r.prefix+id).Err(), "delete session")
}

func (r *RedisStore) IDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scan sessions")
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, r.prefix))
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}
