// Package redis stores sessions in Redis: one JSON document per session plus
// a per-owner sorted set scored by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/database"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the repository.
const DefaultPrefix = "face-sculptor:"

// maxDeleteRetries bounds optimistic-lock retries in Delete.
const maxDeleteRetries = 5

func init() {
	database.Register(func(ctx context.Context, cfg *config.DatabaseConfig) (session.Repository, error) {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.PoolSize = cfg.MaxOpenConns
		opts.MinIdleConns = cfg.MaxIdleConns
		return Connect(ctx, opts, DefaultPrefix)
	}, "redis", "rediss")
}

// SessionRepository implements session.Repository on Redis.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

// Connect creates a client and verifies the connection.
func Connect(ctx context.Context, opts *redis.Options, prefix string) (*SessionRepository, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	logging.For("redis").WithField("addr", opts.Addr).Info("session store ready")
	return NewSessionRepository(client, prefix), nil
}

// NewSessionRepository wraps an existing client.
func NewSessionRepository(client *redis.Client, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) sessionKey(id string) string {
	return r.prefix + "session:" + id
}

func (r *SessionRepository) ownerKey(owner string) string {
	return r.prefix + "owner:" + owner + ":sessions"
}

// Insert writes the session document only if the id is free, then indexes
// it under its owner.
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.sessionKey(s.ID), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if !ok {
		return session.ErrDuplicateID
	}

	member := redis.Z{Score: float64(s.CreatedAt.UnixMicro()), Member: s.ID}
	if err := r.client.ZAdd(ctx, r.ownerKey(s.OwnerRef), member).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	doc, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s session.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// ListByOwner returns the owner's sessions, newest first.
func (r *SessionRepository) ListByOwner(ctx context.Context, owner string) ([]session.Metadata, error) {
	ids, err := r.client.ZRevRange(ctx, r.ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := []session.Metadata{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	docs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for i, raw := range docs {
		str, ok := raw.(string)
		if !ok {
			// Index entry without a document: deleted concurrently.
			continue
		}
		var s session.Session
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", ids[i], err)
		}
		out = append(out, s.Metadata())
	}
	session.SortNewestFirst(out)
	return out, nil
}

// Delete removes a session if owner matches. The owner check and removal
// run under WATCH so a concurrent delete cannot interleave.
func (r *SessionRepository) Delete(ctx context.Context, id, owner string) error {
	key := r.sessionKey(id)
	txf := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		var s session.Session
		if err := json.Unmarshal(doc, &s); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		if s.OwnerRef != owner {
			return session.ErrNotOwner
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.ownerKey(owner), id)
			return nil
		})
		return err
	}

	for i := 0; i < maxDeleteRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("delete session %s: too much contention", id)
}

// Close closes the client.
func (r *SessionRepository) Close() error {
	return r.client.Close()
}
