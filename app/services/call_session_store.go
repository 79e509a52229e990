package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
)

// CallSession is the IVR state of one call
type CallSession struct {
	CallID    string          `json:"call_id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stale reports whether the session was last touched before now-timeout
func (s *CallSession) Stale(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(s.UpdatedAt) > timeout
}

// CallSessionStore keeps one session document per call. Set stamps the
// update time; nothing expires on its own, callers judge staleness.
type CallSessionStore interface {
	// Get returns nil when the call has no session
	Get(ctx context.Context, callID string) (*CallSession, error)
	Set(ctx context.Context, callID string, payload json.RawMessage) error
	Delete(ctx context.Context, callID string) error
}

// GormCallSessionStore keeps sessions in the call_sessions table
type GormCallSessionStore struct {
	repo  repository.CallSessionRepository
	clock func() time.Time
}

func NewGormCallSessionStore(repo repository.CallSessionRepository) *GormCallSessionStore {
	return &GormCallSessionStore{repo: repo, clock: utils.UTCNow}
}

func (s *GormCallSessionStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	row, err := s.repo.ByCallID(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("get call session %s: %w", callID, err)
	}
	if row == nil {
		return nil, nil
	}
	return &CallSession{CallID: row.CallID, Payload: json.RawMessage(row.Payload), UpdatedAt: row.UpdatedAt}, nil
}

func (s *GormCallSessionStore) Set(ctx context.Context, callID string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	row := &models.CallSession{CallID: callID, Payload: datatypes.JSON(payload), UpdatedAt: s.clock()}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("set call session %s: %w", callID, err)
	}
	return nil
}

func (s *GormCallSessionStore) Delete(ctx context.Context, callID string) error {
	if err := s.repo.Delete(ctx, callID); err != nil {
		return fmt.Errorf("delete call session %s: %w", callID, err)
	}
	return nil
}

// Prune removes sessions untouched for longer than age
func (s *GormCallSessionStore) Prune(ctx context.Context, age time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, s.clock().Add(-age))
}

// RedisCallSessionStore keeps each session as a JSON string under
// {prefix}call:{id}. retention > 0 bounds how long abandoned keys live.
type RedisCallSessionStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	clock     func() time.Time
}

func NewRedisCallSessionStore(client *redis.Client, prefix string, retention time.Duration) *RedisCallSessionStore {
	return &RedisCallSessionStore{client: client, prefix: prefix, retention: retention, clock: utils.UTCNow}
}

func (s *RedisCallSessionStore) key(callID string) string {
	return s.prefix + "call:" + callID
}

func (s *RedisCallSessionStore) Get(ctx context.Context, callID string) (*CallSession, error) {
	raw, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call session %s: %w", callID, err)
	}
	var out CallSession
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode call session %s: %w", callID, err)
	}
	return &out, nil
}

func (s *RedisCallSessionStore) Set(ctx context.Context, callID string, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	raw, err := json.Marshal(CallSession{CallID: callID, Payload: payload, UpdatedAt: s.clock()})
	if err != nil {
		return fmt.Errorf("encode call session %s: %w", callID, err)
	}
	if err := s.client.Set(ctx, s.key(callID), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("set call session %s: %w", callID, err)
	}
	return nil
}

func (s *RedisCallSessionStore) Delete(ctx context.Context, callID string) error {
	if err := s.client.Del(ctx, s.key(callID)).Err(); err != nil {
		return fmt.Errorf("delete call session %s: %w", callID, err)
	}
	return nil
}
