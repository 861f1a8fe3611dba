package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitsync/internal/models"
)

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// RedisStore keeps each session as a hash under session:{id} with a key TTL
// for natural expiry, plus two indexes: a per-user ZSET scored by expiry
// time (count, soonest-expiring and bulk-delete queries) and a
// device-id-to-session-id key. Index entries of expired sessions are pruned
// lazily when queries encounter them.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func sessionKey(id string) string      { return "session:" + id }
func deviceKey(deviceID string) string { return "session:device:" + deviceID }
func userSessionsKey(userID int64) string {
	return "sessions:user:" + strconv.FormatInt(userID, 10)
}

// Create inserts the session hash and both index entries in one pipeline.
func (s *RedisStore) Create(ctx context.Context, rec *models.SessionRecord, ttl time.Duration) error {
	rec.Expires = time.Now().Add(ttl)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(rec.ID), map[string]any{
		"user_id":    rec.UserID,
		"device_id":  rec.DeviceID,
		"device":     rec.Device,
		"provider":   rec.Provider,
		"login_date": rec.LoginDate.UnixMilli(),
		"expires":    rec.Expires.UnixMilli(),
	})
	pipe.Expire(ctx, sessionKey(rec.ID), ttl)
	pipe.ZAdd(ctx, userSessionsKey(rec.UserID), redis.Z{
		Score:  float64(rec.Expires.UnixMilli()),
		Member: rec.ID,
	})
	pipe.Set(ctx, deviceKey(rec.DeviceID), rec.ID, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by id.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(sessionID, fields)
}

// GetByDeviceID retrieves a session via the device index.
func (s *RedisStore) GetByDeviceID(ctx context.Context, deviceID string) (*models.SessionRecord, error) {
	sessionID, err := s.rdb.Get(ctx, deviceKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device id: %w", err)
	}
	return s.Get(ctx, sessionID)
}

// Touch refreshes the TTL of the session and its indexes and re-scores the
// user ZSET entry.
func (s *RedisStore) Touch(ctx context.Context, rec *models.SessionRecord, ttl time.Duration) error {
	rec.Expires = time.Now().Add(ttl)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(rec.ID), "expires", rec.Expires.UnixMilli())
	pipe.Expire(ctx, sessionKey(rec.ID), ttl)
	pipe.ZAdd(ctx, userSessionsKey(rec.UserID), redis.Z{
		Score:  float64(rec.Expires.UnixMilli()),
		Member: rec.ID,
	})
	pipe.Expire(ctx, deviceKey(rec.DeviceID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete removes the session and its index entries.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	rec, err := s.Get(ctx, sessionID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.ZRem(ctx, userSessionsKey(rec.UserID), sessionID)
	pipe.Del(ctx, deviceKey(rec.DeviceID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Count prunes index entries whose expiry has passed, then counts the rest.
func (s *RedisStore) Count(ctx context.Context, userID int64) (int64, error) {
	key := userSessionsKey(userID)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", now)
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return card.Val(), nil
}

// FirstExpiring walks the user's sessions in expiry order and returns the
// first live one that is not excludeSessionID.
func (s *RedisStore) FirstExpiring(ctx context.Context, userID int64, excludeSessionID string) (*models.SessionRecord, error) {
	ids, err := s.rdb.ZRange(ctx, userSessionsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range sessions: %w", err)
	}
	for _, id := range ids {
		if id == excludeSessionID {
			continue
		}
		rec, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Expired hash, stale index entry.
			s.rdb.ZRem(ctx, userSessionsKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, nil
}

// List returns the user's live sessions in expiry order.
func (s *RedisStore) List(ctx context.Context, userID int64) ([]*models.SessionRecord, error) {
	ids, err := s.rdb.ZRange(ctx, userSessionsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range sessions: %w", err)
	}
	var records []*models.SessionRecord
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err == ErrNotFound {
			s.rdb.ZRem(ctx, userSessionsKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DeleteAllExcept removes all of the user's sessions except keepSessionID.
func (s *RedisStore) DeleteAllExcept(ctx context.Context, userID int64, keepSessionID string) error {
	ids, err := s.rdb.ZRange(ctx, userSessionsKey(userID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to range sessions: %w", err)
	}
	for _, id := range ids {
		if id == keepSessionID {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func recordFromFields(sessionID string, fields map[string]string) (*models.SessionRecord, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	loginMillis, err := strconv.ParseInt(fields["login_date"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	expiresMillis, err := strconv.ParseInt(fields["expires"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return &models.SessionRecord{
		ID:        sessionID,
		UserID:    userID,
		DeviceID:  fields["device_id"],
		Device:    fields["device"],
		Provider:  fields["provider"],
		LoginDate: time.UnixMilli(loginMillis),
		Expires:   time.UnixMilli(expiresMillis),
	}, nil
}
