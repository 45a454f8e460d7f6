package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActivationStore keeps one pending activation code per user.
type ActivationStore interface {
	// Put stores code for userID, replacing any earlier one.
	Put(ctx context.Context, userID int64, code string, ttl time.Duration) error
	// Consume deletes and accepts the code when it matches and has not
	// expired. A mismatch leaves the stored code in place.
	Consume(ctx context.Context, userID int64, code string) (bool, error)
}

// SQLiteActivationStore keeps codes in the activation_codes table.
type SQLiteActivationStore struct {
	db *sql.DB
}

// NewSQLiteActivationStore creates a store on db.
func NewSQLiteActivationStore(db *sql.DB) *SQLiteActivationStore {
	return &SQLiteActivationStore{db: db}
}

// Put implements ActivationStore.
func (s *SQLiteActivationStore) Put(ctx context.Context, userID int64, code string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activation_codes (user_id, code, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		userID, code, time.Now().Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("storing activation code: %w", err)
	}
	return nil
}

// Consume implements ActivationStore.
func (s *SQLiteActivationStore) Consume(ctx context.Context, userID int64, code string) (bool, error) {
	var stored string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT code, expires_at FROM activation_codes WHERE user_id = ?", userID).Scan(&stored, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading activation code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM activation_codes WHERE user_id = ? AND code = ?", userID, stored)
	if err != nil {
		return false, fmt.Errorf("consuming activation code: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n == 1 && time.Now().UnixMilli() < expiresAt, nil
}

// consumeScript deletes the key only when it holds the presented code.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisActivationStore keeps codes as expiring Redis keys.
type RedisActivationStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisActivationStore creates a store whose keys start with prefix.
func NewRedisActivationStore(client redis.UniversalClient, prefix string) *RedisActivationStore {
	if prefix == "" {
		prefix = "areacore"
	}
	return &RedisActivationStore{client: client, prefix: prefix}
}

func (s *RedisActivationStore) key(userID int64) string {
	return s.prefix + ":activation:" + strconv.FormatInt(userID, 10)
}

// Put implements ActivationStore.
func (s *RedisActivationStore) Put(ctx context.Context, userID int64, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(userID), code, ttl).Err(); err != nil {
		return fmt.Errorf("storing activation code: %w", err)
	}
	return nil
}

// Consume implements ActivationStore.
func (s *RedisActivationStore) Consume(ctx context.Context, userID int64, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(userID)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("consuming activation code: %w", err)
	}
	return n == 1, nil
}
