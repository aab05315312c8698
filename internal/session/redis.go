package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix   = "sess:"
	userIndexKeyPrefix = "sess:user:"
)

// RedisStore はセッションレコードを Redis に保存します。
// レコード本体は sess:<id> にJSONで置き、TTLはRedis側の期限で管理します。
// ログイン済みセッションは sess:user:<userID> のセットにも登録し、
// アカウント単位の一括無効化（DeleteByUser）を可能にします。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get はセッションを取得します。
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	// RedisのTTLが粗くても期限はレコード側の値で厳密に判定する
	if record.Expired(time.Now()) {
		_ = s.Delete(ctx, id)
		return nil, nil
	}
	return &record, nil
}

// Save はレコードを保存します。
func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(record.ID), payload, ttl)
	if record.Authenticated() {
		indexKey := userIndexKey(record.UserID)
		pipe.SAdd(ctx, indexKey, record.ID)
		// インデックスは所属セッションより先に消えないようTTLを延ばしておく
		pipe.Expire(ctx, indexKey, ttl+time.Hour)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete はセッションを削除します。
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	// インデックスからの除去は掃除タスクに任せ、本体のみ即時削除する
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUser は指定ユーザーの全セッションを削除します。
func (s *RedisStore) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	indexKey := userIndexKey(userID)
	ids, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, indexKey)
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return len(ids), nil
}

// PruneExpired はユーザーインデックスを走査し、本体が既に期限切れで
// 消えているセッションIDをインデックスから取り除きます。
// レコード本体はRedisのTTLで自然に消えるため、ここではインデックスの残骸のみ扱います。
func (s *RedisStore) PruneExpired(ctx context.Context) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, userIndexKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := s.rdb.SMembers(ctx, indexKey).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to read index %s: %w", indexKey, err)
		}
		for _, id := range ids {
			exists, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to check session %s: %w", id, err)
			}
			if exists == 0 {
				if err := s.rdb.SRem(ctx, indexKey, id).Err(); err != nil {
					return removed, fmt.Errorf("failed to prune index %s: %w", indexKey, err)
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan session indexes: %w", err)
	}
	return removed, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userIndexKey(userID int64) string {
	return userIndexKeyPrefix + strconv.FormatInt(userID, 10)
}

var _ Store = (*RedisStore)(nil)
