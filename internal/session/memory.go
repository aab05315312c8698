package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はインメモリの Store 実装です。
// テストと、Redis未設定で起動するローカル開発用に使います。
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore は空の MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Get はセッションを取得します。期限切れはその場で削除して nil を返します。
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	if record.Expired(s.now()) {
		delete(s.records, id)
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

// Save はレコードを保存します。
func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stored := *record
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.records[stored.ID] = &stored
	return nil
}

// Delete はセッションを削除します。
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// DeleteByUser は指定ユーザーの全セッションを削除します。
func (s *MemoryStore) DeleteByUser(ctx context.Context, userID int64) (int, error) {
	// userID 0 は匿名セッションの意味なので一括削除の対象にしない
	if userID == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, record := range s.records {
		if record.UserID == userID {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// PruneExpired は期限切れレコードを削除します。
func (s *MemoryStore) PruneExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, record := range s.records {
		if record.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
