package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore はインメモリの Store 実装です。
// テストと、ストア未設定で起動するローカル開発用に使います。
// Postgres 実装と同じ契約（メール一意性・ErrNotFound）を守ります。
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[int64]*User
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore は空の MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*User),
		byEmail: make(map[string]int64),
		nextID:  1,
		now:     time.Now,
	}
}

// Create はアカウントを保存します。
func (s *MemoryStore) Create(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return nil, ErrDuplicateEmail
	}

	stored := *user
	stored.ID = s.nextID
	s.nextID++
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID

	copied := stored
	return &copied, nil
}

// FindByID はIDでアカウントを取得します。
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// FindByEmail はメールアドレスの完全一致でアカウントを取得します。
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[id]
	return &copied, nil
}

// List は作成日時の降順でページを返します。
func (s *MemoryStore) List(ctx context.Context, offset, limit int) ([]*User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*User, 0, len(s.byID))
	for _, user := range s.byID {
		copied := *user
		all = append(all, &copied)
	}
	// 同時刻に作成されたレコードはIDの降順で安定させる
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Update は name / email / passwordHash を保存します。
func (s *MemoryStore) Update(ctx context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[user.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if id, ok := s.byEmail[user.Email]; ok && id != user.ID {
		return nil, ErrDuplicateEmail
	}

	delete(s.byEmail, current.Email)
	stored := *user
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = s.now()
	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID

	copied := stored
	return &copied, nil
}

// Delete はアカウントを削除します。
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, user.Email)
	delete(s.byID, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
