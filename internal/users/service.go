package users

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultPage / DefaultLimit は一覧取得のデフォルト値です。
	DefaultPage  = 1
	DefaultLimit = 10
)

// PasswordHasher はパスワードの一方向ハッシュ化を抽象化します。
// 実装は internal/auth の bcrypt ハッシャーです（循環参照を避けるためここで定義）。
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) bool
}

// SessionRevoker はアカウント削除時にそのアカウントの全セッションを
// 無効化するためのフックです。internal/session の Store が実装します。
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID int64) (int, error)
}

// UpdateInput は部分更新の入力です。nil のフィールドは変更しません。
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Service はユーザーアカウントのユースケースを提供します。
type Service struct {
	store    Store
	hasher   PasswordHasher
	sessions SessionRevoker
}

// NewService は Service を作成します。
func NewService(store Store, hasher PasswordHasher, sessions SessionRevoker) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		sessions: sessions,
	}
}

// Create はアカウントを登録します。メールアドレスが登録済みの場合は
// ErrDuplicateEmail を返します。レスポンスには公開プロフィールのみを返します。
func (s *Service) Create(ctx context.Context, name, email, password string) (*PublicUser, error) {
	// 事前チェック。同時作成の競合はストアの一意制約が拾い、
	// Create 側でも ErrDuplicateEmail に変換される。
	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.Create(ctx, &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return nil, err
	}

	public := user.Public()
	return &public, nil
}

// Paginate は公開プロフィールの一覧と総件数を返します。
// page / limit が0以下の場合はデフォルト値を使います。並びは作成日時の降順です。
func (s *Service) Paginate(ctx context.Context, page, limit int) ([]PublicUser, int, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, total, err := s.store.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}

	result := make([]PublicUser, 0, len(records))
	for _, user := range records {
		result = append(result, user.Public())
	}
	return result, total, nil
}

// FindByID は公開プロフィールを返します。
func (s *Service) FindByID(ctx context.Context, id int64) (*PublicUser, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// FindPrivateByID は本人向けプロフィールを返します。呼び出し側は
// 認可ガードが解決したIDのみを渡すこと。
func (s *Service) FindPrivateByID(ctx context.Context, id int64) (*PrivateUser, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	private := user.Private()
	return &private, nil
}

// Update はアカウントを部分更新し、本人向けプロフィールを返します。
// 別アカウントが使用中のメールアドレスへの変更は ErrDuplicateEmail、
// 本人が既に使っているメールアドレスはそのまま成功します。
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*PrivateUser, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil && *input.Email != user.Email {
		existing, err := s.store.FindByEmail(ctx, *input.Email)
		if err == nil && existing.ID != id {
			return nil, ErrDuplicateEmail
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		user.Email = *input.Email
	}
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Password != nil {
		passwordHash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = passwordHash
	}

	updated, err := s.store.Update(ctx, user)
	if err != nil {
		return nil, err
	}

	private := updated.Private()
	return &private, nil
}

// Delete はアカウントと、そのアカウントに紐づく全セッションを削除します。
// アカウント行を先に消す。途中で失敗しても、残ったセッションは
// アカウント不在として復元不能になるため認可は通らない。
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.sessions != nil {
		if _, err := s.sessions.DeleteByUser(ctx, id); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}
	return nil
}
