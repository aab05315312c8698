package auth

import (
	"context"
	"errors"

	"github.com/yourusername/member-gate/internal/users"
)

// UserDirectory は認証に必要なユーザーストアの読み取り操作です。
// users.Store がこのインターフェースを満たします。
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// dummyHash は存在しないメールアドレスでもbcrypt照合1回分の時間を
// 消費させるためのダミーハッシュです（応答時間からのユーザー列挙対策）。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Validator はメールアドレスとパスワードの組を検証します。
type Validator struct {
	users  UserDirectory
	hasher *Hasher
}

// NewValidator は Validator を作成します。
func NewValidator(users UserDirectory, hasher *Hasher) *Validator {
	return &Validator{
		users:  users,
		hasher: hasher,
	}
}

// Validate は認証情報を検証し、一致すれば公開プロフィールを返します。
// 「ユーザーが存在しない」と「パスワードが違う」はどちらも (nil, nil) で、
// 呼び出し側からは区別できません。エラーを返すのはストア障害のみです。
func (v *Validator) Validate(ctx context.Context, email, password string) (*users.PublicUser, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// 不在時も照合コストを払って応答時間を揃える
			v.hasher.Check(dummyHash, password)
			return nil, nil
		}
		return nil, err
	}

	if !v.hasher.Check(user.PasswordHash, password) {
		return nil, nil
	}

	identity := user.Public()
	return &identity, nil
}
