// Package session はサーバーサイドセッションレコードの永続化を提供します。
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record はセッションストアに保存される1セッション分の状態です。
// UserID が 0 のレコードは未ログインの匿名セッションで、CSRFトークンの
// 発行にのみ使われます。
type Record struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId,omitempty"`
	Name      string    `json:"name,omitempty"`
	CSRFToken string    `json:"csrfToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authenticated はログイン済みセッションかどうかを返します。
func (r *Record) Authenticated() bool {
	return r != nil && r.UserID != 0
}

// Expired は有効期限切れかどうかを返します。
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Store はセッションレコードの永続化境界です。
// 見つからない・期限切れのセッションはエラーではなく nil レコードとして返します。
type Store interface {
	// Get はセッションを取得します。存在しない／期限切れの場合は (nil, nil) です。
	Get(ctx context.Context, id string) (*Record, error)
	// Save はレコードを ExpiresAt までのTTL付きで保存します（upsert）。
	Save(ctx context.Context, record *Record) error
	// Delete はセッションを削除します。存在しなくてもエラーにしません。
	Delete(ctx context.Context, id string) error
	// DeleteByUser は指定ユーザーの全セッションを削除し、削除数を返します。
	DeleteByUser(ctx context.Context, userID int64) (int, error)
	// PruneExpired は期限切れレコードとインデックスの残骸を掃除し、除去数を返します。
	PruneExpired(ctx context.Context) (int, error)
}

// NewID は推測不能なセッションIDを生成します。
func NewID() string {
	return uuid.NewString()
}
