package users

import "context"

// Store はユーザーアカウントの永続化境界です。
// メールアドレスの一意性はストア側で強制されます。二つの同時作成が競合した場合でも
// 片方は必ず ErrDuplicateEmail で失敗し、レコードが重複することはありません。
type Store interface {
	// Create はアカウントを保存し、ID・作成日時を採番して返します。
	Create(ctx context.Context, user *User) (*User, error)
	// FindByID はIDでアカウントを取得します。存在しない場合は ErrNotFound を返します。
	FindByID(ctx context.Context, id int64) (*User, error)
	// FindByEmail はメールアドレスの完全一致でアカウントを取得します。
	// 存在しない場合は ErrNotFound を返します。
	FindByEmail(ctx context.Context, email string) (*User, error)
	// List は作成日時の降順で offset 件スキップして最大 limit 件と総件数を返します。
	List(ctx context.Context, offset, limit int) ([]*User, int, error)
	// Update は name / email / passwordHash を保存し、更新後のレコードを返します。
	Update(ctx context.Context, user *User) (*User, error)
	// Delete はアカウントを削除します。存在しない場合は ErrNotFound を返します。
	Delete(ctx context.Context, id int64) error
}
