package auth

import (
	"context"
	"errors"

	"github.com/yourusername/member-gate/internal/session"
	"github.com/yourusername/member-gate/internal/users"
)

// ErrInvalidSession はセッションレコードから認証済みIDを
// 復元できない場合のエラーです。呼び出し側は未認証として扱います。
var ErrInvalidSession = errors.New("session does not resolve to a valid identity")

// Serializer は認証済みIDとセッションレコードの相互変換を担います。
// レコードに保存するのは id と name の最小限だけです。
type Serializer struct {
	users UserDirectory
}

// NewSerializer は Serializer を作成します。
func NewSerializer(users UserDirectory) *Serializer {
	return &Serializer{users: users}
}

// Serialize は認証済みIDをセッションレコードへ書き込みます。
func (s *Serializer) Serialize(identity users.PublicUser, record *session.Record) {
	record.UserID = identity.ID
	record.Name = identity.Name
}

// Deserialize はセッションレコードから認証済みIDを復元します。
// 毎回ユーザーストアを引き直すため、アカウントが削除されていれば
// その瞬間から ErrInvalidSession になります（サーバー側無効化の即時反映）。
func (s *Serializer) Deserialize(ctx context.Context, record *session.Record) (users.PublicUser, error) {
	if !record.Authenticated() {
		return users.PublicUser{}, ErrInvalidSession
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return users.PublicUser{}, ErrInvalidSession
		}
		return users.PublicUser{}, err
	}
	return user.Public(), nil
}
