// Package users はユーザーアカウントの管理機能を提供します。
package users

import "time"

// User はユーザーストアに保存されるアカウントレコードです。
// PasswordHash はストア境界の外に出してはいけません（JSONにも含めない）。
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser は誰にでも返してよい公開プロフィールです。
type PublicUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PrivateUser は本人にのみ返すプロフィールです。
type PrivateUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public は公開プロフィールへの射影を返します。
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name}
}

// Private は本人向けプロフィールへの射影を返します。
func (u *User) Private() PrivateUser {
	return PrivateUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
