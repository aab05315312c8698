// Package auth は認証・認可機能を提供します。
package auth

import "golang.org/x/crypto/bcrypt"

// Hasher はパスワードのbcryptハッシュ化と照合を提供します。
// ソルトはハッシュごとにランダムなので、同じ平文でも毎回異なる値になります。
type Hasher struct {
	cost int
}

// NewHasher は標準のワークファクター（cost 10）の Hasher を作成します。
func NewHasher() *Hasher {
	return &Hasher{cost: bcrypt.DefaultCost}
}

// Hash は平文パスワードをハッシュ化します。平文は保存しません。
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Check はハッシュと平文を照合します。
// 壊れたハッシュでもpanicやエラーにはせず、単に false を返します。
func (h *Hasher) Check(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
