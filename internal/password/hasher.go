// Package password はパスワードの一方向ハッシュ化と検証を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost はbcryptのコストファクタ。
// 適応的に遅いハッシュ関数として機能させるため、固定値とする。
const hashCost = 10

// Hasher はパスワードのハッシュ化と検証のインターフェース。
type Hasher interface {
	// Hash はランダムなソルトを生成し、password+saltをハッシュ化した
	// 自己記述形式のハッシュレコード（ソルト埋め込み済み）を返す。
	// 同一パスワードでもソルトが異なるため出力は毎回異なる。
	Hash(password string) (string, error)

	// Verify はパスワードとハッシュレコードを定数時間で照合する。
	// 不一致は (false, nil) を返し、エラーにはならない。
	// ハッシュレコードが不正な形式の場合のみエラーを返す。
	Verify(password, hashRecord string) (bool, error)
}

// BcryptHasher はbcryptによるHasherの実装。
// bcryptのハッシュレコードはアルゴリズム・コスト・ソルトを自己記述する。
type BcryptHasher struct{}

// NewBcryptHasher はBcryptHasherを生成する。
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

// Hash はbcryptハッシュレコードを生成する。
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify はパスワードとbcryptハッシュレコードを照合する。
func (h *BcryptHasher) Verify(password, hashRecord string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashRecord), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("malformed hash record: %w", err)
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
