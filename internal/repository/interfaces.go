// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/accountd/internal/model"
)

// ErrUniqueViolation はストアの一意制約違反を表す。
// AuthServiceを特定のストレージエンジンのエラーコードから切り離すため、
// 実装側でドライバ固有のエラーをこのエラーに変換して返す。
var ErrUniqueViolation = errors.New("unique constraint violation")

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。
	// emailの一意制約に違反した場合はErrUniqueViolationを返す。
	// 同時作成のレースもストアの一意制約で検出される。
	Create(ctx context.Context, account *model.Account) error

	// FindByEmail は指定emailのアカウントを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// SetResetToken は指定emailのアカウントのリセットトークンを上書きする。
	// 既存の未使用トークンは無効化される。
	// 該当アカウントが存在しない場合はfalseを返す。
	SetResetToken(ctx context.Context, email, token string) (bool, error)

	// RedeemResetToken はトークンの照合・クリアとパスワードハッシュの更新を
	// 単一の不可分な更新として実行する。
	// 保存されているトークンが空でなく、かつtokenと完全一致した場合のみ
	// password_hashを更新しreset_tokenを空にして、trueを返す。
	// 同一トークンによる同時リデンプションは高々1回だけ成功する。
	RedeemResetToken(ctx context.Context, email, token, newPasswordHash string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。
	// 存在しない場合と期限切れの場合はどちらもnilを返す（区別しない）。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	// 冪等: すでに存在しないセッションの削除はエラーにならない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
