package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/accountd/internal/repository"
)

// ResetTokenManager はパスワードリセットトークンの発行とリデンプションを提供する。
// トークンは暗号的にランダムなopaqueな値で、single-use。
// メール送信はAuthServiceの責務であり、このマネージャは発行したトークンを返すのみ。
type ResetTokenManager struct {
	accounts repository.AccountRepository
}

// NewResetTokenManager はResetTokenManagerを生成する。
func NewResetTokenManager(accounts repository.AccountRepository) *ResetTokenManager {
	return &ResetTokenManager{accounts: accounts}
}

// Issue は新しいトークンを生成し、指定emailのアカウントに不可分に設定する。
// 既存の未使用トークンは上書きされ無効化される（リクエストごとにsingle-use）。
// アカウントが存在しない場合はfalseを返す。
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (string, bool, error) {
	token := uuid.New().String()

	ok, err := m.accounts.SetResetToken(ctx, email, token)
	if err != nil {
		return "", false, fmt.Errorf("failed to set reset token: %w", err)
	}
	return token, ok, nil
}

// Redeem はトークンの照合・クリアと新パスワードハッシュの設定を
// ストアの単一の不可分な更新として実行する。
// 保存されているトークンが空、またはtokenと一致しない場合はfalseを返す。
// 同一トークンによる同時リデンプションは高々1回だけ成功する。
func (m *ResetTokenManager) Redeem(ctx context.Context, email, token, newPasswordHash string) (bool, error) {
	redeemed, err := m.accounts.RedeemResetToken(ctx, email, token, newPasswordHash)
	if err != nil {
		return false, fmt.Errorf("failed to redeem reset token: %w", err)
	}
	return redeemed, nil
}
