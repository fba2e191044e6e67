// Package auth はアカウント認証とセッション発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/accountd/internal/model"
	"github.com/hitoshi/accountd/internal/repository"
)

// mailSubject はパスワードリセットメールの件名。
const mailSubject = "accountd - Forgot Password Request"

// dummyVerifyPassword は存在しないアカウントへのログイン試行時に
// ハッシュ検証の実行時間を揃えるためのダミーパスワード。
// 実際の認証情報ではなく、どのアカウントのパスワードとも一致しない。
const dummyVerifyPassword = "accountd-dummy-verify"

// PasswordHasher はパスワードのハッシュ化と検証のインターフェース。
// internal/password.Hasherの部分集合として定義する。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hashRecord string) (bool, error)
}

// SessionManager はセッションのライフサイクル管理のインターフェース。
// internal/session.Managerの部分集合として定義する。
type SessionManager interface {
	Create(ctx context.Context, accountID string) (*model.Session, error)
	Load(ctx context.Context, sessionID string) (*model.Session, error)
	Destroy(ctx context.Context, sessionID string) error
}

// MailSender はメール送信のインターフェース。
// internal/mail.Senderの部分集合として定義する。
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
// nilを渡した場合は記録を行わない。
type MetricsRecorder interface {
	RecordAccountCreated()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordResetRequested()
	RecordResetRedeemed()
}

// Service は認証コマンドのオーケストレーションを提供する。
// 各コマンドはリクエストごとに独立して処理され、
// 共有可変状態はストア経由でのみアクセスする。
type Service struct {
	accounts    repository.AccountRepository
	sessions    SessionManager
	hasher      PasswordHasher
	resetTokens *ResetTokenManager
	mailer      MailSender
	metrics     MetricsRecorder

	// 存在しないemailへのログイン時にも検証を実行するためのダミーハッシュ
	dummyHash string
}

// NewService はServiceを生成する。
// metricsはnilを許容する。
func NewService(
	accounts repository.AccountRepository,
	sessions SessionManager,
	hasher PasswordHasher,
	resetTokens *ResetTokenManager,
	mailer MailSender,
	metrics MetricsRecorder,
) *Service {
	s := &Service{
		accounts:    accounts,
		sessions:    sessions,
		hasher:      hasher,
		resetTokens: resetTokens,
		mailer:      mailer,
		metrics:     metrics,
	}

	// ダミーハッシュは起動時に1回だけ計算する。
	// 生成に失敗した場合は空のままとし、検証時に不一致として扱われる。
	if hash, err := hasher.Hash(dummyVerifyPassword); err == nil {
		s.dummyHash = hash
	}

	return s
}

// CreateAccount は新規アカウントを作成する。
// emailの形式とパスワード長は上位層で検証済みであることを前提とするが、
// 同時作成のレースはストアの一意制約で検出しAccountExistsとして返す。
// 成功時にハッシュやIDを呼び出し側に返さない。
func (s *Service) CreateAccount(ctx context.Context, email, password, displayName string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         model.RoleUser,
		ResetToken:   "",
		CreatedAt:    time.Now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			slog.Warn("create account failed: unique email constraint")
			return model.NewAccountExistsError()
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created", slog.String("account_id", account.ID))
	s.recordMetric(func(m MetricsRecorder) { m.RecordAccountCreated() })
	return nil
}

// Login は認証情報を検証し、成功時にセッションを発行する。
// 「存在しないemail」と「パスワード不一致」はどちらもInvalidCredentialsを返し、
// 外部から区別できない。検証時間も揃えるため、アカウントが存在しない場合も
// ダミーハッシュに対して検証を実行する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	targetHash := s.dummyHash
	if account != nil {
		targetHash = account.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && account != nil {
		return nil, fmt.Errorf("failed to verify password: %w", verifyErr)
	}

	if account == nil || !valid {
		s.recordMetric(func(m MetricsRecorder) { m.RecordLoginFailure() })
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.sessions.Create(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user login", slog.String("account_id", account.ID))
	s.recordMetric(func(m MetricsRecorder) { m.RecordLoginSuccess() })
	return session, nil
}

// RequestPasswordReset はリセットトークンを発行しメールで送付する。
// アカウントが存在しない場合は何も行わずnilを返す（存在を外部に漏らさない）。
// トークンはメール送信の前にストアへコミットされる。コミット後に送信が失敗しても
// トークンはロールバックされず、再利用・上書きされるまで有効なまま残る。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		// 成功レスポンスは呼び出し側が返す。ストアへの変更は行わない。
		slog.Info("password reset requested for unknown email")
		return nil
	}

	token, ok, err := s.resetTokens.Issue(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}
	if !ok {
		// ルックアップと更新の間にアカウントが消えたケース
		return fmt.Errorf("failed to issue reset token: account no longer exists")
	}

	slog.Info("updated forgot-password token", slog.String("account_id", account.ID))

	body := fmt.Sprintf("A request was made to reset your accountd account password. Your token is: %s", token)
	if err := s.mailer.Send(ctx, account.Email, mailSubject, body); err != nil {
		// トークンは既にコミット済みのため有効なまま残る
		return fmt.Errorf("failed to send forgot-password email: %w", err)
	}

	slog.Info("forgot-password email sent", slog.String("account_id", account.ID))
	s.recordMetric(func(m MetricsRecorder) { m.RecordResetRequested() })
	return nil
}

// RedeemPasswordReset はリセットトークンを照合し、新パスワードを設定する。
// 「アカウント不在」「リセット要求なし」「トークン不一致」はすべて
// InvalidResetRequestを返し、外部から区別できない。
// 照合・クリア・ハッシュ更新はストアの単一の不可分な更新として実行され、
// 同一トークンによる同時リデンプションは高々1回だけ成功する。
func (s *Service) RedeemPasswordReset(ctx context.Context, email, token, newPassword string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		slog.Warn("could not find user to reset password")
		return model.NewInvalidResetRequestError()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	redeemed, err := s.resetTokens.Redeem(ctx, email, token, hash)
	if err != nil {
		return fmt.Errorf("failed to redeem reset token: %w", err)
	}
	if !redeemed {
		return model.NewInvalidResetRequestError()
	}

	slog.Info("password reset", slog.String("account_id", account.ID))
	s.recordMetric(func(m MetricsRecorder) { m.RecordResetRedeemed() })
	return nil
}

// Logout はセッションを破棄する。
// セッションが存在しない（または期限切れの）場合はNoActiveSessionを返す。
// 破棄自体は冪等で、ストアのI/O障害のみがエラーになる。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return model.NewNoActiveSessionError()
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	slog.Info("user logged out", slog.String("account_id", session.AccountID))
	return nil
}

// GetCurrentAccount は有効なセッションに紐づくアカウントを返す。
// セッションが無効・期限切れの場合はNotAuthenticatedを返す。
// セッションが参照するアカウントがストアに存在しない場合は
// データ整合性エラーとしてInvalidAccountを返す。
func (s *Service) GetCurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewNotAuthenticatedError()
	}

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewInvalidAccountError()
	}

	return account, nil
}

// recordMetric はmetricsがnilでない場合のみ記録を実行する。
func (s *Service) recordMetric(record func(MetricsRecorder)) {
	if s.metrics != nil {
		record(s.metrics)
	}
}
