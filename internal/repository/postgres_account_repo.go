package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/accountd/internal/model"
)

// pqUniqueViolationCode はPostgreSQLの一意制約違反エラーコード。
const pqUniqueViolationCode = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// Create はアカウントを作成する。
// emailの一意制約に違反した場合はErrUniqueViolationを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, display_name, role, reset_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Email, account.PasswordHash,
		account.DisplayName, account.Role, account.ResetToken, account.CreatedAt,
	)
	if err != nil {
		// ドライバ固有のエラーコードをここで吸収し、上位層には
		// ErrUniqueViolationだけを公開する
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolationCode {
			return fmt.Errorf("account email %q: %w", account.Email, ErrUniqueViolation)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// FindByEmail は指定emailのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findBy(ctx, `email = $1`, email)
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findBy(ctx, `id = $1`, id)
}

func (r *PostgresAccountRepo) findBy(ctx context.Context, where, arg string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, display_name, role, reset_token, created_at
		 FROM accounts WHERE `+where,
		arg,
	).Scan(
		&account.ID, &account.Email, &account.PasswordHash,
		&account.DisplayName, &account.Role, &account.ResetToken, &account.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}

// SetResetToken は指定emailのアカウントのリセットトークンを上書きする。
func (r *PostgresAccountRepo) SetResetToken(ctx context.Context, email, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET reset_token = $1 WHERE email = $2`,
		token, email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set reset token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RedeemResetToken はトークンの照合・クリアとパスワードハッシュの更新を
// 単一のUPDATE文で実行する。
// WHERE句の照合と更新が同一文のため、同一トークンによる同時リデンプションは
// 高々1回だけ行が更新され、他方は更新件数0を観測する。
func (r *PostgresAccountRepo) RedeemResetToken(ctx context.Context, email, token, newPasswordHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET password_hash = $1, reset_token = ''
		 WHERE email = $2 AND reset_token = $3 AND reset_token <> ''`,
		newPasswordHash, email, token,
	)
	if err != nil {
		return false, fmt.Errorf("failed to redeem reset token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
