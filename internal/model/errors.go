// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはそのままクライアントに返せる文言であり、
// ストアやメール送信の内部エラー詳細を含めてはならない。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアント向けメッセージ
	Category string // カテゴリ: auth, validation, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAccountExists       = "ACCOUNT_EXISTS"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidResetRequest = "INVALID_RESET_REQUEST"
	ErrCodeNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrCodeNoActiveSession     = "NO_ACTIVE_SESSION"
	ErrCodeInvalidAccount      = "INVALID_ACCOUNT"
	ErrCodeInternalFailure     = "INTERNAL_FAILURE"
)

// NewAccountExistsError はemailの一意制約違反エラーを生成する。
// 競合が既存アカウントによるものか同時作成のレースによるものかは区別しない。
func NewAccountExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExists,
		Message:  "An account with this email already exists.",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// 「存在しないemail」と「パスワード不一致」を外部から区別できないよう、
// どちらの場合も同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
	}
}

// NewInvalidResetRequestError はパスワードリセット失敗エラーを生成する。
// 「リセット要求なし」と「トークン不一致」を外部から区別できないよう、
// どちらの場合も同一のエラーを返す。
func NewInvalidResetRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetRequest,
		Message:  "Invalid reset request.",
		Category: "auth",
	}
}

// NewNotAuthenticatedError は有効なセッションが存在しないエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "You are not logged in.",
		Category: "auth",
	}
}

// NewNoActiveSessionError はログアウト対象のセッションが存在しないエラーを生成する。
func NewNoActiveSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveSession,
		Message:  "Session does not exist.",
		Category: "auth",
	}
}

// NewInvalidAccountError はセッションが参照するアカウントが
// ストアに存在しない場合のエラーを生成する。
// 認証エラーではなくデータ整合性エラーとして扱う。
func NewInvalidAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAccount,
		Message:  "Invalid user.",
		Category: "system",
	}
}

// NewInternalFailureError はストアまたはメール送信の内部エラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewInternalFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalFailure,
		Message:  "An unknown error occured.",
		Category: "system",
	}
}
