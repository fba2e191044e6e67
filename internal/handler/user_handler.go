// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/accountd/internal/model"
)

// sessionCookieName はセッションIDを保持するCookie名。
const sessionCookieName = "session_id"

// AuthServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	CreateAccount(ctx context.Context, email, password, displayName string) error
	Login(ctx context.Context, email, password string) (*model.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	RedeemPasswordReset(ctx context.Context, email, token, newPassword string) error
	Logout(ctx context.Context, sessionID string) error
	GetCurrentAccount(ctx context.Context, sessionID string) (*model.Account, error)
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// UserHandler はアカウント・セッション管理のHTTPハンドラー。
// セッションIDはHTTP Only Cookieとして受け渡し、
// 各ハンドラーが明示的にCookieを読み取ってサービスに渡す。
type UserHandler struct {
	service AuthServiceInterface
	config  UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AuthServiceInterface, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		config:  config,
	}
}

// --- リクエスト型 ---

type createRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Key      string `json:"key"`
	Password string `json:"password"`
}

// Create は新規アカウントを作成する。
// POST /user/create
// 成功時は200で空ボディを返す（ハッシュやIDは返さない）。
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	slog.Info("create user request")

	var req createRequest
	if err := decodeStrict(r, &req); err != nil {
		writeValidationErrors(w, []string{"Invalid request body"})
		return
	}

	var msgs []string
	msgs = append(msgs, validateEmail(req.Email)...)
	msgs = append(msgs, validatePassword(req.Password)...)
	if len(msgs) > 0 {
		slog.Warn("create user input failed validation")
		writeValidationErrors(w, msgs)
		return
	}

	if err := h.service.CreateAccount(r.Context(), req.Email, req.Password, req.DisplayName); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAccountExists {
			writeJSONString(w, http.StatusInternalServerError, apiErr.Message)
			return
		}
		slog.Error("create user failed", slog.String("error", err.Error()))
		writeJSONString(w, http.StatusInternalServerError, "Error while creating account")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Login は認証情報を検証し、セッションCookieを設定する。
// POST /user/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeStrict(r, &req); err != nil {
		writeValidationErrors(w, []string{"Invalid request body"})
		return
	}

	var msgs []string
	msgs = append(msgs, validateEmail(req.Email)...)
	msgs = append(msgs, validatePassword(req.Password)...)
	if len(msgs) > 0 {
		slog.Warn("login user input failed validation")
		writeValidationErrors(w, msgs)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredentials {
			writeJSONString(w, http.StatusInternalServerError, apiErr.Message)
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		writeJSONString(w, http.StatusInternalServerError, "An unknown error occured.")
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	w.WriteHeader(http.StatusOK)
}

// ForgotPassword はリセットトークンを発行しメールで送付する。
// POST /user/forgot-password
// アカウントの存在有無にかかわらず同じ成功レスポンスを返す。
// ストアまたはメール送信の失敗のみ500になる。
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeStrict(r, &req); err != nil {
		writeValidationErrors(w, []string{"Invalid request body"})
		return
	}

	if msgs := validateEmail(req.Email); len(msgs) > 0 {
		slog.Warn("forgot password input failed validation")
		writeValidationErrors(w, msgs)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		slog.Error("forgot password failed", slog.String("error", err.Error()))
		writeJSONString(w, http.StatusInternalServerError, "An unknown error occured.")
		return
	}

	writeJSONMessage(w, http.StatusOK, "Sent forgot password email.")
}

// Me は現在のログインユーザーの公開プロジェクションを返す。
// GET /user/me
// passwordHashとresetTokenはレスポンスに含まれない。
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetCurrentAccount(r.Context(), h.sessionIDFromCookie(r))
	if err != nil {
		var apiErr *model.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNotAuthenticated:
			writeJSONMessage(w, http.StatusInternalServerError, apiErr.Message)
		case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidAccount:
			// セッションが存在しないアカウントを参照している（データ整合性エラー）
			slog.Error("session references missing account")
			writeJSONString(w, http.StatusInternalServerError, apiErr.Message)
		default:
			slog.Error("get current user failed", slog.String("error", err.Error()))
			writeJSONMessage(w, http.StatusInternalServerError, "Unknown error.")
		}
		return
	}

	slog.Info("get user")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(account.Profile())
}

// ResetPassword はリセットトークンを照合し新パスワードを設定する。
// POST /user/reset-password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeStrict(r, &req); err != nil {
		writeValidationErrors(w, []string{"Invalid request body"})
		return
	}

	var msgs []string
	msgs = append(msgs, validateEmail(req.Email)...)
	msgs = append(msgs, validatePassword(req.Password)...)
	if req.Key == "" {
		msgs = append(msgs, "key: Required")
	}
	if len(msgs) > 0 {
		slog.Warn("reset password input failed validation")
		writeValidationErrors(w, msgs)
		return
	}

	if err := h.service.RedeemPasswordReset(r.Context(), req.Email, req.Key, req.Password); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidResetRequest {
			writeJSONMessage(w, http.StatusBadRequest, apiErr.Message)
			return
		}
		slog.Error("reset password failed", slog.String("error", err.Error()))
		writeJSONMessage(w, http.StatusBadRequest, "Unknown error.")
		return
	}

	writeJSONMessage(w, http.StatusOK, "Your password has been updated.")
}

// Logout はセッションを破棄し、セッションCookieをクリアする。
// GET /user/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), h.sessionIDFromCookie(r)); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNoActiveSession {
			writeJSONString(w, http.StatusInternalServerError, apiErr.Message)
			return
		}
		slog.Error("logout failed", slog.String("error", err.Error()))
		writeJSONString(w, http.StatusInternalServerError, "Error destroying user session.")
		return
	}

	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusOK)
}

// --- ヘルパー ---

// sessionIDFromCookie はリクエストのCookieからセッションIDを取得する。
// Cookieが存在しない場合は空文字列を返す。
func (h *UserHandler) sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。
// maxAgeに-1を渡すとCookieを削除する。
func (h *UserHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeJSONString はJSONエンコードした文字列をレスポンスとして書き込む。
func writeJSONString(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(message)
}

// writeJSONMessage は{"message": ...}形式のレスポンスを書き込む。
func writeJSONMessage(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// writeValidationErrors はフィールドごとの検証エラーメッセージ配列を書き込む。
func writeValidationErrors(w http.ResponseWriter, messages []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(messages)
}
