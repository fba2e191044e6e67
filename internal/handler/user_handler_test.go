package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/accountd/internal/model"
)

// --- モック ---

type mockAuthService struct {
	createAccountFn        func(ctx context.Context, email, password, displayName string) error
	loginFn                func(ctx context.Context, email, password string) (*model.Session, error)
	requestPasswordResetFn func(ctx context.Context, email string) error
	redeemPasswordResetFn  func(ctx context.Context, email, token, newPassword string) error
	logoutFn               func(ctx context.Context, sessionID string) error
	getCurrentAccountFn    func(ctx context.Context, sessionID string) (*model.Account, error)
}

func (m *mockAuthService) CreateAccount(ctx context.Context, email, password, displayName string) error {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, email, password, displayName)
	}
	return nil
}
func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.Session{ID: "sess-1", AccountID: "acct-1"}, nil
}
func (m *mockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, email)
	}
	return nil
}
func (m *mockAuthService) RedeemPasswordReset(ctx context.Context, email, token, newPassword string) error {
	if m.redeemPasswordResetFn != nil {
		return m.redeemPasswordResetFn(ctx, email, token, newPassword)
	}
	return nil
}
func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}
func (m *mockAuthService) GetCurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	if m.getCurrentAccountFn != nil {
		return m.getCurrentAccountFn(ctx, sessionID)
	}
	return nil, model.NewNotAuthenticatedError()
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func newTestHandler(svc AuthServiceInterface) *UserHandler {
	return NewUserHandler(svc, UserHandlerConfig{
		CookieDomain:  "",
		CookieSecure:  false,
		SessionMaxAge: 604800,
	})
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

// --- Create ---

// TestUserHandler_Create_Success は成功時に200と空ボディを返すことを検証する。
func TestUserHandler_Create_Success(t *testing.T) {
	var gotEmail, gotPassword, gotName string
	h := newTestHandler(&mockAuthService{
		createAccountFn: func(ctx context.Context, email, password, displayName string) error {
			gotEmail, gotPassword, gotName = email, password, displayName
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.Create(rec, postJSON("/user/create", `{"email":"alice@example.com","password":"hunter22","displayName":"Alice"}`))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if gotEmail != "alice@example.com" || gotPassword != "hunter22" || gotName != "Alice" {
		t.Errorf("service called with (%q, %q, %q)", gotEmail, gotPassword, gotName)
	}
}

// TestUserHandler_Create_DuplicateEmail は重複emailで固有のメッセージを返すことを検証する。
func TestUserHandler_Create_DuplicateEmail(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		createAccountFn: func(ctx context.Context, email, password, displayName string) error {
			return model.NewAccountExistsError()
		},
	})

	rec := httptest.NewRecorder()
	h.Create(rec, postJSON("/user/create", `{"email":"alice@example.com","password":"hunter22"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "An account with this email already exists." {
		t.Errorf("body = %q", msg)
	}
}

// TestUserHandler_Create_StoreFailure はストア障害時の一般メッセージを検証する。
func TestUserHandler_Create_StoreFailure(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		createAccountFn: func(ctx context.Context, email, password, displayName string) error {
			return errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	h.Create(rec, postJSON("/user/create", `{"email":"alice@example.com","password":"hunter22"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "Error while creating account" {
		t.Errorf("body = %q", msg)
	}
}

// TestUserHandler_Create_Validation は検証エラーがメッセージ配列になることを検証する。
func TestUserHandler_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "missing email",
			body: `{"password":"hunter22"}`,
			want: []string{"email: Required"},
		},
		{
			name: "invalid email",
			body: `{"email":"not-an-email","password":"hunter22"}`,
			want: []string{"email: Invalid email"},
		},
		{
			name: "password too short",
			body: `{"email":"alice@example.com","password":"short"}`,
			want: []string{"password: String must contain at least 7 character(s)"},
		},
		{
			name: "password too long",
			body: `{"email":"alice@example.com","password":"` + strings.Repeat("x", 31) + `"}`,
			want: []string{"password: String must contain at most 30 character(s)"},
		},
		{
			name: "both fields missing",
			body: `{}`,
			want: []string{"email: Required", "password: Required"},
		},
		{
			name: "unknown field rejected",
			body: `{"email":"alice@example.com","password":"hunter22","admin":true}`,
			want: []string{"Invalid request body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := newTestHandler(&mockAuthService{
				createAccountFn: func(ctx context.Context, email, password, displayName string) error {
					called = true
					return nil
				},
			})

			rec := httptest.NewRecorder()
			h.Create(rec, postJSON("/user/create", tt.body))

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}
			var msgs []string
			if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
				t.Fatalf("expected JSON array body, got %q: %v", rec.Body.String(), err)
			}
			if len(msgs) != len(tt.want) {
				t.Fatalf("messages = %v, want %v", msgs, tt.want)
			}
			for i := range tt.want {
				if msgs[i] != tt.want[i] {
					t.Errorf("messages[%d] = %q, want %q", i, msgs[i], tt.want[i])
				}
			}
			if called {
				t.Error("service should not be called when validation fails")
			}
		})
	}
}

// --- Login ---

// TestUserHandler_Login_SetsSessionCookie は成功時にHTTP OnlyのセッションCookieが
// 設定されることを検証する。
func TestUserHandler_Login_SetsSessionCookie(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return &model.Session{ID: "sess-abc", AccountID: "acct-1"}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Login(rec, postJSON("/user/login", `{"email":"alice@example.com","password":"hunter22"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "sess-abc" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "sess-abc")
	}
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}
	if cookie.MaxAge != 604800 {
		t.Errorf("MaxAge = %d, want 604800 (7 days)", cookie.MaxAge)
	}
}

// TestUserHandler_Login_InvalidCredentials は認証失敗のレスポンスを検証する。
// 「存在しないemail」と「パスワード不一致」はサービス層で同一エラーに正規化されている。
func TestUserHandler_Login_InvalidCredentials(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	})

	rec := httptest.NewRecorder()
	h.Login(rec, postJSON("/user/login", `{"email":"alice@example.com","password":"wrongpass"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "Invalid email or password." {
		t.Errorf("body = %q", msg)
	}
	if sessionCookie(rec) != nil {
		t.Error("no session cookie should be set on failed login")
	}
}

// TestUserHandler_Login_StoreFailure はストア障害時の一般メッセージを検証する。
func TestUserHandler_Login_StoreFailure(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	h.Login(rec, postJSON("/user/login", `{"email":"alice@example.com","password":"hunter22"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "An unknown error occured." {
		t.Errorf("body = %q", msg)
	}
}

// --- ForgotPassword ---

// TestUserHandler_ForgotPassword_Success は成功レスポンスを検証する。
// 未知のemailでもサービスはnilを返すため、同じレスポンスになる。
func TestUserHandler_ForgotPassword_Success(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	rec := httptest.NewRecorder()
	h.ForgotPassword(rec, postJSON("/user/forgot-password", `{"email":"alice@example.com"}`))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON object body, got %q: %v", rec.Body.String(), err)
	}
	if body["message"] != "Sent forgot password email." {
		t.Errorf("message = %q", body["message"])
	}
}

// TestUserHandler_ForgotPassword_MailFailure は送信失敗時の500レスポンスを検証する。
func TestUserHandler_ForgotPassword_MailFailure(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		requestPasswordResetFn: func(ctx context.Context, email string) error {
			return errors.New("smtp unavailable")
		},
	})

	rec := httptest.NewRecorder()
	h.ForgotPassword(rec, postJSON("/user/forgot-password", `{"email":"alice@example.com"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "An unknown error occured." {
		t.Errorf("body = %q", msg)
	}
}

// --- Me ---

// TestUserHandler_Me_ReturnsProfile はセッションCookieから公開プロジェクションを
// 返すことを検証する。ハッシュとリセットトークンは含まれない。
func TestUserHandler_Me_ReturnsProfile(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHandler(&mockAuthService{
		getCurrentAccountFn: func(ctx context.Context, sessionID string) (*model.Account, error) {
			if sessionID != "sess-abc" {
				t.Errorf("sessionID = %q, want %q", sessionID, "sess-abc")
			}
			return &model.Account{
				ID:           "acct-1",
				Email:        "alice@example.com",
				PasswordHash: "$2a$10$secret",
				DisplayName:  "Alice",
				Role:         model.RoleUser,
				ResetToken:   "pending-token",
				CreatedAt:    created,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-abc"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var profile map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("expected JSON object body, got %q: %v", rec.Body.String(), err)
	}
	if profile["id"] != "acct-1" || profile["email"] != "alice@example.com" {
		t.Errorf("profile = %v", profile)
	}
	if profile["displayName"] != "Alice" || profile["role"] != "user" {
		t.Errorf("profile = %v", profile)
	}
	body := rec.Body.String()
	if strings.Contains(body, "secret") || strings.Contains(body, "pending-token") {
		t.Errorf("response must not leak hash or reset token: %q", body)
	}
}

// TestUserHandler_Me_NotAuthenticated はセッションなしのレスポンスを検証する。
func TestUserHandler_Me_NotAuthenticated(t *testing.T) {
	h := newTestHandler(&mockAuthService{})

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/user/me", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON object body, got %q: %v", rec.Body.String(), err)
	}
	if body["message"] != "You are not logged in." {
		t.Errorf("message = %q", body["message"])
	}
}

// TestUserHandler_Me_AccountGone はセッションが孤児になった場合のレスポンスを検証する。
func TestUserHandler_Me_AccountGone(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		getCurrentAccountFn: func(ctx context.Context, sessionID string) (*model.Account, error) {
			return nil, model.NewInvalidAccountError()
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-abc"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "Invalid user." {
		t.Errorf("body = %q", msg)
	}
}

// --- ResetPassword ---

// TestUserHandler_ResetPassword_Success は成功レスポンスを検証する。
func TestUserHandler_ResetPassword_Success(t *testing.T) {
	var gotEmail, gotKey, gotPassword string
	h := newTestHandler(&mockAuthService{
		redeemPasswordResetFn: func(ctx context.Context, email, token, newPassword string) error {
			gotEmail, gotKey, gotPassword = email, token, newPassword
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.ResetPassword(rec, postJSON("/user/reset-password", `{"email":"alice@example.com","key":"token-1","password":"new-password"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON object body, got %q: %v", rec.Body.String(), err)
	}
	if body["message"] != "Your password has been updated." {
		t.Errorf("message = %q", body["message"])
	}
	if gotEmail != "alice@example.com" || gotKey != "token-1" || gotPassword != "new-password" {
		t.Errorf("service called with (%q, %q, %q)", gotEmail, gotKey, gotPassword)
	}
}

// TestUserHandler_ResetPassword_InvalidRequest はトークン不一致時の400レスポンスを検証する。
func TestUserHandler_ResetPassword_InvalidRequest(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		redeemPasswordResetFn: func(ctx context.Context, email, token, newPassword string) error {
			return model.NewInvalidResetRequestError()
		},
	})

	rec := httptest.NewRecorder()
	h.ResetPassword(rec, postJSON("/user/reset-password", `{"email":"alice@example.com","key":"bad-token","password":"new-password"}`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON object body, got %q: %v", rec.Body.String(), err)
	}
	if body["message"] != "Invalid reset request." {
		t.Errorf("message = %q", body["message"])
	}
}

// TestUserHandler_ResetPassword_MissingKey はkey必須の検証を確認する。
func TestUserHandler_ResetPassword_MissingKey(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		redeemPasswordResetFn: func(ctx context.Context, email, token, newPassword string) error {
			t.Error("service should not be called when key is missing")
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.ResetPassword(rec, postJSON("/user/reset-password", `{"email":"alice@example.com","password":"new-password"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msgs []string
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("expected JSON array body, got %q: %v", rec.Body.String(), err)
	}
	if len(msgs) != 1 || msgs[0] != "key: Required" {
		t.Errorf("messages = %v", msgs)
	}
}

// --- Logout ---

// TestUserHandler_Logout_ClearsCookie はログアウト時にCookieが削除されることを検証する。
func TestUserHandler_Logout_ClearsCookie(t *testing.T) {
	var gotSessionID string
	h := newTestHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			gotSessionID = sessionID
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/user/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-abc"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotSessionID != "sess-abc" {
		t.Errorf("Logout called with %q, want %q", gotSessionID, "sess-abc")
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie in response")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("expected cleared cookie, got value=%q maxAge=%d", cookie.Value, cookie.MaxAge)
	}
}

// TestUserHandler_Logout_NoActiveSession はセッションなしのログアウトを検証する。
func TestUserHandler_Logout_NoActiveSession(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return model.NewNoActiveSessionError()
		},
	})

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/user/logout", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "Session does not exist." {
		t.Errorf("body = %q", msg)
	}
}

// TestUserHandler_Logout_StoreFailure はストア障害時の一般メッセージを検証する。
func TestUserHandler_Logout_StoreFailure(t *testing.T) {
	h := newTestHandler(&mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/user/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-abc"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var msg string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("expected JSON string body, got %q: %v", rec.Body.String(), err)
	}
	if msg != "Error destroying user session." {
		t.Errorf("body = %q", msg)
	}
}
