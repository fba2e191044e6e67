package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"unicode/utf8"
)

// パスワード長の制約。スキーマ検証としてハンドラー層で適用する。
const (
	passwordMinLen = 7
	passwordMaxLen = 30
)

// decodeStrict はリクエストボディをJSONとしてデコードする。
// 未知のフィールドは拒否する（strictスキーマ）。
func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// validateEmail はemailの形式を検証し、フィールドごとのメッセージを返す。
func validateEmail(email string) []string {
	if email == "" {
		return []string{"email: Required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return []string{"email: Invalid email"}
	}
	return nil
}

// validatePassword はパスワード長を検証し、フィールドごとのメッセージを返す。
// 長さはバイト数ではなく文字数（rune数）で数える。
func validatePassword(password string) []string {
	if password == "" {
		return []string{"password: Required"}
	}
	length := utf8.RuneCountInString(password)
	if length < passwordMinLen {
		return []string{fmt.Sprintf("password: String must contain at least %d character(s)", passwordMinLen)}
	}
	if length > passwordMaxLen {
		return []string{fmt.Sprintf("password: String must contain at most %d character(s)", passwordMaxLen)}
	}
	return nil
}
