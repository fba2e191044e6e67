// Package model はドメインモデルを定義する。
package model

import "time"

// Account は登録済みユーザーの永続的なアイデンティティを表す。
// PasswordHashとResetTokenは外部に公開してはならない。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	ResetToken   string // 空文字列は「リセット要求なし」を意味する
	CreatedAt    time.Time
}

// Role はアカウントのアクセスレベルを表す。
type Role string

const (
	// RoleUser は一般ユーザー。アカウント作成時のデフォルト値。
	RoleUser Role = "user"
	// RoleAdmin は管理者ユーザー。
	RoleAdmin Role = "admin"
)

// AccountProfile はAccountの公開プロジェクション。
// /user/me のレスポンスとして返す項目のみを含み、
// PasswordHashとResetTokenを明示的に除外する。
type AccountProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	Role        Role      `json:"role"`
}

// Profile はAccountから公開プロジェクションを生成する。
func (a *Account) Profile() AccountProfile {
	return AccountProfile{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
		Role:        a.Role,
	}
}

// Session はユーザーのログインセッションを表す。
// IDは推測不能なopaqueな識別子で、Cookieの値としてクライアントに渡される。
// ExpiresAtは作成時に固定され、アクティビティによる延長は行わない。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
