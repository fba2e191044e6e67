// Package session はログインセッションのライフサイクル管理を提供する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/accountd/internal/model"
	"github.com/hitoshi/accountd/internal/repository"
)

// DefaultMaxAge はセッションの有効期間のデフォルト値（7日間）。
const DefaultMaxAge = 7 * 24 * time.Hour

// Manager はセッションの作成・検索・破棄を提供する。
// 有効期限は作成時に固定され、アクティビティによる更新操作は存在しない。
type Manager struct {
	repo   repository.SessionRepository
	maxAge time.Duration
}

// NewManager はManagerを生成する。
// maxAgeが0以下の場合はDefaultMaxAgeを使用する。
func NewManager(repo repository.SessionRepository, maxAge time.Duration) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{repo: repo, maxAge: maxAge}
}

// MaxAge はセッションの有効期間を返す。Cookieのmax-age設定に使用する。
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Create は指定アカウントIDに紐づくセッションを作成し永続化する。
func (m *Manager) Create(ctx context.Context, accountID string) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        id,
		AccountID: accountID,
		ExpiresAt: now.Add(m.maxAge),
		CreatedAt: now,
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Load は指定IDのセッションを取得する。
// 存在しない場合と期限切れの場合はどちらもnilを返す（呼び出し側は区別できない）。
func (m *Manager) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Destroy は指定IDのセッションを破棄する。
// 冪等: すでに存在しないセッションの破棄はエラーにならない。
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// generateSessionID は暗号的に安全なopaqueセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
