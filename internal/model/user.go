// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdPのsubjectをExternalIDとして一意に紐付ける。
type User struct {
	ID         string
	ExternalID string
	Email      string
	Name       string // 表示名（任意）。空文字はNULLとして保存される
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExternalIdentity は認証境界で検証済みの外部IdPの利用者情報を表す。
// Subjectは外部IdPが払い出す安定した識別子で、usersテーブルとの結合キーになる。
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// Session はユーザーのログインセッションを表す。
// ログイン時に検証した外部IdPの利用者情報を保持し、
// 内部ユーザーへの解決はリクエストごとに行う。
type Session struct {
	ID        string
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity はセッションが保持する外部IdPの利用者情報を返す。
func (s *Session) Identity() ExternalIdentity {
	return ExternalIdentity{
		Subject: s.Subject,
		Email:   s.Email,
		Name:    s.Name,
	}
}
