// Package model はドメインモデルを定義する。
package model

import "time"

// KnowledgeBase はユーザーが所有するドキュメントの名前付きコレクションを表す。
type KnowledgeBase struct {
	ID          string
	Name        string
	Description *string // 未設定の場合はnil
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// KnowledgeBaseWithCount はナレッジベースと所属ドキュメント数を結合したモデル。
type KnowledgeBaseWithCount struct {
	KnowledgeBase
	DocumentCount int
}
