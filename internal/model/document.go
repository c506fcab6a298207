// Package model はドメインモデルを定義する。
package model

import "time"

// Document はアップロードされた1ファイルのメタデータを表す。
// 所有者は親ナレッジベースを経由して決まり、Document自体は所有者を持たない。
type Document struct {
	ID              string
	Filename        string
	FileSize        int64
	MimeType        string
	OriginalText    string // 抽出テキスト。現段階では常に空
	KnowledgeBaseID string
	CreatedAt       time.Time
}

// DefaultMimeType はアップロード時にContent-Typeが指定されなかった場合のMIMEタイプ。
const DefaultMimeType = "application/octet-stream"
