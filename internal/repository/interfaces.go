// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/kbase/internal/model"
)

// ErrDuplicateKey は一意制約違反を表す。
// 同一外部IDのユーザーを同時に作成した場合などに返される。
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Create はユーザーを作成する。
	// external_idが既に存在する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// KnowledgeBaseRepository はナレッジベースの永続化インターフェース。
// 取得系はすべて所有ユーザーIDで絞り込む。
type KnowledgeBaseRepository interface {
	// FindByIDAndUserID は指定ユーザーが所有するナレッジベースを取得する。
	// 存在しない場合、または他ユーザーの所有である場合はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.KnowledgeBaseWithCount, error)

	// ListByUserID はユーザーのナレッジベース一覧をドキュメント数付きで
	// updated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.KnowledgeBaseWithCount, error)

	// Create はナレッジベースを作成する。
	// created_atとupdated_atはストアの時計で採番してkbに設定する。
	Create(ctx context.Context, kb *model.KnowledgeBase) error

	// Update は名前と説明を更新し、updated_atを現在時刻にする。
	// 対象が存在しないか所有者が異なる場合はnilを返す。
	Update(ctx context.Context, id, userID, name string, description *string) (*model.KnowledgeBaseWithCount, error)

	// Delete は指定ユーザーが所有するナレッジベースを削除する。
	// 所属ドキュメントはCASCADE削除される。削除した場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)

	// Touch はupdated_atを現在時刻に更新する。
	Touch(ctx context.Context, id string) error
}

// DocumentRepository はドキュメントメタデータの永続化インターフェース。
type DocumentRepository interface {
	// FindByIDAndOwner はドキュメントを親ナレッジベースの所有者で絞り込んで取得する。
	// 存在しない場合、または他ユーザーの所有である場合はnilを返す。
	FindByIDAndOwner(ctx context.Context, id, userID string) (*model.Document, error)

	// ListByKnowledgeBaseID はナレッジベースのドキュメント一覧をcreated_at降順で返す。
	ListByKnowledgeBaseID(ctx context.Context, knowledgeBaseID string) ([]*model.Document, error)

	// Create はドキュメントを作成する。created_atはストアの時計で採番してdocに設定する。
	Create(ctx context.Context, doc *model.Document) error

	// Delete は指定IDのドキュメントを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id string) (bool, error)
}
