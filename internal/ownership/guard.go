// Package ownership はリソースの所有者確認を提供する。
//
// 存在しないリソースと他ユーザーのリソースは区別せず、どちらもNotFoundとして扱う。
// 所有者確認は毎回ストアに問い合わせ、過去の確認結果を使い回さない。
package ownership

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/kbase/internal/model"
	"github.com/hitoshi/kbase/internal/repository"
)

// Guard はナレッジベースとドキュメントの所有者確認を行う。
type Guard struct {
	kbRepo  repository.KnowledgeBaseRepository
	docRepo repository.DocumentRepository
}

// NewGuard はGuardの新しいインスタンスを生成する。
func NewGuard(kbRepo repository.KnowledgeBaseRepository, docRepo repository.DocumentRepository) *Guard {
	return &Guard{kbRepo: kbRepo, docRepo: docRepo}
}

// KnowledgeBase は指定ユーザーが所有するナレッジベースをドキュメント数付きで返す。
// 所有していない場合はKNOWLEDGE_BASE_NOT_FOUNDを返す。
func (g *Guard) KnowledgeBase(ctx context.Context, userID, kbID string) (*model.KnowledgeBaseWithCount, error) {
	if !isUUID(kbID) {
		return nil, model.NewKnowledgeBaseNotFoundError(kbID)
	}

	kb, err := g.kbRepo.FindByIDAndUserID(ctx, kbID, userID)
	if err != nil {
		return nil, fmt.Errorf("ナレッジベースの取得に失敗しました: %w", err)
	}
	if kb == nil {
		return nil, model.NewKnowledgeBaseNotFoundError(kbID)
	}
	return kb, nil
}

// Document は親ナレッジベースを指定ユーザーが所有するドキュメントを返す。
// 所有していない場合はDOCUMENT_NOT_FOUNDを返す。
func (g *Guard) Document(ctx context.Context, userID, documentID string) (*model.Document, error) {
	if !isUUID(documentID) {
		return nil, model.NewDocumentNotFoundError(documentID)
	}

	doc, err := g.docRepo.FindByIDAndOwner(ctx, documentID, userID)
	if err != nil {
		return nil, fmt.Errorf("ドキュメントの取得に失敗しました: %w", err)
	}
	if doc == nil {
		return nil, model.NewDocumentNotFoundError(documentID)
	}
	return doc, nil
}

// isUUID はUUID列に渡せる形式かを判定する。
// 形式が不正なIDはストアに問い合わせずNotFoundとする。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
