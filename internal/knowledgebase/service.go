// Package knowledgebase はナレッジベース管理のドメインロジックを提供する。
package knowledgebase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/kbase/internal/metrics"
	"github.com/hitoshi/kbase/internal/model"
	"github.com/hitoshi/kbase/internal/repository"
)

// 入力値の最大長（文字数）
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
)

// Input はナレッジベースの作成・更新で受け付ける入力値。
// Descriptionが空白のみの場合は未設定（NULL）として保存する。
type Input struct {
	Name        string
	Description string
}

// Detail はナレッジベースと所属ドキュメント一覧を結合したドメインオブジェクト。
type Detail struct {
	model.KnowledgeBaseWithCount
	Documents []*model.Document
}

// OwnershipGuard は所有者確認のインターフェース。
type OwnershipGuard interface {
	KnowledgeBase(ctx context.Context, userID, kbID string) (*model.KnowledgeBaseWithCount, error)
}

// Service はナレッジベース管理のサービス層。
type Service struct {
	kbRepo  repository.KnowledgeBaseRepository
	docRepo repository.DocumentRepository
	guard   OwnershipGuard
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	kbRepo repository.KnowledgeBaseRepository,
	docRepo repository.DocumentRepository,
	guard OwnershipGuard,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		kbRepo:  kbRepo,
		docRepo: docRepo,
		guard:   guard,
		metrics: collector,
	}
}

// List はユーザーのナレッジベース一覧をドキュメント数付きで更新日時の新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]model.KnowledgeBaseWithCount, error) {
	kbs, err := s.kbRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ナレッジベース一覧の取得に失敗しました: %w", err)
	}
	return kbs, nil
}

// Create はナレッジベースを作成する。作成直後のドキュメント数は0。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.KnowledgeBaseWithCount, error) {
	name, description, err := normalize(in)
	if err != nil {
		return nil, err
	}

	// created_at, updated_atはストア側で採番する
	kb := &model.KnowledgeBase{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		UserID:      userID,
	}
	if err := s.kbRepo.Create(ctx, kb); err != nil {
		return nil, fmt.Errorf("ナレッジベースの作成に失敗しました: %w", err)
	}

	s.metrics.RecordKnowledgeBaseCreated()
	slog.Info("knowledge base created",
		slog.String("knowledge_base_id", kb.ID),
		slog.String("user_id", userID),
	)

	return &model.KnowledgeBaseWithCount{KnowledgeBase: *kb}, nil
}

// Get はナレッジベースを所属ドキュメント（作成日時の新しい順）付きで返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*Detail, error) {
	kb, err := s.guard.KnowledgeBase(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	docs, err := s.docRepo.ListByKnowledgeBaseID(ctx, kb.ID)
	if err != nil {
		return nil, fmt.Errorf("ドキュメント一覧の取得に失敗しました: %w", err)
	}

	return &Detail{KnowledgeBaseWithCount: *kb, Documents: docs}, nil
}

// Update はナレッジベースの名前と説明を置き換え、更新日時を進める。
// 入力検証はストアへのアクセス前に行うため、不正な入力でレコードは変化しない。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.KnowledgeBaseWithCount, error) {
	name, description, err := normalize(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.guard.KnowledgeBase(ctx, userID, id); err != nil {
		return nil, err
	}

	updated, err := s.kbRepo.Update(ctx, id, userID, name, description)
	if err != nil {
		return nil, fmt.Errorf("ナレッジベースの更新に失敗しました: %w", err)
	}
	if updated == nil {
		// 確認後に削除された
		return nil, model.NewKnowledgeBaseNotFoundError(id)
	}

	return updated, nil
}

// Delete はナレッジベースを削除する。所属ドキュメントも併せて削除される。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.guard.KnowledgeBase(ctx, userID, id); err != nil {
		return err
	}

	deleted, err := s.kbRepo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("ナレッジベースの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewKnowledgeBaseNotFoundError(id)
	}

	s.metrics.RecordKnowledgeBaseDeleted()
	slog.Info("knowledge base deleted",
		slog.String("knowledge_base_id", id),
		slog.String("user_id", userID),
	)

	return nil
}

// normalize は名前と説明の前後の空白を除き、検証する。
// それ以外の文字は入力のまま保存する。
func normalize(in Input) (string, *string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, model.NewNameRequiredError()
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", nil, model.NewFieldTooLongError("ナレッジベース名", MaxNameLength)
	}

	var description *string
	if d := strings.TrimSpace(in.Description); d != "" {
		if utf8.RuneCountInString(d) > MaxDescriptionLength {
			return "", nil, model.NewFieldTooLongError("説明", MaxDescriptionLength)
		}
		description = &d
	}

	return name, description, nil
}
