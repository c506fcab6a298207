// Package document はドキュメントのアップロードと削除のドメインロジックを提供する。
//
// アップロードは次の順で状態が進む。
//
//	Received → Validated → Stored → Recorded → CleanedUp
//
// 検証で弾かれた場合はRejected、レコード作成に失敗した場合はRecordingFailedとなる。
// いずれの経路でも、ステージング済みの一時ファイルは処理の最後に必ず削除される。
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kbase/internal/metrics"
	"github.com/hitoshi/kbase/internal/model"
	"github.com/hitoshi/kbase/internal/repository"
)

// DefaultMaxFileSize はアップロード可能なファイルサイズの上限（10MiB）。
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// unknownFilename はファイル名が空白のみだった場合の保存名。
const unknownFilename = "unknown"

// allowedExtensions はアップロードを許可する拡張子（小文字）。
var allowedExtensions = map[string]struct{}{
	".pdf": {},
	".txt": {},
}

// OwnershipGuard は所有者確認のインターフェース。
type OwnershipGuard interface {
	KnowledgeBase(ctx context.Context, userID, kbID string) (*model.KnowledgeBaseWithCount, error)
	Document(ctx context.Context, userID, documentID string) (*model.Document, error)
}

// Service はドキュメントのサービス層。
type Service struct {
	docRepo     repository.DocumentRepository
	kbRepo      repository.KnowledgeBaseRepository
	guard       OwnershipGuard
	metrics     metrics.MetricsCollector
	maxFileSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
// maxFileSizeが0以下の場合はDefaultMaxFileSizeを使用する。
func NewService(
	docRepo repository.DocumentRepository,
	kbRepo repository.KnowledgeBaseRepository,
	guard OwnershipGuard,
	collector metrics.MetricsCollector,
	maxFileSize int64,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Service{
		docRepo:     docRepo,
		kbRepo:      kbRepo,
		guard:       guard,
		metrics:     collector,
		maxFileSize: maxFileSize,
	}
}

// MaxFileSize はアップロード可能なファイルサイズの上限を返す。
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload はステージング済みのフォームを検証し、ドキュメントを登録する。
// formの一時ファイルは戻る前に必ず削除される。
func (s *Service) Upload(ctx context.Context, userID string, form *UploadForm) (*model.Document, error) {
	start := time.Now()
	logger := slog.With(slog.String("user_id", userID))

	defer func() {
		if form.Path() == "" {
			return
		}
		if err := form.Cleanup(); err != nil {
			logger.Warn("upload cleanup failed", slog.String("error", err.Error()))
			return
		}
		logger.Debug("upload state", slog.String("state", "CleanedUp"))
	}()

	logger.Info("upload state",
		slog.String("state", "Received"),
		slog.String("filename", form.Filename),
		slog.Int64("size", form.Size),
	)

	kb, err := s.validate(ctx, userID, form)
	if err != nil {
		s.reject(logger, err)
		return nil, err
	}
	logger.Debug("upload state", slog.String("state", "Validated"), slog.String("knowledge_base_id", kb.ID))

	// 一時ファイルが読めることを確認する。読めない場合はリトライしない。
	staged, err := checkStaged(form.Path())
	if err != nil {
		logger.Error("upload state",
			slog.String("state", "RecordingFailed"),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("一時ファイルの読み込みに失敗しました: %w", err)
	}
	logger.Debug("upload state", slog.String("state", "Stored"), slog.Int64("bytes", staged))

	// created_atはストア側で採番する
	doc := &model.Document{
		ID:              uuid.New().String(),
		Filename:        storedFilename(form.Filename),
		FileSize:        form.Size,
		MimeType:        mimeTypeOrDefault(form.ContentType),
		OriginalText:    "",
		KnowledgeBaseID: kb.ID,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		logger.Error("upload state",
			slog.String("state", "RecordingFailed"),
			slog.String("knowledge_base_id", kb.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ドキュメントの登録に失敗しました: %w", err)
	}

	if err := s.kbRepo.Touch(ctx, kb.ID); err != nil {
		logger.Warn("knowledge base touch failed",
			slog.String("knowledge_base_id", kb.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordUploadAccepted(doc.FileSize)
	s.metrics.RecordUploadLatency(time.Since(start))
	logger.Info("upload state",
		slog.String("state", "Recorded"),
		slog.String("document_id", doc.ID),
		slog.String("knowledge_base_id", kb.ID),
	)

	return doc, nil
}

// validate はアップロードの検証ゲートを順に適用する。
// 最初に失敗したゲートのエラーを返す。
func (s *Service) validate(ctx context.Context, userID string, form *UploadForm) (*model.KnowledgeBaseWithCount, error) {
	switch {
	case form.FileCount == 0:
		return nil, model.NewFileRequiredError()
	case form.FileCount > 1:
		return nil, model.NewTooManyFilesError()
	}

	if form.Size > s.maxFileSize {
		return nil, model.NewFileTooLargeError(s.maxFileSize)
	}

	kbID := strings.TrimSpace(form.KnowledgeBaseID)
	if kbID == "" {
		return nil, model.NewKnowledgeBaseIDRequiredError()
	}

	if !IsAllowedFilename(form.Filename) {
		return nil, model.NewUnsupportedFileTypeError(form.Filename)
	}

	return s.guard.KnowledgeBase(ctx, userID, kbID)
}

// reject は検証失敗をログとメトリクスに記録する。
func (s *Service) reject(logger *slog.Logger, err error) {
	reason := model.ErrCodeInternal
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		reason = apiErr.Code
	}
	s.metrics.RecordUploadRejected(reason)
	logger.Info("upload state",
		slog.String("state", "Rejected"),
		slog.String("reason", reason),
	)
}

// storedFilename は保存用のファイル名を返す。
// 前後の空白を除くのみで、利用者が指定した名前をそのまま保持する。
func storedFilename(original string) string {
	name := strings.TrimSpace(original)
	if name == "" {
		return unknownFilename
	}
	return name
}

// checkStaged は一時ファイルが読み取り可能な通常ファイルであることを確認し、サイズを返す。
// 内容はメモリに読み込まない。
func checkStaged(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", path)
	}
	return info.Size(), nil
}

// Delete はドキュメントを削除する。
// 所有者は親ナレッジベースの所有者で判定し、所有していない場合はNotFoundを返す。
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	documentID = strings.TrimSpace(documentID)

	doc, err := s.guard.Document(ctx, userID, documentID)
	if err != nil {
		return err
	}

	deleted, err := s.docRepo.Delete(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewDocumentNotFoundError(documentID)
	}

	if err := s.kbRepo.Touch(ctx, doc.KnowledgeBaseID); err != nil {
		slog.Warn("knowledge base touch failed",
			slog.String("knowledge_base_id", doc.KnowledgeBaseID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordDocumentDeleted()
	slog.Info("document deleted",
		slog.String("document_id", doc.ID),
		slog.String("knowledge_base_id", doc.KnowledgeBaseID),
		slog.String("user_id", userID),
	)

	return nil
}

// IsAllowedFilename はファイル名の拡張子がアップロード可能なものかを判定する。
// 大文字小文字は区別しない。
func IsAllowedFilename(filename string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func mimeTypeOrDefault(contentType string) string {
	if ct := strings.TrimSpace(contentType); ct != "" {
		return ct
	}
	return model.DefaultMimeType
}
