package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kbase/internal/document"
	"github.com/hitoshi/kbase/internal/model"
)

// multipartOverheadBytes はファイル上限に加えて許容するmultipartのヘッダーやフィールドの大きさ。
const multipartOverheadBytes = 1 << 20

// documentDeletedMessage はドキュメント削除成功時のメッセージ。
const documentDeletedMessage = "Document deleted successfully"

// DocumentServiceInterface はドキュメントハンドラーが必要とするサービスインターフェース。
type DocumentServiceInterface interface {
	// Upload はステージング済みのフォームを検証し、ドキュメントを登録する。
	Upload(ctx context.Context, userID string, form *document.UploadForm) (*model.Document, error)
	// Delete はユーザーが所有するドキュメントを削除する。
	Delete(ctx context.Context, userID, documentID string) error
	// MaxFileSize はアップロード可能なファイルサイズの上限を返す。
	MaxFileSize() int64
}

// DocumentHandler はドキュメントのアップロード・削除のHTTPハンドラー。
type DocumentHandler struct {
	service    DocumentServiceInterface
	stagingDir string
}

// NewDocumentHandler はDocumentHandlerを生成する。
// stagingDirはアップロードされたファイルを一時的に書き出すディレクトリ。
func NewDocumentHandler(service DocumentServiceInterface, stagingDir string) *DocumentHandler {
	return &DocumentHandler{
		service:    service,
		stagingDir: stagingDir,
	}
}

// documentResponse はドキュメントのAPIレスポンス。
type documentResponse struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	FileSize        int64     `json:"fileSize"`
	MimeType        string    `json:"mimeType"`
	KnowledgeBaseID string    `json:"knowledgeBaseId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// uploadResponse はアップロード成功時のレスポンス。
type uploadResponse struct {
	Document documentResponse `json:"document"`
}

// deleteDocumentRequest はドキュメント削除リクエストのボディ。
type deleteDocumentRequest struct {
	DocumentID string `json:"documentId"`
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// Upload はmultipartで送信された1ファイルをナレッジベースに登録する。
// POST /api/documents/upload
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	maxFileSize := h.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+multipartOverheadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	form, err := document.StageMultipart(mr, h.stagingDir, maxFileSize)
	if err != nil {
		h.writeStagingError(w, userID, maxFileSize, err)
		return
	}

	doc, err := h.service.Upload(r.Context(), userID, form)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Document: toDocumentResponse(doc)})
}

// writeStagingError はステージング中のエラーをレスポンスに変換する。
func (h *DocumentHandler) writeStagingError(w http.ResponseWriter, userID string, maxFileSize int64, err error) {
	switch {
	case document.IsBodyTooLarge(err):
		slog.Info("upload rejected",
			slog.String("user_id", userID),
			slog.String("reason", model.ErrCodeFileTooLarge),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewFileTooLargeError(maxFileSize))
	case errors.Is(err, document.ErrMalformedForm):
		slog.Info("upload rejected",
			slog.String("user_id", userID),
			slog.String("reason", model.ErrCodeInvalidRequest),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
	default:
		handleServiceError(w, err)
	}
}

// Delete はドキュメントを削除する。
// DELETE /api/documents/delete
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req deleteDocumentRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, req.DocumentID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: documentDeletedMessage})
}

// toDocumentResponse はドメインモデルからAPIレスポンスに変換する。
func toDocumentResponse(doc *model.Document) documentResponse {
	return documentResponse{
		ID:              doc.ID,
		Filename:        doc.Filename,
		FileSize:        doc.FileSize,
		MimeType:        doc.MimeType,
		KnowledgeBaseID: doc.KnowledgeBaseID,
		CreatedAt:       doc.CreatedAt,
	}
}
