package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kbase/internal/knowledgebase"
	"github.com/hitoshi/kbase/internal/model"
)

// maxJSONBodyBytes はJSONリクエストボディの読み取り上限。
const maxJSONBodyBytes = 64 * 1024

// KnowledgeBaseServiceInterface はナレッジベースハンドラーが必要とするサービスインターフェース。
type KnowledgeBaseServiceInterface interface {
	List(ctx context.Context, userID string) ([]model.KnowledgeBaseWithCount, error)
	Create(ctx context.Context, userID string, in knowledgebase.Input) (*model.KnowledgeBaseWithCount, error)
	Get(ctx context.Context, userID, id string) (*knowledgebase.Detail, error)
	Update(ctx context.Context, userID, id string, in knowledgebase.Input) (*model.KnowledgeBaseWithCount, error)
	Delete(ctx context.Context, userID, id string) error
}

// KnowledgeBaseHandler はナレッジベース管理のHTTPハンドラー。
type KnowledgeBaseHandler struct {
	service KnowledgeBaseServiceInterface
}

// NewKnowledgeBaseHandler はKnowledgeBaseHandlerを生成する。
func NewKnowledgeBaseHandler(service KnowledgeBaseServiceInterface) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{service: service}
}

// knowledgeBaseRequest はナレッジベース作成・更新リクエストのボディ。
type knowledgeBaseRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (req knowledgeBaseRequest) toInput() knowledgebase.Input {
	var in knowledgebase.Input
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	return in
}

// knowledgeBaseResponse はナレッジベースのAPIレスポンス。
type knowledgeBaseResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	UserID        string    `json:"userId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	DocumentCount int       `json:"documentCount"`
}

// knowledgeBaseDetailResponse は所属ドキュメントを含むナレッジベースのAPIレスポンス。
type knowledgeBaseDetailResponse struct {
	knowledgeBaseResponse
	Documents []documentResponse `json:"documents"`
}

// List はユーザーのナレッジベース一覧を返す。
// GET /api/knowledge-bases
func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	kbs, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]knowledgeBaseResponse, 0, len(kbs))
	for i := range kbs {
		resp = append(resp, toKnowledgeBaseResponse(&kbs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はナレッジベースを作成する。
// POST /api/knowledge-bases
func (h *KnowledgeBaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	req, ok := decodeKnowledgeBaseRequest(w, r)
	if !ok {
		return
	}

	kb, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toKnowledgeBaseResponse(kb))
}

// Get はナレッジベースを所属ドキュメント付きで返す。
// GET /api/knowledge-bases/{id}
func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := knowledgeBaseDetailResponse{
		knowledgeBaseResponse: toKnowledgeBaseResponse(&detail.KnowledgeBaseWithCount),
		Documents:             make([]documentResponse, 0, len(detail.Documents)),
	}
	for _, doc := range detail.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update はナレッジベースの名前と説明を更新する。
// PUT /api/knowledge-bases/{id}
func (h *KnowledgeBaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	req, ok := decodeKnowledgeBaseRequest(w, r)
	if !ok {
		return
	}

	kb, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toKnowledgeBaseResponse(kb))
}

// Delete はナレッジベースを削除する。
// DELETE /api/knowledge-bases/{id}
func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeKnowledgeBaseRequest はリクエストボディをデコードする。
// 解析に失敗した場合は400を書き込み、falseを返す。
func decodeKnowledgeBaseRequest(w http.ResponseWriter, r *http.Request) (knowledgeBaseRequest, bool) {
	var req knowledgeBaseRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return req, false
	}
	return req, true
}

// toKnowledgeBaseResponse はドメインモデルからAPIレスポンスに変換する。
func toKnowledgeBaseResponse(kb *model.KnowledgeBaseWithCount) knowledgeBaseResponse {
	return knowledgeBaseResponse{
		ID:            kb.ID,
		Name:          kb.Name,
		Description:   kb.Description,
		UserID:        kb.UserID,
		CreatedAt:     kb.CreatedAt,
		UpdatedAt:     kb.UpdatedAt,
		DocumentCount: kb.DocumentCount,
	}
}
