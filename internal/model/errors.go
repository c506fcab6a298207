// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, knowledge_base, document, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeNameRequired            = "NAME_REQUIRED"
	ErrCodeFieldTooLong            = "FIELD_TOO_LONG"
	ErrCodeKnowledgeBaseIDRequired = "KNOWLEDGE_BASE_ID_REQUIRED"
	ErrCodeFileRequired            = "FILE_REQUIRED"
	ErrCodeTooManyFiles            = "TOO_MANY_FILES"
	ErrCodeFileTooLarge            = "FILE_TOO_LARGE"
	ErrCodeUnsupportedFileType     = "UNSUPPORTED_FILE_TYPE"
	ErrCodeKnowledgeBaseNotFound   = "KNOWLEDGE_BASE_NOT_FOUND"
	ErrCodeDocumentNotFound        = "DOCUMENT_NOT_FOUND"
	ErrCodeRateLimitExceeded       = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFTokenInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeInternal                = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// NewNameRequiredError はナレッジベース名が空の場合のエラーを生成する。
func NewNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNameRequired,
		Message:  "ナレッジベース名は必須です。",
		Category: "validation",
		Action:   "空白以外の文字を含む名前を入力してください。",
	}
}

// NewFieldTooLongError は入力値が最大長を超えた場合のエラーを生成する。
func NewFieldTooLongError(field string, max int) *APIError {
	return &APIError{
		Code:     ErrCodeFieldTooLong,
		Message:  fmt.Sprintf("%sが長すぎます（最大%d文字）。", field, max),
		Category: "validation",
		Action:   fmt.Sprintf("%sを%d文字以内にしてください。", field, max),
	}
}

// NewKnowledgeBaseIDRequiredError はナレッジベースIDが未指定の場合のエラーを生成する。
func NewKnowledgeBaseIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeKnowledgeBaseIDRequired,
		Message:  "ナレッジベースIDは必須です。",
		Category: "validation",
		Action:   "アップロード先のナレッジベースを指定してください。",
	}
}

// NewFileRequiredError はファイルが添付されていない場合のエラーを生成する。
func NewFileRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFileRequired,
		Message:  "ファイルがアップロードされていません。",
		Category: "validation",
		Action:   "アップロードするファイルを選択してください。",
	}
}

// NewTooManyFilesError は複数ファイルが送信された場合のエラーを生成する。
func NewTooManyFilesError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyFiles,
		Message:  "一度にアップロードできるファイルは1つだけです。",
		Category: "validation",
		Action:   "ファイルを1つずつアップロードしてください。",
	}
}

// NewFileTooLargeError はファイルサイズ超過エラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "ファイルサイズを小さくしてから再度アップロードしてください。",
	}
}

// NewUnsupportedFileTypeError は許可されていない拡張子のエラーを生成する。
func NewUnsupportedFileTypeError(filename string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFileType,
		Message:  fmt.Sprintf("PDFとTXTファイルのみアップロードできます: %s", filename),
		Category: "validation",
		Action:   "拡張子が .pdf または .txt のファイルを選択してください。",
	}
}

// NewKnowledgeBaseNotFoundError はナレッジベースが存在しないか、
// 他ユーザーの所有である場合のエラーを生成する。
// 他ユーザーのリソースの存在を明かさないため、両者を区別しない。
func NewKnowledgeBaseNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeKnowledgeBaseNotFound,
		Message:  fmt.Sprintf("指定されたナレッジベースが見つかりません: %s", id),
		Category: "knowledge_base",
		Action:   "ナレッジベースIDを確認してください。",
	}
}

// NewDocumentNotFoundError はドキュメントが存在しないか、
// 他ユーザーの所有である場合のエラーを生成する。
func NewDocumentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("指定されたドキュメントが見つかりません: %s", id),
		Category: "document",
		Action:   "ドキュメントIDを確認してください。",
	}
}

// NewRateLimitExceededError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークンが欠落または不一致の場合のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンが無効です。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
