package document

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
)

// フォームのフィールド名
const (
	FieldFile            = "file"
	FieldKnowledgeBaseID = "knowledgeBaseId"
)

// StagingPattern は一時ファイル名のパターン。クリーンアップワーカーもこれで対象を判別する。
const StagingPattern = "upload-*"

// maxFieldBytes はテキストフィールド1つあたりの読み取り上限。
const maxFieldBytes = 1024

// ErrMalformedForm はmultipartボディの解析に失敗した場合に返される。
var ErrMalformedForm = errors.New("malformed multipart form")

// UploadForm はステージング済みのアップロードフォームを表す。
// ファイル本体は一時ファイルに書き出され、Cleanupで削除される。
type UploadForm struct {
	// FileCount は受信したファイルパートの数。2つ目を検出した時点で読み取りを打ち切る。
	FileCount int
	// Filename はクライアントが送信した元のファイル名。
	Filename string
	// ContentType はファイルパートで宣言されたMIMEタイプ。
	ContentType string
	// Size はステージングしたバイト数。上限を超えた場合は上限+1で打ち切られる。
	Size int64
	// KnowledgeBaseID はアップロード先のナレッジベースID。
	KnowledgeBaseID string

	path string
}

// Path は一時ファイルのパスを返す。ファイルを受信していない場合は空文字列。
func (f *UploadForm) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Cleanup は一時ファイルを削除する。複数回呼び出しても安全。
func (f *UploadForm) Cleanup() error {
	if f == nil || f.path == "" {
		return nil
	}
	path := f.path
	f.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staged file: %w", err)
	}
	return nil
}

// StageMultipart はmultipartボディを先頭から読み、最初のファイルパートをdir配下の
// 一時ファイルに書き出す。ファイルはmaxBytes+1バイトまでしかコピーしないため、
// 上限を超えるアップロードを全量バッファリングせずに検出できる。
//
// 2つ目のファイルパートを検出した場合や上限超過を検出した場合は残りを読まずに返す。
// エラーを返す場合、一時ファイルは削除済み。
func StageMultipart(mr *multipart.Reader, dir string, maxBytes int64) (*UploadForm, error) {
	form := &UploadForm{}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			form.Cleanup()
			return nil, stagingError(err)
		}

		if part.FileName() != "" {
			form.FileCount++
			if form.FileCount > 1 {
				part.Close()
				return form, nil
			}
			if err := form.stageFile(part, dir, maxBytes); err != nil {
				part.Close()
				form.Cleanup()
				return nil, err
			}
			part.Close()
			if form.Size > maxBytes {
				return form, nil
			}
			continue
		}

		if part.FormName() == FieldKnowledgeBaseID {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				part.Close()
				form.Cleanup()
				return nil, stagingError(err)
			}
			form.KnowledgeBaseID = strings.TrimSpace(string(value))
		}
		part.Close()
	}
}

// stageFile はファイルパートを一時ファイルへコピーする。
func (f *UploadForm) stageFile(part *multipart.Part, dir string, maxBytes int64) error {
	tmp, err := os.CreateTemp(dir, StagingPattern)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	f.path = tmp.Name()
	f.Filename = part.FileName()
	f.ContentType = part.Header.Get("Content-Type")

	n, copyErr := io.Copy(tmp, io.LimitReader(part, maxBytes+1))
	closeErr := tmp.Close()
	f.Size = n

	if copyErr != nil {
		return stagingError(copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close staging file: %w", closeErr)
	}
	return nil
}

// stagingError はボディ読み取り中のエラーを分類する。
// ボディサイズ上限の超過と一時ファイルへの書き込み失敗はそのまま返し、
// それ以外はErrMalformedFormとして扱う。
func stagingError(err error) error {
	if IsBodyTooLarge(err) {
		return err
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("failed to write staging file: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedForm, err)
}

// IsBodyTooLarge はhttp.MaxBytesReaderの上限を超えたことによるエラーかを判定する。
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
