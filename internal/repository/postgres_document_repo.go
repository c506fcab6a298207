package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kbase/internal/model"
)

// PostgresDocumentRepo はPostgreSQLを使用したドキュメントリポジトリ。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

// FindByIDAndOwner はドキュメントを親ナレッジベースの所有者で絞り込んで取得する。
// 所有者の判定はdocuments → knowledge_bases → usersの結合のみで行う。
func (r *PostgresDocumentRepo) FindByIDAndOwner(ctx context.Context, id, userID string) (*model.Document, error) {
	doc := &model.Document{}
	err := r.db.QueryRowContext(ctx,
		`SELECT d.id, d.filename, d.file_size, d.mime_type, d.original_text, d.knowledge_base_id, d.created_at
		 FROM documents d
		 INNER JOIN knowledge_bases kb ON kb.id = d.knowledge_base_id
		 WHERE d.id = $1 AND kb.user_id = $2`,
		id, userID,
	).Scan(&doc.ID, &doc.Filename, &doc.FileSize, &doc.MimeType, &doc.OriginalText, &doc.KnowledgeBaseID, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return doc, nil
}

// ListByKnowledgeBaseID はナレッジベースのドキュメント一覧をcreated_at降順で返す。
// 抽出テキストは一覧では返さない。
func (r *PostgresDocumentRepo) ListByKnowledgeBaseID(ctx context.Context, knowledgeBaseID string) ([]*model.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, filename, file_size, mime_type, knowledge_base_id, created_at
		 FROM documents
		 WHERE knowledge_base_id = $1
		 ORDER BY created_at DESC, id`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*model.Document, 0)
	for rows.Next() {
		doc := &model.Document{}
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileSize, &doc.MimeType, &doc.KnowledgeBaseID, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Create はドキュメントを作成する。created_atはDBのnow()で採番し、docに書き戻す。
func (r *PostgresDocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO documents (id, filename, file_size, mime_type, original_text, knowledge_base_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING created_at`,
		doc.ID, doc.Filename, doc.FileSize, doc.MimeType, doc.OriginalText, doc.KnowledgeBaseID,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Delete は指定IDのドキュメントを削除する。
func (r *PostgresDocumentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
