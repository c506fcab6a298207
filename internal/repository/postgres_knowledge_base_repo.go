package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kbase/internal/model"
)

// PostgresKnowledgeBaseRepo はPostgreSQLを使用したナレッジベースリポジトリ。
type PostgresKnowledgeBaseRepo struct {
	db *sql.DB
}

// NewPostgresKnowledgeBaseRepo はPostgresKnowledgeBaseRepoを生成する。
func NewPostgresKnowledgeBaseRepo(db *sql.DB) *PostgresKnowledgeBaseRepo {
	return &PostgresKnowledgeBaseRepo{db: db}
}

// ドキュメント数は相関サブクエリで数える。一覧と単体取得で同じ列構成を使う。
const selectKnowledgeBaseWithCount = `
	SELECT kb.id, kb.name, kb.description, kb.user_id, kb.created_at, kb.updated_at,
	       (SELECT count(*) FROM documents d WHERE d.knowledge_base_id = kb.id) AS document_count
	FROM knowledge_bases kb`

// FindByIDAndUserID は指定ユーザーが所有するナレッジベースを取得する。
func (r *PostgresKnowledgeBaseRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.KnowledgeBaseWithCount, error) {
	row := r.db.QueryRowContext(ctx,
		selectKnowledgeBaseWithCount+` WHERE kb.id = $1 AND kb.user_id = $2`,
		id, userID,
	)
	kb, err := scanKnowledgeBaseWithCount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find knowledge base: %w", err)
	}
	return kb, nil
}

// ListByUserID はユーザーのナレッジベース一覧をupdated_at降順で返す。
func (r *PostgresKnowledgeBaseRepo) ListByUserID(ctx context.Context, userID string) ([]model.KnowledgeBaseWithCount, error) {
	rows, err := r.db.QueryContext(ctx,
		selectKnowledgeBaseWithCount+` WHERE kb.user_id = $1 ORDER BY kb.updated_at DESC, kb.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	kbs := make([]model.KnowledgeBaseWithCount, 0)
	for rows.Next() {
		kb, err := scanKnowledgeBaseWithCount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		kbs = append(kbs, *kb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge bases: %w", err)
	}

	return kbs, nil
}

// Create はナレッジベースを作成する。
// created_at, updated_atはUpdate, Touchと同じくDBのnow()で採番し、kbに書き戻す。
func (r *PostgresKnowledgeBaseRepo) Create(ctx context.Context, kb *model.KnowledgeBase) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO knowledge_bases (id, name, description, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 RETURNING created_at, updated_at`,
		kb.ID, kb.Name, kb.Description, kb.UserID,
	).Scan(&kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge base: %w", err)
	}
	return nil
}

// Update は名前と説明を更新する。所有者条件に一致しない場合はnilを返す。
func (r *PostgresKnowledgeBaseRepo) Update(ctx context.Context, id, userID, name string, description *string) (*model.KnowledgeBaseWithCount, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE knowledge_bases
		 SET name = $3, description = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		id, userID, name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update knowledge base: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	return r.FindByIDAndUserID(ctx, id, userID)
}

// Delete は指定ユーザーが所有するナレッジベースを削除する。
func (r *PostgresKnowledgeBaseRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM knowledge_bases WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Touch はupdated_atを現在時刻に更新する。
func (r *PostgresKnowledgeBaseRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE knowledge_bases SET updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch knowledge base: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeBaseWithCount(s rowScanner) (*model.KnowledgeBaseWithCount, error) {
	kb := &model.KnowledgeBaseWithCount{}
	var description sql.NullString
	err := s.Scan(
		&kb.ID, &kb.Name, &description, &kb.UserID,
		&kb.CreatedAt, &kb.UpdatedAt, &kb.DocumentCount,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		d := description.String
		kb.Description = &d
	}
	return kb, nil
}

// compile-time interface check
var _ KnowledgeBaseRepository = (*PostgresKnowledgeBaseRepo)(nil)
