// Package identity は外部IdPの利用者情報を内部ユーザーへ解決する。
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kbase/internal/model"
	"github.com/hitoshi/kbase/internal/repository"
)

// ErrMissingSubject は外部IdPのsubjectが空の場合に返される。
// 認証境界では未認証として扱う。
var ErrMissingSubject = errors.New("external identity has no subject")

// Resolver は外部IDによるユーザーのget-or-createを行う。
type Resolver struct {
	userRepo repository.UserRepository
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(userRepo repository.UserRepository) *Resolver {
	return &Resolver{userRepo: userRepo}
}

// Resolve は外部IDに対応する内部ユーザーを返す。
// 未登録の場合はその場で作成する。同一外部IDで同時に作成が走った場合は
// 一意制約違反を検知して再検索し、先に作成されたレコードを返す。
func (r *Resolver) Resolve(ctx context.Context, ext model.ExternalIdentity) (*model.User, error) {
	subject := strings.TrimSpace(ext.Subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	user, err := r.userRepo.FindByExternalID(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user != nil {
		return user, nil
	}

	now := time.Now()
	user = &model.User{
		ID:         uuid.New().String(),
		ExternalID: subject,
		Email:      strings.TrimSpace(ext.Email),
		Name:       strings.TrimSpace(ext.Name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = r.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// 同時リクエストが先に作成した
		existing, findErr := r.userRepo.FindByExternalID(ctx, subject)
		if findErr != nil {
			return nil, fmt.Errorf("ユーザーの再検索に失敗しました: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("ユーザーの再検索で該当なし: %s", subject)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user provisioned",
		slog.String("user_id", user.ID),
		slog.String("external_id", subject),
	)

	return user, nil
}
