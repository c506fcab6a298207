package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kbase/internal/identity"
	"github.com/hitoshi/kbase/internal/model"
)

// IdentityResolver は外部IDを内部ユーザーへ解決するインターフェース。
type IdentityResolver interface {
	Resolve(ctx context.Context, ext model.ExternalIdentity) (*model.User, error)
}

// NewIdentityMiddleware はセッションミドルウェアが注入した外部IDを内部ユーザーへ解決し、
// ユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// 初回アクセスのユーザーはこの時点で作成される。
// NewSessionMiddlewareの後段に配置すること。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ext, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteUnauthorized(w)
				return
			}

			user, err := resolver.Resolve(r.Context(), ext)
			if errors.Is(err, identity.ErrMissingSubject) {
				WriteUnauthorized(w)
				return
			}
			if err != nil {
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			annotateUserID(r.Context(), user.ID)
			ctx := ContextWithUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
