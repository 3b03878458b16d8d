package middleware

import (
	"net/http"
	"strings"

	"github.com/bloblets/arena-backend/api/responses"
	"github.com/bloblets/arena-backend/pkg/auth"
	"github.com/bloblets/arena-backend/pkg/config"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
	"github.com/bloblets/arena-backend/pkg/logger"
)

// Auth validates the bearer JWT and stores the wallet address on the request
// context. Requests without a valid token never reach the handler.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := header
			if strings.HasPrefix(strings.ToLower(header), "bearer ") {
				token = strings.TrimSpace(header[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := auth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithAddress(r.Context(), claims.Address)
			if logg != nil {
				ctx = logg.WithAddress(ctx, claims.Address)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
