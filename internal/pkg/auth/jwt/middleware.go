package jwt

import (
	"net/http"
	"strings"

	"warelay/internal/pkg/errs"
	"warelay/internal/pkg/logx"
	"warelay/internal/pkg/resp"
)

// RequireTokenMiddleware verifies a relay access token before allowing the request
// through. The token is read from the Authorization header ("Bearer <token>") or,
// for WebSocket upgrades where custom headers are awkward for browsers, from the
// "token" query parameter. An empty secretKey disables the check entirely, which
// is only permitted in development.
func RequireTokenMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secretKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := ""

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					tokenString = parts[1]
				}
			}

			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}

			if tokenString == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			if _, err := ParseToken(tokenString, secretKey); err != nil {
				logx.Warn("Rejected request with invalid relay token", "error", err)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
