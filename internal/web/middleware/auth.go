package middleware

import (
	"net/http"
	"strings"

	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/response"
)

// TokenParser verifies bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer token and stores the principal on the
// request context. WebSocket clients, which cannot set headers, may pass the
// token as ?access_token=.
func Authenticate(tokens TokenParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				response.RenderUnauthorized(w, "")
				return
			}
			claims, err := tokens.Parse(token)
			if err != nil {
				response.RenderUnauthorized(w, "Invalid or expired token")
				return
			}
			ctx := auth.WithPrincipal(r.Context(), claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// RequirePermission rejects principals without p
func RequirePermission(p auth.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.FromContext(r.Context())
			if !ok {
				response.RenderUnauthorized(w, "")
				return
			}
			if !principal.Can(p) {
				response.RenderForbidden(w, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
