package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/randevuhq/randevu/internal/tenancy"
	"github.com/randevuhq/randevu/libs/auth"
)

type claimsKey struct{}

// RequireAuth verifies the bearer token and scopes the request context
// to the token's tenant.
func RequireAuth(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, secret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := tenancy.WithTenantID(r.Context(), claims.TenantID)
		ctx = context.WithValue(ctx, claimsKey{}, claims)
		next(w, r.WithContext(ctx))
	}
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}
