package middleware

import (
	"net/http"

	"companion-api/internal/services"
)

// AdminMiddleware allows either an admin user's bearer token or the rotating
// operations token in the x-admin-token header.
func AdminMiddleware(authService services.AuthService, adminTokens *services.AdminTokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opsToken := r.Header.Get("x-admin-token"); opsToken != "" {
				if adminTokens != nil && adminTokens.ValidateToken(opsToken) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := ExtractTokenFromHeader(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			user, err := authService.VerifyTokenAdmin(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := services.WithUserContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
