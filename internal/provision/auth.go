package provision

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/henryk/ipsec-me/internal/models"
)

// SharedSecretAuth — Authorization: Bearer <secret> для административного
// JSON API. Download-маршруты этим не защищаются: их охраняет сам токен.
func SharedSecretAuth(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			const p = "Bearer "
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, p) || strings.TrimPrefix(auth, p) != secret {
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
