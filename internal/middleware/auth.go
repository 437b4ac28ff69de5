package middleware

import (
	"net/http"

	"github.com/jthomaz/cartwise/internal/auth"
	"github.com/jthomaz/cartwise/internal/store"
)

const sessionCookieName = "cartwise_session"

// RequireAuth validates the session cookie and populates AuthContext.
// The API is JSON-only, so failures are 401 responses rather than redirects.
func RequireAuth(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
