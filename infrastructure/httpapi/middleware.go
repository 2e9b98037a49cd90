package httpapi

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// withAuth guards a route behind the bearer credential scheme. The
// resolved identity lands in the request context; a missing or invalid
// credential refuses the request without touching any state.
func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "Token is missing")
			return
		}

		userID, err := s.verifier.Authenticate(token)
		if err != nil {
			s.monitor.IncrAuthFailures()
			s.writeError(w, http.StatusUnauthorized, "Token is invalid")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	})
}

func currentUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
