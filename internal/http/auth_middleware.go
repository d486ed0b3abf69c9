package http

import (
	"errors"
	"net/http"

	"smartledger/internal/auth"
	"smartledger/internal/log"
)

// requireSession restores the session of the bearer token and hands it to the
// next handler through the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			UnauthorizedError("Sign in required.").Write(w)
			return
		}
		sess, err := s.auth.Restore(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidSession) {
				s.logger.ErrorContext(r.Context(), "Session restore failed", "error", err)
			}
			UnauthorizedError("Your session has expired. Please sign in again.").Write(w)
			return
		}
		ctx := auth.WithSession(r.Context(), sess)
		ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// session returns the session put in place by requireSession.
func session(r *http.Request) *auth.Session {
	sess, _ := auth.SessionFrom(r.Context())
	return sess
}
