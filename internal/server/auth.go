package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"cohortaudit/internal/api"
)

const kindUnauthorized = "unauthorized"

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	token := s.token
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			s.writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Kind: kindUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}
