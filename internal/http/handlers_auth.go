package http

import (
	"net/http"
	"time"

	"smartledger/internal/auth"
	"smartledger/internal/core"
	"smartledger/internal/log"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	User      core.User `json:"user"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newSessionResponse(sess *auth.Session, withToken bool) sessionResponse {
	resp := sessionResponse{User: sess.User, IssuedAt: sess.IssuedAt, ExpiresAt: sess.ExpiresAt}
	if withToken {
		resp.Token = sess.Token
	}
	return resp
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := DecodeJSONBody(w, r, &req, maxJSONBody); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, err := s.auth.SignUp(r.Context(), sanitizeInput(req.Email), req.Password, sanitizeInput(req.Name))
	if err != nil {
		s.writeAuthError(w, r, log.OpSignUp, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newSessionResponse(sess, true)).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := DecodeJSONBody(w, r, &req, maxJSONBody); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, err := s.auth.SignIn(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		s.writeAuthError(w, r, log.OpSignIn, err)
		return
	}
	NewJSONResponse().Body(newSessionResponse(sess, true)).Write(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newSessionResponse(session(r), false)).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), session(r)); err != nil {
		s.writeAuthError(w, r, log.OpSignOut, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
