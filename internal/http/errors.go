package http

import (
	"errors"
	"net/http"

	"smartledger/internal/auth"
	"smartledger/internal/backup"
	"smartledger/internal/core"
	"smartledger/internal/log"
	"smartledger/internal/ports"
	"smartledger/internal/services"
)

// writeError maps a service error onto a status and a message safe to show.
// Unexpected errors are logged and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, backup.ErrInvalidBackup):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, services.ErrConfirmationRequired):
		ConflictError("Deleting a transaction must be confirmed with confirm=true.").Write(w)
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidSession):
		UnauthorizedError("Sign in required.").Write(w)
	case errors.Is(err, ports.ErrNotFound):
		NotFoundError("Transaction not found.").Write(w)
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	case errors.Is(err, backup.ErrImportFailed):
		logRequestError(r, "Import failed", op, err)
		InternalServerError("Import failed. Your ledger may be only partially restored; please retry the import.").Write(w)
	default:
		logRequestError(r, "Request failed", op, err)
		InternalServerError("Something went wrong. Please try again.").Write(w)
	}
}

// writeAuthError answers with one of the fixed authentication messages.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, op string, err error) {
	msg := auth.UserMessage(err)
	switch {
	case errors.Is(err, auth.ErrEmailInUse):
		ConflictError(msg).Write(w)
	case errors.Is(err, auth.ErrInvalidCredential):
		UnauthorizedError(msg).Write(w)
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		UnprocessableEntityError(msg).Write(w)
	default:
		logRequestError(r, "Authentication error", op, err)
		InternalServerError(msg).Write(w)
	}
}

func logRequestError(r *http.Request, msg, op string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), msg, err, log.ComponentHTTP, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", r.UserAgent()))
}
