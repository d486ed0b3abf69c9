package http

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"

	"smartledger/internal/backup"
	"smartledger/internal/log"
)

type importResponse struct {
	Deleted  int `json:"deleted"`
	Imported int `json:"imported"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(mux.Vars(r), s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	report, err := s.ledger.Report(r.Context(), session(r), params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, log.OpReport, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleExport renders the backup into memory first so that a failure can
// still be reported with a proper status.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), session(r), &buf); err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+backup.FileName(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := ReadBody(w, r, maxBackupBody)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}
	res, err := s.ledger.Import(r.Context(), session(r), payload)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}
	NewJSONResponse().Body(importResponse{Deleted: res.Deleted, Imported: res.Imported}).Write(w)
}
