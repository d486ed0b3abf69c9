package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"smartledger/internal/core"
	"smartledger/internal/log"
	"smartledger/internal/services"
)

type transactionRequest struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Category    string     `json:"category,omitempty"`
}

type categoriesResponse struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

type transactionsResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
}

func (s *Server) today() core.Date {
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Header("Cache-Control", "private, max-age=3600").
		Body(categoriesResponse{
			Income:  core.Categories(core.KindIncome),
			Expense: core.Categories(core.KindExpense),
		}).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.List(r.Context(), session(r), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(transactionsResponse{Transactions: txs, Count: len(txs)}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSONBody(w, r, &req, maxJSONBody); err != nil {
		s.writeBodyError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	date := req.Date
	if date.IsZero() {
		date = s.today()
	}

	tx, err := s.ledger.Add(r.Context(), session(r), services.TransactionInput{
		Date:        date,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Kind:        kind,
	})
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSONBody(w, r, &req, maxJSONBody); err != nil {
		s.writeBodyError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	tx, err := s.ledger.Update(r.Context(), session(r), core.Transaction{
		ID:          mux.Vars(r)["id"],
		Date:        req.Date,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Kind:        kind,
		Category:    sanitizeInput(req.Category),
	})
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	confirmed := ParseBoolParam(r.URL.Query(), "confirm")
	if err := s.ledger.Delete(r.Context(), session(r), mux.Vars(r)["id"], confirmed); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// writeBodyError answers a body that could not be decoded. Amount and date
// values are rejected while decoding, so their errors keep the 422 status.
func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationError(err), errors.Is(err, errBodyTooLarge):
		s.writeError(w, r, log.OpValidate, err)
	default:
		BadRequestError(err.Error()).Write(w)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidKind} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
