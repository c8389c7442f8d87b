package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/engine"
	"github.com/shopspring/decimal"
)

// --- Bank account handlers ---

type bankAccountRequest struct {
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleBankAccounts(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		accounts, err := s.app.HolderService.ListBankAccounts(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"bankAccounts": accounts})
		return
	}

	var req bankAccountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	acct, err := s.app.HolderService.CreateBankAccount(r.Context(), ownerID, req.Name, req.Balance)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleBankAccount(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		acct, err := s.app.HolderService.GetBankAccount(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, acct)

	case http.MethodPut:
		var req bankAccountRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		acct, err := s.app.HolderService.UpdateBankAccount(ctx, ownerID, id, req.Name, req.Balance)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, acct)

	case http.MethodDelete:
		if err := s.app.HolderService.DeleteBankAccount(ctx, ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Credit card handlers ---

type creditCardRequest struct {
	Name           string           `json:"name"`
	Limit          decimal.Decimal  `json:"limit"`
	CurrentBalance *decimal.Decimal `json:"currentBalance,omitempty"`
}

func (s *Server) handleCreditCards(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		cards, err := s.app.HolderService.ListCreditCards(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"creditCards": cards})
		return
	}

	var req creditCardRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	card, err := s.app.HolderService.CreateCreditCard(r.Context(), ownerID, req.Name, req.Limit, req.CurrentBalance)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, card)
}

func (s *Server) handleCreditCard(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		card, err := s.app.HolderService.GetCreditCard(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, card)

	case http.MethodPut:
		var req creditCardRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		card, err := s.app.HolderService.UpdateCreditCard(ctx, ownerID, id, req.Name, req.Limit, req.CurrentBalance)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, card)

	case http.MethodDelete:
		if err := s.app.HolderService.DeleteCreditCard(ctx, ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Card bill handlers ---

func (s *Server) handleCardPay(w http.ResponseWriter, r *http.Request, cardID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		BankID string          `json:"bankId"`
		Amount decimal.Decimal `json:"amount"`
		Date   string          `json:"date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.Today()
	}

	payment, err := s.app.CardBillService.PayCardBill(r.Context(), ownerID, cardID, req.BankID, req.Amount, req.Date)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, payment)
}

func (s *Server) handleCardPayments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	payments, err := s.app.CardBillService.ListCardPayments(r.Context(), ownerID, r.URL.Query().Get("cardId"))
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) handleCardPaymentDelete(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	warns, err := splitWarnings(s.app.CardBillService.DeleteCardPayment(r.Context(), ownerID, id))
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteWarnings(w, http.StatusOK, "deleted", id, warns)
}

// splitWarnings separates a dangling reference, which follows a completed
// mutation, from a real failure.
func splitWarnings(err error) ([]models.Warning, error) {
	var dangling *engine.DanglingReferenceError
	if errors.As(err, &dangling) {
		return dangling.Warnings(), nil
	}
	return nil, err
}

// --- Cash handlers ---

type cashRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type cashMover func(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.BankAccount, error)

func (s *Server) handleCash(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	wallet, err := s.app.HolderService.CashWallet(r.Context(), ownerID)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleCashDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleCashMove(w, r, s.app.HolderService.DepositCash)
}

func (s *Server) handleCashWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCashMove(w, r, s.app.HolderService.WithdrawCash)
}

func (s *Server) handleCashMove(w http.ResponseWriter, r *http.Request, move cashMover) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req cashRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	wallet, err := move(r.Context(), ownerID, req.Amount)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, wallet)
}
