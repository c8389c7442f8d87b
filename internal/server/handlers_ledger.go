package server

import (
	"net/http"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/shopspring/decimal"
)

// --- Expense handlers ---

type expenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	paymentInput
}

func (req expenseRequest) expense() (models.Expense, error) {
	src, err := req.source()
	if err != nil {
		return models.Expense{}, err
	}
	return models.Expense{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
		Payment:     src,
	}, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		expenses, err := s.app.LedgerService.ListExpenses(r.Context(), ownerID, r.URL.Query().Get("month"))
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"expenses": expenses})
		return
	}

	var req expenseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	in, err := req.expense()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	exp, err := s.app.LedgerService.CreateExpense(r.Context(), ownerID, in)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleExpense(w http.ResponseWriter, r *http.Request, id string) {
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
		exp, err := s.app.LedgerService.GetExpense(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, exp)

	case http.MethodPut:
		var req expenseRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		in, err := req.expense()
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		exp, warns, err := s.app.LedgerService.UpdateExpense(ctx, ownerID, id, in)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteWarnings(w, http.StatusOK, "expense", exp, warns)

	case http.MethodDelete:
		warns, err := s.app.LedgerService.DeleteExpense(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteWarnings(w, http.StatusOK, "deleted", id, warns)
	}
}

// --- Income handlers ---

type incomeRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Source      string          `json:"source"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	paymentInput
}

func (req incomeRequest) income() (models.Income, error) {
	src, err := req.source()
	if err != nil {
		return models.Income{}, err
	}
	return models.Income{
		Amount:      req.Amount,
		SourceName:  req.Source,
		Description: req.Description,
		Date:        req.Date,
		Payment:     src,
	}, nil
}

func (s *Server) handleIncomes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		incomes, err := s.app.LedgerService.ListIncomes(r.Context(), ownerID, r.URL.Query().Get("month"))
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"incomes": incomes})
		return
	}

	var req incomeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	in, err := req.income()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	inc, err := s.app.LedgerService.CreateIncome(r.Context(), ownerID, in)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request, id string) {
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
		inc, err := s.app.LedgerService.GetIncome(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, inc)

	case http.MethodPut:
		var req incomeRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		in, err := req.income()
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		inc, warns, err := s.app.LedgerService.UpdateIncome(ctx, ownerID, id, in)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteWarnings(w, http.StatusOK, "income", inc, warns)

	case http.MethodDelete:
		warns, err := s.app.LedgerService.DeleteIncome(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteWarnings(w, http.StatusOK, "deleted", id, warns)
	}
}

// --- Investment handlers ---

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		investments, err := s.app.LedgerService.ListInvestments(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"investments": investments})
		return
	}

	var req struct {
		Name     string          `json:"name"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Date     string          `json:"date"`
		Note     string          `json:"note"`
		paymentInput
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	src, err := req.source()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	inv, err := s.app.LedgerService.CreateInvestment(r.Context(), ownerID, models.Investment{
		Name:     req.Name,
		Category: req.Category,
		Amount:   req.Amount,
		Date:     req.Date,
		Note:     req.Note,
		Payment:  src,
	})
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleInvestment(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		inv, err := s.app.LedgerService.GetInvestment(r.Context(), ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, inv)
		return
	}

	warns, err := s.app.LedgerService.DeleteInvestment(r.Context(), ownerID, id)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteWarnings(w, http.StatusOK, "deleted", id, warns)
}

func (s *Server) handleInvestmentSell(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Date   string          `json:"date"`
		paymentInput
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	src, err := req.source()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	inv, err := s.app.LedgerService.SellInvestment(r.Context(), ownerID, id, req.Amount, req.Date, src)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

// --- Loan handlers ---

type loanRequest struct {
	LoanName    string           `json:"loanName"`
	Lender      string           `json:"lender"`
	LoanAmount  decimal.Decimal  `json:"loanAmount"`
	Remaining   *decimal.Decimal `json:"remaining,omitempty"`
	EMI         decimal.Decimal  `json:"emi"`
	Interest    decimal.Decimal  `json:"interest"`
	NextEMIDate string           `json:"nextEmiDate"`
}

func (req loanRequest) loan() models.Loan {
	l := models.Loan{
		LoanName:    req.LoanName,
		Lender:      req.Lender,
		LoanAmount:  req.LoanAmount,
		EMI:         req.EMI,
		Interest:    req.Interest,
		NextEMIDate: req.NextEMIDate,
	}
	if req.Remaining != nil {
		l.Remaining = *req.Remaining
	}
	return l
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		loans, err := s.app.LedgerService.ListLoans(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"loans": loans})
		return
	}

	var req loanRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	loan, err := s.app.LedgerService.CreateLoan(r.Context(), ownerID, req.loan())
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, loan)
}

func (s *Server) handleLoan(w http.ResponseWriter, r *http.Request, id string) {
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
		loan, err := s.app.LedgerService.GetLoan(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, loan)

	case http.MethodPut:
		var req loanRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		in := req.loan()
		if req.Remaining == nil {
			// Keep the current remaining amount when the client omits it.
			cur, err := s.app.LedgerService.GetLoan(ctx, ownerID, id)
			if err != nil {
				s.WriteServiceError(w, r, err)
				return
			}
			in.Remaining = cur.Remaining
		}
		loan, err := s.app.LedgerService.UpdateLoan(ctx, ownerID, id, in)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, loan)

	case http.MethodDelete:
		warns, err := s.app.LedgerService.DeleteLoan(ctx, ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteWarnings(w, http.StatusOK, "deleted", id, warns)
	}
}

func (s *Server) handleLoanPay(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
		paymentInput
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.Today()
	}
	src, err := req.source()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	payment, loan, err := s.app.LedgerService.PayEMI(r.Context(), ownerID, id, req.Date, src)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"payment": payment,
		"loan":    loan,
	})
}

func (s *Server) handleLoanClose(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if r.ContentLength != 0 && !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.Today()
	}

	loan, err := s.app.LedgerService.ForceCloseLoan(r.Context(), ownerID, id, req.Date)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, loan)
}

func (s *Server) handleLoanPayments(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	payments, err := s.app.LedgerService.ListLoanPayments(r.Context(), ownerID, id)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (s *Server) handleAllLoanPayments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	payments, err := s.app.LedgerService.ListAllLoanPayments(r.Context(), ownerID, r.URL.Query().Get("month"))
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// --- Lend/borrow handlers ---

func (s *Server) handleLendBorrow(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		typ := models.LendBorrowType(r.URL.Query().Get("type"))
		entries, err := s.app.LedgerService.ListLendBorrow(r.Context(), ownerID, typ)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
		return
	}

	var req struct {
		Type        models.LendBorrowType `json:"type"`
		PersonName  string                `json:"personName"`
		SourceName  string                `json:"sourceName"`
		Amount      decimal.Decimal       `json:"amount"`
		Date        string                `json:"date"`
		Description string                `json:"description"`
		paymentInput
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	src, err := req.optionalSource()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	lb, err := s.app.LedgerService.CreateLendBorrow(r.Context(), ownerID, models.LendBorrow{
		Type:        req.Type,
		PersonName:  req.PersonName,
		SourceName:  req.SourceName,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
		Payment:     src,
	})
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, lb)
}

func (s *Server) handleLendBorrowItem(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		lb, err := s.app.LedgerService.GetLendBorrow(r.Context(), ownerID, id)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, lb)
		return
	}

	warns, err := s.app.LedgerService.DeleteLendBorrow(r.Context(), ownerID, id)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteWarnings(w, http.StatusOK, "deleted", id, warns)
}

func (s *Server) handleLendBorrowSettle(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
		paymentInput
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = models.Today()
	}
	src, err := req.source()
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}

	lb, err := s.app.LedgerService.SettleLendBorrow(r.Context(), ownerID, id, req.Date, src)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, lb)
}
