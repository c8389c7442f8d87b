package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/tally/internal/common"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Balance holders
	mux.HandleFunc("/api/bank-accounts/", s.routeBankAccounts)
	mux.HandleFunc("/api/bank-accounts", s.handleBankAccounts)
	mux.HandleFunc("/api/credit-cards/", s.routeCreditCards)
	mux.HandleFunc("/api/credit-cards", s.handleCreditCards)
	mux.HandleFunc("/api/cash/deposit", s.handleCashDeposit)
	mux.HandleFunc("/api/cash/withdraw", s.handleCashWithdraw)
	mux.HandleFunc("/api/cash", s.handleCash)

	// Transactions
	mux.HandleFunc("/api/expenses/", s.routeExpenses)
	mux.HandleFunc("/api/expenses", s.handleExpenses)
	mux.HandleFunc("/api/incomes/", s.routeIncomes)
	mux.HandleFunc("/api/incomes", s.handleIncomes)
	mux.HandleFunc("/api/investments/", s.routeInvestments)
	mux.HandleFunc("/api/investments", s.handleInvestments)
	mux.HandleFunc("/api/loans/", s.routeLoans)
	mux.HandleFunc("/api/loans", s.handleLoans)
	mux.HandleFunc("/api/loan-payments", s.handleAllLoanPayments)
	mux.HandleFunc("/api/lend-borrow/", s.routeLendBorrow)
	mux.HandleFunc("/api/lend-borrow", s.handleLendBorrow)

	// Registry
	mux.HandleFunc("/api/categories/", s.routeCategories)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/investment-categories/", s.routeInvestmentCategories)
	mux.HandleFunc("/api/investment-categories", s.handleInvestmentCategories)
	mux.HandleFunc("/api/payment-modes/", s.routePaymentModes)
	mux.HandleFunc("/api/payment-modes", s.handlePaymentModes)
	mux.HandleFunc("/api/goals/", s.routeGoals)
	mux.HandleFunc("/api/goals", s.handleGoals)

	// Reports
	mux.HandleFunc("/api/reports/budget", s.handleBudgetReport)
	mux.HandleFunc("/api/reports/dashboard", s.handleDashboardReport)
	mux.HandleFunc("/api/reports/calendar", s.handleCalendarReport)

	// Data
	mux.HandleFunc("/api/data", s.handleDataReset)
	mux.HandleFunc("/api/stream/", s.handleStream)
}

func (s *Server) routeBankAccounts(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/bank-accounts/")
	if id == "" {
		s.handleBankAccounts(w, r)
		return
	}
	if subpath != "" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleBankAccount(w, r, id)
}

func (s *Server) routeCreditCards(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/credit-cards/")
	switch {
	case id == "":
		s.handleCreditCards(w, r)
	case id == "payments" && subpath == "":
		s.handleCardPayments(w, r)
	case id == "payments":
		s.handleCardPaymentDelete(w, r, subpath)
	case subpath == "":
		s.handleCreditCard(w, r, id)
	case subpath == "pay":
		s.handleCardPay(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeExpenses(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/expenses/")
	switch {
	case id == "":
		s.handleExpenses(w, r)
	case subpath == "":
		s.handleExpense(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeIncomes(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/incomes/")
	switch {
	case id == "":
		s.handleIncomes(w, r)
	case subpath == "":
		s.handleIncome(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeInvestments(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/investments/")
	switch {
	case id == "":
		s.handleInvestments(w, r)
	case subpath == "":
		s.handleInvestment(w, r, id)
	case subpath == "sell":
		s.handleInvestmentSell(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeLoans(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/loans/")
	if id == "" {
		s.handleLoans(w, r)
		return
	}

	switch subpath {
	case "":
		s.handleLoan(w, r, id)
	case "pay":
		s.handleLoanPay(w, r, id)
	case "close":
		s.handleLoanClose(w, r, id)
	case "payments":
		s.handleLoanPayments(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeLendBorrow(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/lend-borrow/")
	switch {
	case id == "":
		s.handleLendBorrow(w, r)
	case subpath == "":
		s.handleLendBorrowItem(w, r, id)
	case subpath == "settle":
		s.handleLendBorrowSettle(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeCategories(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/categories/")
	switch {
	case id == "":
		s.handleCategories(w, r)
	case subpath == "":
		s.handleCategory(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeInvestmentCategories(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/investment-categories/")
	switch {
	case id == "":
		s.handleInvestmentCategories(w, r)
	case subpath == "":
		s.handleInvestmentCategory(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routePaymentModes(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/payment-modes/")
	switch {
	case id == "":
		s.handlePaymentModes(w, r)
	case subpath == "":
		s.handlePaymentMode(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) routeGoals(w http.ResponseWriter, r *http.Request) {
	id, subpath := splitPath(r, "/api/goals/")
	switch {
	case id == "":
		s.handleGoals(w, r)
	case subpath == "":
		s.handleGoal(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// requireOwner returns the acting owner, or writes 401 for an anonymous request.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := common.ResolveUserID(r.Context())
	if ownerID == "" {
		WriteErrorWithCode(w, http.StatusUnauthorized, "authentication required", "unauthenticated")
		return "", false
	}
	return ownerID, true
}
