// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/shopspring/decimal"
)

// HolderService reads and mutates balance holders
type HolderService interface {
	// Resolve maps a payment source to a holder, creating the cash wallet on first use
	Resolve(ctx context.Context, ownerID string, src models.PaymentSource) (models.HolderRef, error)

	// Exists reports whether the holder is still present
	Exists(ctx context.Context, ownerID string, ref models.HolderRef) (bool, error)

	// GetBalance returns the holder's current balance
	GetBalance(ctx context.Context, ownerID string, ref models.HolderRef) (decimal.Decimal, error)

	// ApplyDelta adds delta to the holder and returns the delta actually applied
	ApplyDelta(ctx context.Context, ownerID string, ref models.HolderRef, delta decimal.Decimal) (decimal.Decimal, error)

	CreateBankAccount(ctx context.Context, ownerID, name string, balance decimal.Decimal) (*models.BankAccount, error)
	GetBankAccount(ctx context.Context, ownerID, id string) (*models.BankAccount, error)
	UpdateBankAccount(ctx context.Context, ownerID, id, name string, balance decimal.Decimal) (*models.BankAccount, error)
	DeleteBankAccount(ctx context.Context, ownerID, id string) error
	ListBankAccounts(ctx context.Context, ownerID string) ([]*models.BankAccount, error)

	CreateCreditCard(ctx context.Context, ownerID, name string, limit decimal.Decimal, currentBalance *decimal.Decimal) (*models.CreditCard, error)
	GetCreditCard(ctx context.Context, ownerID, id string) (*models.CreditCard, error)
	UpdateCreditCard(ctx context.Context, ownerID, id, name string, limit decimal.Decimal, currentBalance *decimal.Decimal) (*models.CreditCard, error)
	DeleteCreditCard(ctx context.Context, ownerID, id string) error
	ListCreditCards(ctx context.Context, ownerID string) ([]*models.CreditCard, error)

	CashWallet(ctx context.Context, ownerID string) (*models.BankAccount, error)
	DepositCash(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.BankAccount, error)

	// WithdrawCash fails with ErrNegativeBalance rather than overdraw the wallet
	WithdrawCash(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.BankAccount, error)
}

// CardBillService transfers money from bank accounts to credit cards
type CardBillService interface {
	PayCardBill(ctx context.Context, ownerID, cardID, bankID string, amount decimal.Decimal, date string) (*models.CcPayment, error)
	ListCardPayments(ctx context.Context, ownerID, cardID string) ([]*models.CcPayment, error)

	// DeleteCardPayment may return a dangling reference error after a successful delete
	DeleteCardPayment(ctx context.Context, ownerID, id string) error
}

// LedgerService records transactions. Updates and deletes return warnings
// when an effect could not be reversed because its holder was deleted.
type LedgerService interface {
	CreateExpense(ctx context.Context, ownerID string, in models.Expense) (*models.Expense, error)
	GetExpense(ctx context.Context, ownerID, id string) (*models.Expense, error)
	ListExpenses(ctx context.Context, ownerID, month string) ([]*models.Expense, error)
	UpdateExpense(ctx context.Context, ownerID, id string, in models.Expense) (*models.Expense, []models.Warning, error)
	DeleteExpense(ctx context.Context, ownerID, id string) ([]models.Warning, error)

	CreateIncome(ctx context.Context, ownerID string, in models.Income) (*models.Income, error)
	GetIncome(ctx context.Context, ownerID, id string) (*models.Income, error)
	ListIncomes(ctx context.Context, ownerID, month string) ([]*models.Income, error)
	UpdateIncome(ctx context.Context, ownerID, id string, in models.Income) (*models.Income, []models.Warning, error)
	DeleteIncome(ctx context.Context, ownerID, id string) ([]models.Warning, error)

	CreateInvestment(ctx context.Context, ownerID string, in models.Investment) (*models.Investment, error)
	GetInvestment(ctx context.Context, ownerID, id string) (*models.Investment, error)
	ListInvestments(ctx context.Context, ownerID string) ([]*models.Investment, error)
	SellInvestment(ctx context.Context, ownerID, id string, amount decimal.Decimal, date string, src models.PaymentSource) (*models.Investment, error)
	DeleteInvestment(ctx context.Context, ownerID, id string) ([]models.Warning, error)

	CreateLoan(ctx context.Context, ownerID string, in models.Loan) (*models.Loan, error)
	GetLoan(ctx context.Context, ownerID, id string) (*models.Loan, error)
	ListLoans(ctx context.Context, ownerID string) ([]*models.Loan, error)
	UpdateLoan(ctx context.Context, ownerID, id string, in models.Loan) (*models.Loan, error)
	PayEMI(ctx context.Context, ownerID, loanID, date string, src models.PaymentSource) (*models.LoanPayment, *models.Loan, error)
	ForceCloseLoan(ctx context.Context, ownerID, id, date string) (*models.Loan, error)
	ListLoanPayments(ctx context.Context, ownerID, loanID string) ([]*models.LoanPayment, error)
	ListAllLoanPayments(ctx context.Context, ownerID, month string) ([]*models.LoanPayment, error)
	DeleteLoan(ctx context.Context, ownerID, id string) ([]models.Warning, error)

	CreateLendBorrow(ctx context.Context, ownerID string, in models.LendBorrow) (*models.LendBorrow, error)
	GetLendBorrow(ctx context.Context, ownerID, id string) (*models.LendBorrow, error)
	ListLendBorrow(ctx context.Context, ownerID string, typ models.LendBorrowType) ([]*models.LendBorrow, error)
	SettleLendBorrow(ctx context.Context, ownerID, id, date string, src models.PaymentSource) (*models.LendBorrow, error)
	DeleteLendBorrow(ctx context.Context, ownerID, id string) ([]models.Warning, error)
}

// RegistryService manages categories, payment modes and goals
type RegistryService interface {
	CreateCategory(ctx context.Context, ownerID, name string) (*models.Category, error)
	ListCategories(ctx context.Context, ownerID string) ([]*models.Category, error)
	RenameCategory(ctx context.Context, ownerID, id, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error

	CreateInvestmentCategory(ctx context.Context, ownerID, name string) (*models.InvestmentCategory, error)
	ListInvestmentCategories(ctx context.Context, ownerID string) ([]*models.InvestmentCategory, error)
	RenameInvestmentCategory(ctx context.Context, ownerID, id, name string) (*models.InvestmentCategory, error)
	DeleteInvestmentCategory(ctx context.Context, ownerID, id string) error

	CreatePaymentMode(ctx context.Context, ownerID, name, typ string, balance decimal.Decimal) (*models.PaymentMode, error)
	ListPaymentModes(ctx context.Context, ownerID string) ([]*models.PaymentMode, error)
	UpdatePaymentMode(ctx context.Context, ownerID, id, name, typ string) (*models.PaymentMode, error)
	DeletePaymentMode(ctx context.Context, ownerID, id string) error

	CreateGoal(ctx context.Context, ownerID string, in models.InvestmentGoal) (*models.InvestmentGoal, error)
	UpdateGoal(ctx context.Context, ownerID, id string, in models.InvestmentGoal) (*models.InvestmentGoal, error)
	DeleteGoal(ctx context.Context, ownerID, id string) error
	ListGoals(ctx context.Context, ownerID string) ([]*models.GoalProgress, error)

	// PaymentLabel and CategoryLabel fall back to "Wallet" for deleted references
	PaymentLabel(ctx context.Context, ownerID string, src models.PaymentSource) string
	CategoryLabel(ctx context.Context, ownerID, category string) string
}

// ReportService computes read-only aggregate views
type ReportService interface {
	BudgetSplit(ctx context.Context, ownerID string, year, month int) (*models.BudgetSplit, error)
	Dashboard(ctx context.Context, ownerID string) (*models.Dashboard, error)
	Calendar(ctx context.Context, ownerID string, year, month int) (*models.Calendar, error)
}
