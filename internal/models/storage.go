package models

import "time"

// Collection names as persisted by the document store.
const (
	CollBankAccounts         = "bankAccounts"
	CollCreditCards          = "creditCards"
	CollPaymentModes         = "paymentModes"
	CollExpenses             = "expenses"
	CollIncomes              = "incomes"
	CollInvestments          = "investments"
	CollLoans                = "loans"
	CollLoanPayments         = "loanPayments"
	CollLendBorrow           = "lendBorrow"
	CollCcPayments           = "ccPayments"
	CollCategories           = "categories"
	CollInvestmentCategories = "investmentCategories"
	CollInvestmentGoals      = "investmentGoals"
)

// AllCollections lists every user-scoped collection, used by data reset.
var AllCollections = []string{
	CollBankAccounts, CollCreditCards, CollPaymentModes,
	CollExpenses, CollIncomes, CollInvestments,
	CollLoans, CollLoanPayments, CollLendBorrow, CollCcPayments,
	CollCategories, CollInvestmentCategories, CollInvestmentGoals,
}

// ValidCollection reports whether name is a known collection.
func ValidCollection(name string) bool {
	for _, c := range AllCollections {
		if c == name {
			return true
		}
	}
	return false
}

// Document is the generic stored form of an entity. Value holds the entity
// JSON; the other fields are lifted out so backends can index and filter.
type Document struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Version    int       `json:"version"`
	Date       string    `json:"date"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChangeAction is the kind of change delivered by a collection watch.
type ChangeAction string

const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
	ChangeDelete ChangeAction = "delete"
)

// ChangeEvent is pushed to collection watchers. Document is nil for deletes.
type ChangeEvent struct {
	Action     ChangeAction `json:"action"`
	Collection string       `json:"collection"`
	ID         string       `json:"id"`
	OwnerID    string       `json:"owner_id"`
	Document   *Document    `json:"document,omitempty"`
}
