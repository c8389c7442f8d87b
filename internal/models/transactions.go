package models

import (
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/shopspring/decimal"
)

// Transaction is a recorded monetary event that moves money on one or more
// balance holders. Movements describe the intended change; AppliedEffects are
// what the engine actually did and are what reversal undoes.
type Transaction interface {
	Entity
	Movements() []Movement
	AppliedEffects() []Effect
	SetAppliedEffects([]Effect)
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return common.Invalid(field, "must be greater than zero")
	}
	return nil
}

func requireDate(field, v string) error {
	if v == "" {
		return common.Invalid(field, "is required")
	}
	if _, err := ParseDate(v); err != nil {
		return common.Invalid(field, err.Error())
	}
	return nil
}

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return common.Invalid(field, "is required")
	}
	return nil
}

func requireSource(field string, p PaymentSource) error {
	if err := p.Validate(); err != nil {
		return common.Invalid(field, err.Error())
	}
	return nil
}

// Expense debits its payment source.
type Expense struct {
	Meta
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Date        string          `json:"date"`
	Payment     PaymentSource   `json:"payment"`
	Effects     []Effect        `json:"effects,omitempty"`
}

func (e *Expense) Collection() string            { return CollExpenses }
func (e *Expense) SortDate() string              { return e.Date }
func (e *Expense) AppliedEffects() []Effect      { return e.Effects }
func (e *Expense) SetAppliedEffects(fx []Effect) { e.Effects = fx }

func (e *Expense) Movements() []Movement {
	return []Movement{{Source: e.Payment, Direction: Debit, Amount: e.Amount}}
}

// Validate checks required fields.
func (e *Expense) Validate() error {
	if err := requirePositive("amount", e.Amount); err != nil {
		return err
	}
	if err := requireText("category", e.Category); err != nil {
		return err
	}
	if err := requireDate("date", e.Date); err != nil {
		return err
	}
	return requireSource("paymentMode", e.Payment)
}

// Income credits its payment source.
type Income struct {
	Meta
	Amount      decimal.Decimal `json:"amount"`
	SourceName  string          `json:"source"`
	Description string          `json:"description,omitempty"`
	Date        string          `json:"date"`
	Payment     PaymentSource   `json:"payment"`
	Effects     []Effect        `json:"effects,omitempty"`
}

func (i *Income) Collection() string            { return CollIncomes }
func (i *Income) SortDate() string              { return i.Date }
func (i *Income) AppliedEffects() []Effect      { return i.Effects }
func (i *Income) SetAppliedEffects(fx []Effect) { i.Effects = fx }

func (i *Income) Movements() []Movement {
	return []Movement{{Source: i.Payment, Direction: Credit, Amount: i.Amount}}
}

func (i *Income) Validate() error {
	if err := requirePositive("amount", i.Amount); err != nil {
		return err
	}
	if err := requireText("source", i.SourceName); err != nil {
		return err
	}
	if err := requireDate("date", i.Date); err != nil {
		return err
	}
	return requireSource("paymentMode", i.Payment)
}

// Investment debits its purchase source. A sale credits the sale source and
// records its own effects; the purchase effects are untouched by a sale.
type Investment struct {
	Meta
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Note        string          `json:"note,omitempty"`
	Payment     PaymentSource   `json:"payment"`
	Effects     []Effect        `json:"effects,omitempty"`
	Sold        bool            `json:"sold"`
	SellAmount  decimal.Decimal `json:"sellAmount,omitempty"`
	SellDate    string          `json:"sellDate,omitempty"`
	SalePayment *PaymentSource  `json:"salePayment,omitempty"`
	SaleEffects []Effect        `json:"saleEffects,omitempty"`
}

func (v *Investment) Collection() string            { return CollInvestments }
func (v *Investment) SortDate() string              { return v.Date }
func (v *Investment) AppliedEffects() []Effect      { return v.Effects }
func (v *Investment) SetAppliedEffects(fx []Effect) { v.Effects = fx }

func (v *Investment) Movements() []Movement {
	return []Movement{{Source: v.Payment, Direction: Debit, Amount: v.Amount}}
}

// SaleMovements returns the credit implied by selling for amount into src.
func (v *Investment) SaleMovements(src PaymentSource, amount decimal.Decimal) []Movement {
	return []Movement{{Source: src, Direction: Credit, Amount: amount}}
}

func (v *Investment) Validate() error {
	if err := requireText("name", v.Name); err != nil {
		return err
	}
	if err := requireText("category", v.Category); err != nil {
		return err
	}
	if err := requirePositive("amount", v.Amount); err != nil {
		return err
	}
	if err := requireDate("date", v.Date); err != nil {
		return err
	}
	return requireSource("paymentMode", v.Payment)
}

// Loan is a liability repaid by flat EMIs.
type Loan struct {
	Meta
	LoanName    string          `json:"loanName"`
	Lender      string          `json:"lender"`
	LoanAmount  decimal.Decimal `json:"loanAmount"`
	Remaining   decimal.Decimal `json:"remaining"`
	EMI         decimal.Decimal `json:"emi"`
	Interest    decimal.Decimal `json:"interest"`
	NextEMIDate string          `json:"nextEmiDate,omitempty"`
	Closed      bool            `json:"closed"`
	ClosedOn    string          `json:"closedOn,omitempty"`
}

func (l *Loan) Collection() string { return CollLoans }
func (l *Loan) SortDate() string   { return l.NextEMIDate }

func (l *Loan) Validate() error {
	if err := requireText("loanName", l.LoanName); err != nil {
		return err
	}
	if err := requirePositive("loanAmount", l.LoanAmount); err != nil {
		return err
	}
	if err := requirePositive("emi", l.EMI); err != nil {
		return err
	}
	if l.Interest.IsNegative() {
		return common.Invalid("interest", "must not be negative")
	}
	if l.NextEMIDate != "" {
		return requireDate("nextEmiDate", l.NextEMIDate)
	}
	return nil
}

// LoanPayment is one EMI paid against a loan; it debits its payment source.
type LoanPayment struct {
	Meta
	LoanID  string          `json:"loanId"`
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"`
	Payment PaymentSource   `json:"payment"`
	Effects []Effect        `json:"effects,omitempty"`
}

func (p *LoanPayment) Collection() string            { return CollLoanPayments }
func (p *LoanPayment) SortDate() string              { return p.Date }
func (p *LoanPayment) AppliedEffects() []Effect      { return p.Effects }
func (p *LoanPayment) SetAppliedEffects(fx []Effect) { p.Effects = fx }

func (p *LoanPayment) Movements() []Movement {
	return []Movement{{Source: p.Payment, Direction: Debit, Amount: p.Amount}}
}

func (p *LoanPayment) Validate() error {
	if err := requireText("loanId", p.LoanID); err != nil {
		return err
	}
	if err := requirePositive("amount", p.Amount); err != nil {
		return err
	}
	if err := requireDate("date", p.Date); err != nil {
		return err
	}
	return requireSource("paymentMode", p.Payment)
}

// LendBorrowType is lend (money given) or borrow (money received).
type LendBorrowType string

const (
	Lend   LendBorrowType = "lend"
	Borrow LendBorrowType = "borrow"
)

// LendBorrow is an informal debt with a person. Payment is optional: when
// absent, creation moves no money. Settlement moves money the other way.
type LendBorrow struct {
	Meta
	Type          LendBorrowType  `json:"type"`
	PersonName    string          `json:"personName"`
	SourceName    string          `json:"sourceName,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Description   string          `json:"description,omitempty"`
	Payment       *PaymentSource  `json:"payment,omitempty"`
	Effects       []Effect        `json:"effects,omitempty"`
	IsSettled     bool            `json:"isSettled"`
	SettledDate   string          `json:"settledDate,omitempty"`
	SettlePayment *PaymentSource  `json:"settlePayment,omitempty"`
	SettleEffects []Effect        `json:"settleEffects,omitempty"`
}

func (lb *LendBorrow) Collection() string            { return CollLendBorrow }
func (lb *LendBorrow) SortDate() string              { return lb.Date }
func (lb *LendBorrow) AppliedEffects() []Effect      { return lb.Effects }
func (lb *LendBorrow) SetAppliedEffects(fx []Effect) { lb.Effects = fx }

// Movements: lending debits the source, borrowing credits it.
func (lb *LendBorrow) Movements() []Movement {
	if lb.Payment == nil {
		return nil
	}
	dir := Debit
	if lb.Type == Borrow {
		dir = Credit
	}
	return []Movement{{Source: *lb.Payment, Direction: dir, Amount: lb.Amount}}
}

// SettleMovements: a lend is repaid into src, a borrow is repaid out of src.
func (lb *LendBorrow) SettleMovements(src PaymentSource) []Movement {
	dir := Credit
	if lb.Type == Borrow {
		dir = Debit
	}
	return []Movement{{Source: src, Direction: dir, Amount: lb.Amount}}
}

func (lb *LendBorrow) Validate() error {
	if lb.Type != Lend && lb.Type != Borrow {
		return common.Invalid("type", "must be lend or borrow")
	}
	if err := requireText("personName", lb.PersonName); err != nil {
		return err
	}
	if err := requirePositive("amount", lb.Amount); err != nil {
		return err
	}
	if err := requireDate("date", lb.Date); err != nil {
		return err
	}
	if lb.Payment != nil {
		return requireSource("paymentMode", *lb.Payment)
	}
	return nil
}

// CcPayment is a credit card bill payment: a transfer from a bank account to
// a card. It is history only and never appears as an expense or income.
type CcPayment struct {
	Meta
	CardID  string          `json:"cardId"`
	BankID  string          `json:"bankId"`
	Amount  decimal.Decimal `json:"amount"`
	Date    string          `json:"date"`
	Effects []Effect        `json:"effects,omitempty"`
}

func (c *CcPayment) Collection() string            { return CollCcPayments }
func (c *CcPayment) SortDate() string              { return c.Date }
func (c *CcPayment) AppliedEffects() []Effect      { return c.Effects }
func (c *CcPayment) SetAppliedEffects(fx []Effect) { c.Effects = fx }

func (c *CcPayment) Movements() []Movement {
	return []Movement{
		{Source: Bank(c.BankID), Direction: Debit, Amount: c.Amount},
		{Source: Card(c.CardID), Direction: Credit, Amount: c.Amount},
	}
}

func (c *CcPayment) Validate() error {
	if err := requireText("cardId", c.CardID); err != nil {
		return err
	}
	if err := requireText("bankId", c.BankID); err != nil {
		return err
	}
	if err := requirePositive("amount", c.Amount); err != nil {
		return err
	}
	return requireDate("date", c.Date)
}
