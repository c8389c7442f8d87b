package models

import "github.com/shopspring/decimal"

// AccountType distinguishes the cash wallet from ordinary bank accounts.
type AccountType string

const (
	AccountBank AccountType = "bank"
	AccountCash AccountType = "cash"
)

// CashWalletName is the name given to an auto-provisioned cash wallet.
const CashWalletName = "Cash Wallet"

// BankAccount is a bank account or, with Type cash, the owner's cash wallet.
type BankAccount struct {
	Meta
	Name    string          `json:"name"`
	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

func (b *BankAccount) Collection() string { return CollBankAccounts }
func (b *BankAccount) SortDate() string   { return "" }

// Ref returns the holder reference for this account.
func (b *BankAccount) Ref() HolderRef {
	if b.Type == AccountCash {
		return HolderRef{Kind: HolderCash, ID: b.ID}
	}
	return HolderRef{Kind: HolderBank, ID: b.ID}
}

// CreditCard tracks available credit: CurrentBalance is kept within [0, Limit].
type CreditCard struct {
	Meta
	Name           string          `json:"name"`
	Limit          decimal.Decimal `json:"limit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
}

func (c *CreditCard) Collection() string { return CollCreditCards }
func (c *CreditCard) SortDate() string   { return "" }
func (c *CreditCard) Ref() HolderRef     { return HolderRef{Kind: HolderCard, ID: c.ID} }

// Outstanding returns the amount currently owed on the card.
func (c *CreditCard) Outstanding() decimal.Decimal {
	return c.Limit.Sub(c.CurrentBalance)
}

// ClampCardBalance bounds a card balance to [0, limit].
func ClampCardBalance(balance, limit decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	if balance.GreaterThan(limit) {
		return limit
	}
	return balance
}

// DefaultPaymentModeType is used when a custom mode is created without a type.
const DefaultPaymentModeType = "Wallet"

// PaymentMode is a user-defined balance holder (wallet, UPI, online service).
type PaymentMode struct {
	Meta
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

func (p *PaymentMode) Collection() string { return CollPaymentModes }
func (p *PaymentMode) SortDate() string   { return "" }
func (p *PaymentMode) Ref() HolderRef     { return HolderRef{Kind: HolderCustom, ID: p.ID} }
