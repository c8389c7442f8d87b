package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceKind tags the PaymentSource variant.
type SourceKind string

const (
	SourceCash   SourceKind = "cash"
	SourceBank   SourceKind = "bank"
	SourceCard   SourceKind = "credit_card"
	SourceCustom SourceKind = "custom"
)

// Legacy payment-mode tags as entered by users.
const (
	ModeCash = "Cash"
	ModeBank = "Bank"
	ModeCard = "Credit Card"
)

// PaymentSource says where money for a transaction came from or went to:
// Cash | Bank(id) | CreditCard(id) | Custom(id). It is resolved once when a
// transaction is created and frozen on the record.
type PaymentSource struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

func Cash() PaymentSource              { return PaymentSource{Kind: SourceCash} }
func Bank(id string) PaymentSource     { return PaymentSource{Kind: SourceBank, ID: id} }
func Card(id string) PaymentSource     { return PaymentSource{Kind: SourceCard, ID: id} }
func Custom(id string) PaymentSource   { return PaymentSource{Kind: SourceCustom, ID: id} }
func (p PaymentSource) IsZero() bool   { return p.Kind == "" }
func (p PaymentSource) String() string { return p.Label() + idSuffix(p.ID) }

func idSuffix(id string) string {
	if id == "" {
		return ""
	}
	return "(" + id + ")"
}

// Validate checks the variant is well formed.
func (p PaymentSource) Validate() error {
	switch p.Kind {
	case SourceCash:
		return nil
	case SourceBank, SourceCard, SourceCustom:
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%s payment source requires an id", p.Kind)
		}
		return nil
	case "":
		return fmt.Errorf("payment source is required")
	default:
		return fmt.Errorf("unknown payment source kind %q", p.Kind)
	}
}

// Label renders the legacy tag: "Cash", "Bank", "Credit Card", or the custom mode id.
func (p PaymentSource) Label() string {
	switch p.Kind {
	case SourceCash:
		return ModeCash
	case SourceBank:
		return ModeBank
	case SourceCard:
		return ModeCard
	default:
		return p.ID
	}
}

// Legacy splits the source back into the paymentMode/bankId/cardId triple.
func (p PaymentSource) Legacy() (mode, bankID, cardID string) {
	switch p.Kind {
	case SourceBank:
		return ModeBank, p.ID, ""
	case SourceCard:
		return ModeCard, "", p.ID
	default:
		return p.Label(), "", ""
	}
}

// ParsePaymentMode converts the legacy paymentMode tag plus optional
// bankId/cardId into a PaymentSource. Any tag other than the three literals
// is taken as a custom payment mode id.
func ParsePaymentMode(mode, bankID, cardID string) (PaymentSource, error) {
	mode = strings.TrimSpace(mode)
	switch mode {
	case "":
		return PaymentSource{}, fmt.Errorf("payment mode is required")
	case ModeCash:
		return Cash(), nil
	case ModeBank:
		if bankID == "" {
			return PaymentSource{}, fmt.Errorf("bank payment requires bankId")
		}
		return Bank(bankID), nil
	case ModeCard:
		if cardID == "" {
			return PaymentSource{}, fmt.Errorf("credit card payment requires cardId")
		}
		return Card(cardID), nil
	default:
		return Custom(mode), nil
	}
}

// HolderKind identifies which balance-holding collection a HolderRef points at.
type HolderKind string

const (
	HolderCash   HolderKind = "cash"
	HolderBank   HolderKind = "bank"
	HolderCard   HolderKind = "credit_card"
	HolderCustom HolderKind = "custom"
)

// HolderRef is a resolved reference to a BalanceHolder.
type HolderRef struct {
	Kind HolderKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r HolderRef) String() string { return string(r.Kind) + ":" + r.ID }

// Collection returns the collection the referenced holder lives in.
func (r HolderRef) Collection() string {
	switch r.Kind {
	case HolderCard:
		return CollCreditCards
	case HolderCustom:
		return CollPaymentModes
	default:
		return CollBankAccounts
	}
}

// Direction of a balance movement relative to the holder.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Movement is a balance change a transaction implies before it is resolved
// against a concrete holder.
type Movement struct {
	Source    PaymentSource
	Direction Direction
	Amount    decimal.Decimal
}

// Delta returns the signed amount: negative for debits.
func (m Movement) Delta() decimal.Decimal {
	if m.Direction == Debit {
		return m.Amount.Neg()
	}
	return m.Amount
}

// Effect is a delta that was actually applied to a holder (after clamping).
// Records keep their effects so reversal never re-derives the holder.
type Effect struct {
	Holder HolderRef       `json:"holder"`
	Delta  decimal.Decimal `json:"delta"`
}

// Warning is a non-fatal problem reported alongside a successful mutation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
