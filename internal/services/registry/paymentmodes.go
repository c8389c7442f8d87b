package registry

import (
	"context"
	"strings"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/shopspring/decimal"
)

func modeName(m *models.PaymentMode) string { return m.Name }

// CreatePaymentMode adds a custom payment mode with an opening balance.
// The type defaults to "Wallet".
func (s *Service) CreatePaymentMode(ctx context.Context, ownerID, name, typ string, balance decimal.Decimal) (*models.PaymentMode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.modes, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("payment mode", existing, modeName, name, ""); err != nil {
		return nil, err
	}

	m := &models.PaymentMode{
		Meta:    models.Meta{OwnerID: ownerID},
		Name:    name,
		Type:    modeType(typ),
		Balance: balance,
	}
	if _, err := s.modes.Insert(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("owner_id", ownerID).
		Str("id", m.ID).
		Str("name", name).
		Str("balance", balance.String()).
		Msg("Payment mode created")
	return m, nil
}

func modeType(typ string) string {
	if typ = strings.TrimSpace(typ); typ == "" {
		return models.DefaultPaymentModeType
	}
	return typ
}

// ListPaymentModes returns the owner's custom payment modes by name.
func (s *Service) ListPaymentModes(ctx context.Context, ownerID string) ([]*models.PaymentMode, error) {
	out, err := list(ctx, s.modes, ownerID)
	if err != nil {
		return nil, err
	}
	sortByName(out, modeName)
	return out, nil
}

// UpdatePaymentMode changes a mode's name and type. The balance is only
// moved by transactions.
func (s *Service) UpdatePaymentMode(ctx context.Context, ownerID, id, name, typ string) (*models.PaymentMode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.modes, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("payment mode", existing, modeName, name, id); err != nil {
		return nil, err
	}
	m, err := modify(ctx, s.modes, ownerID, id, func(m *models.PaymentMode) error {
		m.Name = name
		m.Type = modeType(typ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Str("name", name).Msg("Payment mode updated")
	return m, nil
}

// DeletePaymentMode removes a custom payment mode. Transactions that used
// it display the fallback label and report it as dangling on reversal.
func (s *Service) DeletePaymentMode(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, s.modes, ownerID, id); err != nil {
		return err
	}
	if err := s.modes.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Payment mode deleted")
	return nil
}
