package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// PaymentLabel renders where a transaction's money moved for display.
// Accounts, cards and modes show their current name; a custom mode that no
// longer exists shows FallbackLabel.
func (s *Service) PaymentLabel(ctx context.Context, ownerID string, src models.PaymentSource) string {
	var (
		name string
		err  error
	)
	switch src.Kind {
	case models.SourceCash:
		return models.ModeCash
	case models.SourceBank:
		var a *models.BankAccount
		if a, err = load(ctx, s.banks, ownerID, src.ID); err == nil {
			name = a.Name
		}
	case models.SourceCard:
		var c *models.CreditCard
		if c, err = load(ctx, s.cards, ownerID, src.ID); err == nil {
			name = c.Name
		}
	case models.SourceCustom:
		var m *models.PaymentMode
		if m, err = load(ctx, s.modes, ownerID, src.ID); err == nil {
			name = m.Name
		}
	default:
		return FallbackLabel
	}

	if err != nil {
		if !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrForbidden) {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Str("source", src.String()).Msg("Failed to resolve payment label")
		}
		if src.Kind == models.SourceCustom {
			return FallbackLabel
		}
		return src.Label()
	}
	return name
}

// CategoryLabel returns category when the owner still has a category of
// that name, FallbackLabel otherwise.
func (s *Service) CategoryLabel(ctx context.Context, ownerID, category string) string {
	if strings.TrimSpace(category) == "" {
		return FallbackLabel
	}
	cats, err := list(ctx, s.categories, ownerID)
	if err != nil {
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("Failed to list categories")
		return FallbackLabel
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, category) {
			return c.Name
		}
	}
	return FallbackLabel
}
