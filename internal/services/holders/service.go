// Package holders is the balance store accessor: it reads and mutates every
// balance-holding entity (bank accounts, the cash wallet, credit cards and
// custom payment modes) and owns their CRUD.
package holders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/bobmcallan/tally/internal/storage"
	"github.com/shopspring/decimal"
)

// Compile-time interface check
var _ interfaces.HolderService = (*Service)(nil)

// Service implements HolderService
type Service struct {
	store  interfaces.DocumentStore
	banks  *storage.Collection[models.BankAccount, *models.BankAccount]
	cards  *storage.Collection[models.CreditCard, *models.CreditCard]
	modes  *storage.Collection[models.PaymentMode, *models.PaymentMode]
	config common.BalancesConfig
	retry  common.RetryPolicy
	logger *common.Logger
}

// NewService creates a holder service over store.
func NewService(store interfaces.DocumentStore, config common.BalancesConfig, logger *common.Logger) *Service {
	if config.MaxCASRetries < 1 {
		config.MaxCASRetries = 1
	}
	return &Service{
		store:  store,
		banks:  storage.NewCollection[models.BankAccount](store),
		cards:  storage.NewCollection[models.CreditCard](store),
		modes:  storage.NewCollection[models.PaymentMode](store),
		config: config,
		retry:  common.RetryPolicyFromConfig(config),
		logger: logger,
	}
}

// On returns a copy of the service bound to store (e.g. a batch transaction).
func (s *Service) On(store interfaces.DocumentStore) *Service {
	c := *s
	c.store = store
	c.banks = s.banks.On(store)
	c.cards = s.cards.On(store)
	c.modes = s.modes.On(store)
	return &c
}

// Store returns the store the service is bound to.
func (s *Service) Store() interfaces.DocumentStore { return s.store }

// cashWalletID is deterministic so concurrent first access cannot create two wallets.
func cashWalletID(ownerID string) string { return "cash-" + ownerID }

// Resolve maps a payment source to the holder it moves money on. Cash
// resolves to the owner's wallet, which is created on first use.
func (s *Service) Resolve(ctx context.Context, ownerID string, src models.PaymentSource) (models.HolderRef, error) {
	if err := src.Validate(); err != nil {
		return models.HolderRef{}, common.Invalid("paymentMode", err.Error())
	}
	switch src.Kind {
	case models.SourceCash:
		wallet, err := s.CashWallet(ctx, ownerID)
		if err != nil {
			return models.HolderRef{}, err
		}
		return wallet.Ref(), nil
	case models.SourceBank:
		return models.HolderRef{Kind: models.HolderBank, ID: src.ID}, nil
	case models.SourceCard:
		return models.HolderRef{Kind: models.HolderCard, ID: src.ID}, nil
	default:
		return models.HolderRef{Kind: models.HolderCustom, ID: src.ID}, nil
	}
}

// Exists reports whether ref still resolves to a holder owned by ownerID.
func (s *Service) Exists(ctx context.Context, ownerID string, ref models.HolderRef) (bool, error) {
	_, err := s.GetBalance(ctx, ownerID, ref)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetBalance re-reads the holder and returns its current balance. For a
// credit card this is the available credit.
func (s *Service) GetBalance(ctx context.Context, ownerID string, ref models.HolderRef) (decimal.Decimal, error) {
	balance, _, err := s.snapshot(ctx, ownerID, ref)
	return balance, err
}

// snapshot returns the holder's balance together with its stored version.
func (s *Service) snapshot(ctx context.Context, ownerID string, ref models.HolderRef) (decimal.Decimal, int, error) {
	switch ref.Kind {
	case models.HolderCard:
		c, err := s.cards.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		if err := ownership.Assert(c, ownerID); err != nil {
			return decimal.Zero, 0, err
		}
		return c.CurrentBalance, c.Version, nil
	case models.HolderCustom:
		m, err := s.modes.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		if err := ownership.Assert(m, ownerID); err != nil {
			return decimal.Zero, 0, err
		}
		return m.Balance, m.Version, nil
	case models.HolderBank, models.HolderCash:
		a, err := s.banks.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		if err := ownership.Assert(a, ownerID); err != nil {
			return decimal.Zero, 0, err
		}
		return a.Balance, a.Version, nil
	default:
		return decimal.Zero, 0, common.Invalid("holder", fmt.Sprintf("unknown kind %q", ref.Kind))
	}
}

// ApplyDelta adds delta to the holder's balance and returns the delta that
// was actually applied (a card clamps to [0, limit]). Every attempt re-reads
// the holder; a concurrent write is detected by version and retried.
func (s *Service) ApplyDelta(ctx context.Context, ownerID string, ref models.HolderRef, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.applyDelta(ctx, ownerID, ref, delta, s.config.EnforceNonNegative)
}

func (s *Service) applyDelta(ctx context.Context, ownerID string, ref models.HolderRef, delta decimal.Decimal, enforce bool) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, nil
	}

	for attempt := 1; ; attempt++ {
		applied, err := s.applyOnce(ctx, ownerID, ref, delta, enforce)
		if err == nil {
			s.logger.Info().
				Str("owner_id", ownerID).
				Str("holder", ref.String()).
				Str("delta", delta.String()).
				Str("applied", applied.String()).
				Msg("Balance updated")
			return applied, nil
		}
		if !errors.Is(err, common.ErrConflict) || attempt >= s.config.MaxCASRetries {
			return decimal.Zero, fmt.Errorf("apply %s to %s: %w", delta, ref, err)
		}
		s.logger.Debug().
			Str("holder", ref.String()).
			Int("attempt", attempt).
			Msg("Balance write conflicted, re-reading")
	}
}

func (s *Service) checkOverdraft(ref models.HolderRef, balance, delta decimal.Decimal, enforce bool) error {
	next := balance.Add(delta)
	if !delta.IsNegative() || !next.IsNegative() {
		return nil
	}
	if enforce {
		return fmt.Errorf("%s balance %s cannot cover %s: %w", ref, balance, delta.Neg(), common.ErrNegativeBalance)
	}
	s.logger.Warn().
		Str("holder", ref.String()).
		Str("balance", balance.String()).
		Str("delta", delta.String()).
		Msg("Holder overdrawn")
	return nil
}

// applyOnce reads the holder once and writes the new balance against the
// version it read.
func (s *Service) applyOnce(ctx context.Context, ownerID string, ref models.HolderRef, delta decimal.Decimal, enforce bool) (decimal.Decimal, error) {
	switch ref.Kind {
	case models.HolderCard:
		c, err := s.cards.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, err
		}
		if err := ownership.Assert(c, ownerID); err != nil {
			return decimal.Zero, err
		}
		next := models.ClampCardBalance(c.CurrentBalance.Add(delta), c.Limit)
		applied := next.Sub(c.CurrentBalance)
		if applied.IsZero() {
			return applied, nil
		}
		version := c.Version
		c.CurrentBalance = next
		return applied, s.writeBalance(ctx, ownerID, ref, version, next, func(ctx context.Context) error {
			return s.cards.Update(ctx, c)
		})

	case models.HolderCustom:
		m, err := s.modes.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, err
		}
		if err := ownership.Assert(m, ownerID); err != nil {
			return decimal.Zero, err
		}
		if err := s.checkOverdraft(ref, m.Balance, delta, enforce); err != nil {
			return decimal.Zero, err
		}
		version := m.Version
		m.Balance = m.Balance.Add(delta)
		return delta, s.writeBalance(ctx, ownerID, ref, version, m.Balance, func(ctx context.Context) error {
			return s.modes.Update(ctx, m)
		})

	case models.HolderBank, models.HolderCash:
		a, err := s.banks.Get(ctx, ref.ID)
		if err != nil {
			return decimal.Zero, err
		}
		if err := ownership.Assert(a, ownerID); err != nil {
			return decimal.Zero, err
		}
		if err := s.checkOverdraft(ref, a.Balance, delta, enforce); err != nil {
			return decimal.Zero, err
		}
		version := a.Version
		a.Balance = a.Balance.Add(delta)
		return delta, s.writeBalance(ctx, ownerID, ref, version, a.Balance, func(ctx context.Context) error {
			return s.banks.Update(ctx, a)
		})

	default:
		return decimal.Zero, common.Invalid("holder", fmt.Sprintf("unknown kind %q", ref.Kind))
	}
}

// writeBalance retries only the store write, always against the version
// that was read. A retry that conflicts may mean an earlier attempt
// committed but lost its acknowledgement: if the holder now sits at
// version+1 with the balance being written, the write is treated as done.
// Any other conflict goes back to the caller to re-read.
func (s *Service) writeBalance(ctx context.Context, ownerID string, ref models.HolderRef, version int, balance decimal.Decimal, write func(ctx context.Context) error) error {
	attempts := 0
	return common.RetryWrite(ctx, s.retry, func(ctx context.Context) error {
		attempts++
		err := write(ctx)
		if err == nil || attempts == 1 || !errors.Is(err, common.ErrConflict) {
			return err
		}
		current, currentVersion, rerr := s.snapshot(ctx, ownerID, ref)
		if rerr != nil {
			return err
		}
		if currentVersion == version+1 && current.Equal(balance) {
			s.logger.Warn().
				Str("holder", ref.String()).
				Int("version", currentVersion).
				Msg("Balance write committed before its error, not repeating")
			return nil
		}
		return err
	})
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", common.Invalid("name", "is required")
	}
	if len(name) > 100 {
		return "", common.Invalid("name", "exceeds 100 characters")
	}
	return name, nil
}
