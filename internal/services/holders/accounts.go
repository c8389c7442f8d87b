package holders

import (
	"context"
	"errors"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/shopspring/decimal"
)

// CreateBankAccount adds a bank account with an opening balance.
func (s *Service) CreateBankAccount(ctx context.Context, ownerID, name string, balance decimal.Decimal) (*models.BankAccount, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	acct := &models.BankAccount{
		Meta:    models.Meta{OwnerID: ownerID},
		Name:    name,
		Type:    models.AccountBank,
		Balance: balance,
	}
	if _, err := s.banks.Insert(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", acct.ID).Str("name", name).Msg("Bank account created")
	return acct, nil
}

// GetBankAccount returns one of the owner's accounts (including the wallet).
func (s *Service) GetBankAccount(ctx context.Context, ownerID, id string) (*models.BankAccount, error) {
	acct, err := s.banks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownership.Assert(acct, ownerID); err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateBankAccount renames an account and sets its balance directly.
func (s *Service) UpdateBankAccount(ctx context.Context, ownerID, id, name string, balance decimal.Decimal) (*models.BankAccount, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	acct, err := s.GetBankAccount(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	acct.Name = name
	acct.Balance = balance
	if err := s.banks.Update(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Str("balance", balance.String()).Msg("Bank account updated")
	return acct, nil
}

// DeleteBankAccount removes a bank account. Transactions that paid through
// it keep their effects and report the account as dangling on reversal.
func (s *Service) DeleteBankAccount(ctx context.Context, ownerID, id string) error {
	acct, err := s.GetBankAccount(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if acct.Type == models.AccountCash {
		return common.Invalid("id", "the cash wallet cannot be deleted")
	}
	if err := s.banks.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Bank account deleted")
	return nil
}

// ListBankAccounts returns the owner's bank accounts, excluding the cash wallet.
func (s *Service) ListBankAccounts(ctx context.Context, ownerID string) ([]*models.BankAccount, error) {
	all, err := s.banks.List(ctx, ownerID, interfaces.QueryOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]*models.BankAccount, 0, len(all))
	for _, a := range all {
		if a.Type != models.AccountCash {
			out = append(out, a)
		}
	}
	return out, nil
}

// CreateCreditCard adds a card. Available credit starts at the limit unless
// currentBalance is given, and is clamped to [0, limit].
func (s *Service) CreateCreditCard(ctx context.Context, ownerID, name string, limit decimal.Decimal, currentBalance *decimal.Decimal) (*models.CreditCard, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !limit.IsPositive() {
		return nil, common.Invalid("limit", "must be greater than zero")
	}

	available := limit
	if currentBalance != nil {
		available = models.ClampCardBalance(*currentBalance, limit)
	}
	card := &models.CreditCard{
		Meta:           models.Meta{OwnerID: ownerID},
		Name:           name,
		Limit:          limit,
		CurrentBalance: available,
	}
	if _, err := s.cards.Insert(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", card.ID).Str("limit", limit.String()).Msg("Credit card created")
	return card, nil
}

// GetCreditCard returns one of the owner's cards.
func (s *Service) GetCreditCard(ctx context.Context, ownerID, id string) (*models.CreditCard, error) {
	card, err := s.cards.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownership.Assert(card, ownerID); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCreditCard changes name and limit, and optionally the available
// credit. The result is always clamped to the (new) limit.
func (s *Service) UpdateCreditCard(ctx context.Context, ownerID, id, name string, limit decimal.Decimal, currentBalance *decimal.Decimal) (*models.CreditCard, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !limit.IsPositive() {
		return nil, common.Invalid("limit", "must be greater than zero")
	}
	card, err := s.GetCreditCard(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	card.Name = name
	card.Limit = limit
	if currentBalance != nil {
		card.CurrentBalance = *currentBalance
	}
	card.CurrentBalance = models.ClampCardBalance(card.CurrentBalance, limit)
	if err := s.cards.Update(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Credit card updated")
	return card, nil
}

// DeleteCreditCard removes a card.
func (s *Service) DeleteCreditCard(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetCreditCard(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Credit card deleted")
	return nil
}

// ListCreditCards returns the owner's cards.
func (s *Service) ListCreditCards(ctx context.Context, ownerID string) ([]*models.CreditCard, error) {
	return s.cards.List(ctx, ownerID, interfaces.QueryOptions{})
}

// CashWallet returns the owner's cash wallet, creating it with a zero
// balance on first access.
func (s *Service) CashWallet(ctx context.Context, ownerID string) (*models.BankAccount, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	id := cashWalletID(ownerID)

	wallet, err := s.banks.Get(ctx, id)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	wallet = &models.BankAccount{
		Meta:    models.Meta{ID: id, OwnerID: ownerID},
		Name:    models.CashWalletName,
		Type:    models.AccountCash,
		Balance: decimal.Zero,
	}
	if _, err := s.banks.Insert(ctx, wallet); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return s.banks.Get(ctx, id)
		}
		return nil, err
	}

	s.logger.Info().Str("owner_id", ownerID).Msg("Cash wallet provisioned")
	return wallet, nil
}

// DepositCash adds amount to the cash wallet.
func (s *Service) DepositCash(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.BankAccount, error) {
	return s.moveCash(ctx, ownerID, amount, false)
}

// WithdrawCash removes amount from the cash wallet. The wallet may never go
// below zero through this path, whatever the global overdraft policy.
func (s *Service) WithdrawCash(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.BankAccount, error) {
	return s.moveCash(ctx, ownerID, amount, true)
}

func (s *Service) moveCash(ctx context.Context, ownerID string, amount decimal.Decimal, withdraw bool) (*models.BankAccount, error) {
	if !amount.IsPositive() {
		return nil, common.Invalid("amount", "must be greater than zero")
	}
	wallet, err := s.CashWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	delta := amount
	if withdraw {
		delta = amount.Neg()
	}
	if _, err := s.applyDelta(ctx, ownerID, wallet.Ref(), delta, withdraw || s.config.EnforceNonNegative); err != nil {
		return nil, err
	}
	return s.banks.Get(ctx, wallet.ID)
}
