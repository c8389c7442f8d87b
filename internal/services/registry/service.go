// Package registry manages the user-scoped lookup tables: expense and
// investment categories, custom payment modes and investment goals.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/ownership"
	"github.com/bobmcallan/tally/internal/storage"
)

// FallbackLabel is shown for a category or payment mode that no longer exists.
const FallbackLabel = "Wallet"

// conflictRetries bounds re-reads when a concurrent balance write bumps the
// version of a payment mode being renamed.
const conflictRetries = 3

// Compile-time interface check
var _ interfaces.RegistryService = (*Service)(nil)

// Service implements RegistryService
type Service struct {
	categories    *storage.Collection[models.Category, *models.Category]
	invCategories *storage.Collection[models.InvestmentCategory, *models.InvestmentCategory]
	modes         *storage.Collection[models.PaymentMode, *models.PaymentMode]
	goals         *storage.Collection[models.InvestmentGoal, *models.InvestmentGoal]
	investments   *storage.Collection[models.Investment, *models.Investment]
	banks         *storage.Collection[models.BankAccount, *models.BankAccount]
	cards         *storage.Collection[models.CreditCard, *models.CreditCard]
	logger        *common.Logger
}

// NewService creates a registry over store.
func NewService(store interfaces.DocumentStore, logger *common.Logger) *Service {
	return &Service{
		categories:    storage.NewCollection[models.Category](store),
		invCategories: storage.NewCollection[models.InvestmentCategory](store),
		modes:         storage.NewCollection[models.PaymentMode](store),
		goals:         storage.NewCollection[models.InvestmentGoal](store),
		investments:   storage.NewCollection[models.Investment](store),
		banks:         storage.NewCollection[models.BankAccount](store),
		cards:         storage.NewCollection[models.CreditCard](store),
		logger:        logger,
	}
}

func load[T any, PT storage.Record[T]](ctx context.Context, coll *storage.Collection[T, PT], ownerID, id string) (PT, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	rec, err := coll.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ownership.Assert(rec, ownerID); err != nil {
		return nil, err
	}
	return rec, nil
}

func list[T any, PT storage.Record[T]](ctx context.Context, coll *storage.Collection[T, PT], ownerID string) ([]PT, error) {
	if err := ownership.RequireUser(ownerID); err != nil {
		return nil, err
	}
	return coll.List(ctx, ownerID, interfaces.QueryOptions{})
}

// modify loads, mutates and writes a record, re-reading on a version conflict.
func modify[T any, PT storage.Record[T]](ctx context.Context, coll *storage.Collection[T, PT], ownerID, id string, mutate func(PT) error) (PT, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		rec, err := load(ctx, coll, ownerID, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(rec); err != nil {
			return nil, err
		}
		lastErr = coll.Update(ctx, rec)
		if lastErr == nil {
			return rec, nil
		}
		if !errors.Is(lastErr, common.ErrConflict) {
			return nil, lastErr
		}
	}
	return nil, lastErr
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

// checkUnique fails with ErrAlreadyExists when another entity (not skipID)
// already uses name, ignoring case.
func checkUnique[PT models.Entity](kind string, existing []PT, nameOf func(PT) string, name, skipID string) error {
	for _, e := range existing {
		if e.EntityMeta().ID != skipID && strings.EqualFold(nameOf(e), name) {
			return common.AlreadyExists(kind, name)
		}
	}
	return nil
}

func sortByName[PT models.Entity](items []PT, nameOf func(PT) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(nameOf(items[i])) < strings.ToLower(nameOf(items[j]))
	})
}
