package registry

import (
	"context"

	"github.com/bobmcallan/tally/internal/models"
)

func categoryName(c *models.Category) string              { return c.Name }
func invCategoryName(c *models.InvestmentCategory) string { return c.Name }

// CreateCategory adds an expense category. Names are unique per owner.
func (s *Service) CreateCategory(ctx context.Context, ownerID, name string) (*models.Category, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.categories, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("category", existing, categoryName, name, ""); err != nil {
		return nil, err
	}

	c := &models.Category{Meta: models.Meta{OwnerID: ownerID}, Name: name}
	if _, err := s.categories.Insert(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", c.ID).Str("name", name).Msg("Category created")
	return c, nil
}

// ListCategories returns the owner's expense categories by name.
func (s *Service) ListCategories(ctx context.Context, ownerID string) ([]*models.Category, error) {
	out, err := list(ctx, s.categories, ownerID)
	if err != nil {
		return nil, err
	}
	sortByName(out, categoryName)
	return out, nil
}

// RenameCategory renames an expense category. Existing expenses keep the
// name they were recorded with.
func (s *Service) RenameCategory(ctx context.Context, ownerID, id, name string) (*models.Category, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.categories, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("category", existing, categoryName, name, id); err != nil {
		return nil, err
	}
	c, err := modify(ctx, s.categories, ownerID, id, func(c *models.Category) error {
		c.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Str("name", name).Msg("Category renamed")
	return c, nil
}

// DeleteCategory removes an expense category. Expenses that use it are
// left alone and display the fallback label.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, s.categories, ownerID, id); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", id).Msg("Category deleted")
	return nil
}

// CreateInvestmentCategory adds an investment category.
func (s *Service) CreateInvestmentCategory(ctx context.Context, ownerID, name string) (*models.InvestmentCategory, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.invCategories, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("investment category", existing, invCategoryName, name, ""); err != nil {
		return nil, err
	}

	c := &models.InvestmentCategory{Meta: models.Meta{OwnerID: ownerID}, Name: name}
	if _, err := s.invCategories.Insert(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("id", c.ID).Str("name", name).Msg("Investment category created")
	return c, nil
}

func (s *Service) ListInvestmentCategories(ctx context.Context, ownerID string) ([]*models.InvestmentCategory, error) {
	out, err := list(ctx, s.invCategories, ownerID)
	if err != nil {
		return nil, err
	}
	sortByName(out, invCategoryName)
	return out, nil
}

func (s *Service) RenameInvestmentCategory(ctx context.Context, ownerID, id, name string) (*models.InvestmentCategory, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	existing, err := list(ctx, s.invCategories, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkUnique("investment category", existing, invCategoryName, name, id); err != nil {
		return nil, err
	}
	return modify(ctx, s.invCategories, ownerID, id, func(c *models.InvestmentCategory) error {
		c.Name = name
		return nil
	})
}

func (s *Service) DeleteInvestmentCategory(ctx context.Context, ownerID, id string) error {
	if _, err := load(ctx, s.invCategories, ownerID, id); err != nil {
		return err
	}
	return s.invCategories.Delete(ctx, id)
}
