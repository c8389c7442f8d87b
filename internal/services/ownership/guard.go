// Package ownership rejects mutations by anyone other than an entity's owner.
package ownership

import (
	"fmt"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// Assert fails with common.ErrForbidden unless actingUserID owns entity.
// An anonymous caller never owns anything.
func Assert(entity models.Owned, actingUserID string) error {
	if actingUserID == "" {
		return fmt.Errorf("no acting user: %w", common.ErrForbidden)
	}
	if entity == nil || entity.Owner() != actingUserID {
		return fmt.Errorf("%s: %w", describe(entity), common.ErrForbidden)
	}
	return nil
}

// RequireUser fails with common.ErrForbidden for an anonymous caller.
func RequireUser(actingUserID string) error {
	if actingUserID == "" {
		return fmt.Errorf("no acting user: %w", common.ErrForbidden)
	}
	return nil
}

func describe(entity models.Owned) string {
	if e, ok := entity.(models.Entity); ok {
		return fmt.Sprintf("%s %q", e.Collection(), e.EntityMeta().ID)
	}
	return "entity"
}
