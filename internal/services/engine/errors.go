package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// DanglingReferenceError reports holders that no longer exist when a
// transaction's effects were reversed. Effects on the remaining holders were
// reversed normally.
type DanglingReferenceError struct {
	Holders []models.HolderRef
}

func (e *DanglingReferenceError) Error() string {
	refs := make([]string, 0, len(e.Holders))
	for _, h := range e.Holders {
		refs = append(refs, h.String())
	}
	return fmt.Sprintf("dangling reference: %s no longer exist", strings.Join(refs, ", "))
}

func (e *DanglingReferenceError) Is(target error) bool { return target == common.ErrDanglingReference }

// Warnings renders the error for API responses.
func (e *DanglingReferenceError) Warnings() []models.Warning {
	out := make([]models.Warning, 0, len(e.Holders))
	for _, h := range e.Holders {
		out = append(out, models.Warning{
			Code:    "dangling_reference",
			Message: fmt.Sprintf("%s was deleted; its balance was not restored", h),
		})
	}
	return out
}

// Dangling collects missing holders found while reversing.
type Dangling struct {
	mu   sync.Mutex
	refs []models.HolderRef
}

func (d *Dangling) add(ref models.HolderRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.refs {
		if r == ref {
			return
		}
	}
	d.refs = append(d.refs, ref)
}

// Err returns a *DanglingReferenceError, or nil when nothing was missing.
func (d *Dangling) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.refs) == 0 {
		return nil
	}
	return &DanglingReferenceError{Holders: append([]models.HolderRef(nil), d.refs...)}
}
