package models

import (
	"fmt"
	"time"
)

// Meta is embedded in every persisted entity.
// Version is bumped by the store on every successful update and is the
// compare-and-swap token for optimistic concurrency.
type Meta struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityMeta exposes the embedded Meta to generic helpers.
func (m *Meta) EntityMeta() *Meta { return m }

// Owner returns the owning user id.
func (m *Meta) Owner() string { return m.OwnerID }

// Owned is anything scoped to exactly one user.
type Owned interface {
	Owner() string
}

// Entity is a document-backed record.
type Entity interface {
	Owned
	EntityMeta() *Meta
	Collection() string
	// SortDate is the business date used for ordering ("" when undated).
	SortDate() string
}

// DateLayout is the ISO calendar date format used for business dates.
const DateLayout = "2006-01-02"

// ParseDate validates an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", s)
	}
	return t, nil
}

// Today returns the current date in DateLayout.
func Today() string {
	return time.Now().Format(DateLayout)
}
