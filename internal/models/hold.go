package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Hold is a soft, expiring claim on a quantity of a ticket type. A given
// (ticket type, owner) pair has at most one live hold; upserting replaces it.
// Expired holds stop counting at read time even before the reaper deletes
// the row.
type Hold struct {
	bun.BaseModel `bun:"table:holds"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketTypeID string    `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	Owner        string    `bun:"owner,notnull" json:"owner"`
	Quantity     int       `bun:"quantity,notnull" json:"quantity"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt    time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// ActiveAt reports whether the hold still counts against availability.
func (h *Hold) ActiveAt(now time.Time) bool {
	return h.ExpiresAt.After(now)
}
