package models

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TicketType is one purchasable tier of an event. Capacity and Sold are the
// authoritative inventory counters; Sold is mutated only by the ledger's
// TryCommit/Rollback pair.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID       string          `bun:"id,pk" json:"id"`
	EventID  string          `bun:"event_id,notnull" json:"event_id"`
	Name     string          `bun:"name,notnull" json:"name"`
	Price    decimal.Decimal `bun:"price,notnull" json:"price"`
	Capacity int             `bun:"capacity,notnull" json:"capacity"`
	Sold     int             `bun:"sold,notnull,default:0" json:"sold"`
	Active   bool            `bun:"active,notnull,default:true" json:"active"`
}

// Available is the raw remaining capacity, ignoring holds.
func (t *TicketType) Available() int {
	if t.Capacity < t.Sold {
		return 0
	}
	return t.Capacity - t.Sold
}
