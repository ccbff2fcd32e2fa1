package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one individually redeemable unit, created in the same atomic
// unit as its order. Exactly one exists per unit of purchased quantity.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID       string    `bun:"ticket_id,pk" json:"ticket_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	OrderItemID    int64     `bun:"order_item_id,notnull" json:"order_item_id"`
	TicketTypeID   string    `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	EventID        string    `bun:"event_id,notnull" json:"event_id"`
	Owner          string    `bun:"owner,notnull" json:"owner"`
	RedemptionCode string    `bun:"redemption_code,notnull,unique" json:"redemption_code"`
	Used           bool      `bun:"used,notnull,default:false" json:"used"`
	IssuedAt       time.Time `bun:"issued_at,notnull" json:"issued_at"`
}
