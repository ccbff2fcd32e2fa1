package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"
)

// Order is a finalized purchase. TotalAmount is derived from its items at
// creation and never edited afterwards; only Status transitions (paid to
// refunded) are allowed.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID     string          `bun:"order_id,pk" json:"order_id"`
	Purchaser   string          `bun:"purchaser,notnull" json:"purchaser"`
	Status      string          `bun:"status,notnull" json:"status"`
	TotalAmount decimal.Decimal `bun:"total_amount,notnull" json:"total_amount"`
	PaymentRef  string          `bun:"payment_ref" json:"payment_ref"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at"`
}

// OrderItem is one priced line within an order. UnitPrice is snapshotted at
// purchase time; later ticket type price changes never alter it.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID           int64           `bun:"id,pk,autoincrement" json:"id"`
	OrderID      string          `bun:"order_id,notnull" json:"order_id"`
	TicketTypeID string          `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	Name         string          `bun:"name,notnull" json:"name"`
	UnitPrice    decimal.Decimal `bun:"unit_price,notnull" json:"unit_price"`
	Quantity     int             `bun:"quantity,notnull" json:"quantity"`
	LineTotal    decimal.Decimal `bun:"line_total,notnull" json:"line_total"`
}

// OrderWithItems bundles an order with its lines and issued tickets for
// read paths.
type OrderWithItems struct {
	Order   `json:"order"`
	Items   []OrderItem `json:"items"`
	Tickets []Ticket    `json:"tickets"`
}

// CartLine is one (ticket type, quantity) pair supplied by the cart adapter.
type CartLine struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}
