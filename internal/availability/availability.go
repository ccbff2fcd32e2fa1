package availability

import (
	"context"

	"tickio/internal/models"
)

// Effective is the number a shopper may still reserve: capacity minus
// committed sales minus other owners' live holds, floored at zero.
func Effective(capacity, sold, heldByOthers int) int {
	n := capacity - sold - heldByOthers
	if n < 0 {
		return 0
	}
	return n
}

// LedgerReader is the slice of the inventory ledger the calculator reads.
type LedgerReader interface {
	TicketType(ctx context.Context, id string) (*models.TicketType, error)
	TicketTypesForEvent(ctx context.Context, eventID string) ([]models.TicketType, error)
}

// HoldsReader is the slice of the hold store the calculator reads.
type HoldsReader interface {
	ActiveHoldsFor(ctx context.Context, ticketTypeID string, excluding models.OwnerRef) (int, error)
}

// Calculator combines the ledger and the hold store into the advisory
// number shown to shoppers. The requesting owner's own hold is excluded so
// they can adjust their in-progress cart without being blocked by it. The
// value can go stale between display and purchase; checkout re-validates
// authoritatively.
type Calculator struct {
	Ledger LedgerReader
	Holds  HoldsReader
}

func NewCalculator(ledger LedgerReader, holds HoldsReader) *Calculator {
	return &Calculator{Ledger: ledger, Holds: holds}
}

func (c *Calculator) EffectiveAvailable(ctx context.Context, ticketTypeID string, owner models.OwnerRef) (int, error) {
	tt, err := c.Ledger.TicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	if !tt.Active {
		return 0, nil
	}
	held, err := c.Holds.ActiveHoldsFor(ctx, ticketTypeID, owner)
	if err != nil {
		return 0, err
	}
	return Effective(tt.Capacity, tt.Sold, held), nil
}

// EffectiveForEvent sums effective availability over every active ticket
// type of an event. Advisory roll-up for listings; per-type numbers remain
// the authoritative unit.
func (c *Calculator) EffectiveForEvent(ctx context.Context, eventID string, owner models.OwnerRef) (int, error) {
	tts, err := c.Ledger.TicketTypesForEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, tt := range tts {
		held, err := c.Holds.ActiveHoldsFor(ctx, tt.ID, owner)
		if err != nil {
			return 0, err
		}
		total += Effective(tt.Capacity, tt.Sold, held)
	}
	return total, nil
}
