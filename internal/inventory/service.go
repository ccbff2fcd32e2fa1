package inventory

import (
	"context"
	"errors"
	"fmt"

	"tickio/internal/models"
)

// DBLayer is the persistence surface the ledger needs.
type DBLayer interface {
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	GetTicketTypesForEvent(ctx context.Context, eventID string) ([]models.TicketType, error)
	CommitSold(ctx context.Context, ticketTypeID string, quantity int) (bool, error)
	ReleaseSold(ctx context.Context, ticketTypeID string, quantity int) error
}

var (
	// ErrInsufficientCapacity means committing the requested quantity would
	// push sold past capacity.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrTicketTypeUnavailable means the ticket type does not exist or is
	// no longer on sale.
	ErrTicketTypeUnavailable = errors.New("ticket type not found or inactive")

	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Ledger owns the authoritative capacity and sold counters. All mutation of
// the sold counter funnels through TryCommit and Rollback; no other
// component writes it.
type Ledger struct {
	DB DBLayer
}

func NewLedger(db DBLayer) *Ledger {
	return &Ledger{DB: db}
}

func (l *Ledger) TicketType(ctx context.Context, id string) (*models.TicketType, error) {
	return l.DB.GetTicketType(ctx, id)
}

func (l *Ledger) TicketTypesForEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	return l.DB.GetTicketTypesForEvent(ctx, eventID)
}

func (l *Ledger) CapacityOf(ctx context.Context, id string) (int, error) {
	tt, err := l.DB.GetTicketType(ctx, id)
	if err != nil {
		return 0, err
	}
	return tt.Capacity, nil
}

func (l *Ledger) CommittedSoldOf(ctx context.Context, id string) (int, error) {
	tt, err := l.DB.GetTicketType(ctx, id)
	if err != nil {
		return 0, err
	}
	return tt.Sold, nil
}

// TryCommit atomically raises the sold counter, failing with
// ErrInsufficientCapacity when the quantity does not fit. The guard is a
// single conditional update, so two concurrent commits for the last unit
// can never both succeed.
func (l *Ledger) TryCommit(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	applied, err := l.DB.CommitSold(ctx, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("commit sold for %s: %w", ticketTypeID, err)
	}
	if applied {
		return nil
	}

	// The guard rejected the update; find out why.
	tt, err := l.DB.GetTicketType(ctx, ticketTypeID)
	if err != nil || !tt.Active {
		return fmt.Errorf("ticket type %s: %w", ticketTypeID, ErrTicketTypeUnavailable)
	}
	return fmt.Errorf("ticket type %s: requested %d, %d left: %w",
		ticketTypeID, quantity, tt.Available(), ErrInsufficientCapacity)
}

// Rollback undoes a TryCommit from a checkout that failed after committing.
// Only the checkout orchestrator calls it, and only with quantities it
// committed itself in the same request.
func (l *Ledger) Rollback(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := l.DB.ReleaseSold(ctx, ticketTypeID, quantity); err != nil {
		return fmt.Errorf("rollback sold for %s: %w", ticketTypeID, err)
	}
	return nil
}
