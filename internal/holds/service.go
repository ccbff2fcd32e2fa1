package holds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickio/internal/models"
)

// DefaultTTL is how long a hold suppresses availability before expiring.
const DefaultTTL = 10 * time.Minute

var ErrInvalidQuantity = errors.New("hold quantity cannot be negative")

// DBLayer is the persistence surface the hold store needs.
type DBLayer interface {
	UpsertHold(ctx context.Context, hold models.Hold) error
	GetHold(ctx context.Context, ticketTypeID, owner string) (*models.Hold, error)
	DeleteHold(ctx context.Context, ticketTypeID, owner string) error
	DeleteHoldsForOwner(ctx context.Context, owner string) error
	SumActiveHolds(ctx context.Context, ticketTypeID, excludingOwner string, now time.Time) (int, error)
	GetHoldsForOwner(ctx context.Context, owner string, now time.Time) ([]models.Hold, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Store manages soft reservations. Holds only suppress the availability
// shown to other owners; they are never load-bearing for committed
// inventory.
type Store struct {
	DB  DBLayer
	TTL time.Duration

	// Now is swappable in tests.
	Now func() time.Time
}

func NewStore(db DBLayer, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{DB: db, TTL: ttl, Now: time.Now}
}

// UpsertHold creates or replaces the owner's hold on a ticket type with a
// fresh expiry. Quantity zero deletes the hold; a negative quantity is
// rejected before any state changes.
func (s *Store) UpsertHold(ctx context.Context, ticketTypeID string, owner models.OwnerRef, quantity int) (*models.Hold, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 {
		return nil, s.ReleaseHold(ctx, ticketTypeID, owner)
	}

	now := s.Now()
	hold := models.Hold{
		TicketTypeID: ticketTypeID,
		Owner:        owner.Key(),
		Quantity:     quantity,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.TTL),
	}
	if err := s.DB.UpsertHold(ctx, hold); err != nil {
		return nil, fmt.Errorf("upsert hold for %s: %w", ticketTypeID, err)
	}
	return &hold, nil
}

// ReleaseHold deletes the owner's hold if present. Idempotent: releasing an
// absent hold is a no-op.
func (s *Store) ReleaseHold(ctx context.Context, ticketTypeID string, owner models.OwnerRef) error {
	if err := s.DB.DeleteHold(ctx, ticketTypeID, owner.Key()); err != nil {
		return fmt.Errorf("release hold for %s: %w", ticketTypeID, err)
	}
	return nil
}

// ReleaseAllForOwner clears every hold the owner has, across all ticket
// types. Used after checkout and on cart abandonment.
func (s *Store) ReleaseAllForOwner(ctx context.Context, owner models.OwnerRef) error {
	if err := s.DB.DeleteHoldsForOwner(ctx, owner.Key()); err != nil {
		return fmt.Errorf("release holds for %s: %w", owner, err)
	}
	return nil
}

// ActiveHoldsFor sums the live hold quantities of every owner other than
// the excluded one. Rows whose expiry has passed contribute nothing,
// whether or not the reaper has removed them yet.
func (s *Store) ActiveHoldsFor(ctx context.Context, ticketTypeID string, excluding models.OwnerRef) (int, error) {
	return s.DB.SumActiveHolds(ctx, ticketTypeID, excluding.Key(), s.Now())
}

// HoldsForOwner lists the owner's live holds, the contents of their cart.
func (s *Store) HoldsForOwner(ctx context.Context, owner models.OwnerRef) ([]models.Hold, error) {
	return s.DB.GetHoldsForOwner(ctx, owner.Key(), s.Now())
}
