package availability_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickio/internal/availability"
	"tickio/internal/inventory/db"
	"tickio/internal/models"
)

type stubLedger struct {
	types map[string]*models.TicketType
}

func (s *stubLedger) TicketType(_ context.Context, id string) (*models.TicketType, error) {
	tt, ok := s.types[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return tt, nil
}

func (s *stubLedger) TicketTypesForEvent(_ context.Context, eventID string) ([]models.TicketType, error) {
	var out []models.TicketType
	for _, tt := range s.types {
		if tt.EventID == eventID && tt.Active {
			out = append(out, *tt)
		}
	}
	return out, nil
}

type stubHolds struct {
	held map[string]int
}

func (s *stubHolds) ActiveHoldsFor(_ context.Context, ticketTypeID string, _ models.OwnerRef) (int, error) {
	return s.held[ticketTypeID], nil
}

func TestEffective(t *testing.T) {
	assert.Equal(t, 5, availability.Effective(10, 3, 2))
	assert.Equal(t, 0, availability.Effective(10, 10, 0))
	assert.Equal(t, 0, availability.Effective(10, 8, 5), "floored at zero when holds exceed the remainder")
	assert.Equal(t, 10, availability.Effective(10, 0, 0))
}

func newCalculator(types map[string]*models.TicketType, held map[string]int) *availability.Calculator {
	return availability.NewCalculator(&stubLedger{types: types}, &stubHolds{held: held})
}

func TestEffectiveAvailable(t *testing.T) {
	calc := newCalculator(
		map[string]*models.TicketType{
			"tt-1": {ID: "tt-1", EventID: "event-1", Price: decimal.NewFromInt(45), Capacity: 100, Sold: 40, Active: true},
		},
		map[string]int{"tt-1": 25},
	)

	n, err := calc.EffectiveAvailable(context.Background(), "tt-1", models.AuthenticatedUser("me"))
	require.NoError(t, err)
	assert.Equal(t, 35, n)
}

func TestEffectiveAvailable_InactiveIsZero(t *testing.T) {
	calc := newCalculator(
		map[string]*models.TicketType{
			"tt-off": {ID: "tt-off", EventID: "event-1", Capacity: 100, Sold: 0, Active: false},
		},
		map[string]int{},
	)

	n, err := calc.EffectiveAvailable(context.Background(), "tt-off", models.OwnerRef{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEffectiveAvailable_UnknownTicketType(t *testing.T) {
	calc := newCalculator(map[string]*models.TicketType{}, map[string]int{})

	_, err := calc.EffectiveAvailable(context.Background(), "missing", models.OwnerRef{})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestEffectiveForEvent(t *testing.T) {
	calc := newCalculator(
		map[string]*models.TicketType{
			"tt-ga":  {ID: "tt-ga", EventID: "event-1", Capacity: 100, Sold: 60, Active: true},
			"tt-vip": {ID: "tt-vip", EventID: "event-1", Capacity: 20, Sold: 5, Active: true},
			"tt-x":   {ID: "tt-x", EventID: "event-2", Capacity: 50, Sold: 0, Active: true},
		},
		map[string]int{"tt-ga": 10, "tt-vip": 20},
	)

	// 30 left on GA after holds, VIP fully suppressed, other event ignored.
	n, err := calc.EffectiveForEvent(context.Background(), "event-1", models.AuthenticatedUser("me"))
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}
