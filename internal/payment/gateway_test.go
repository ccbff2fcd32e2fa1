package payment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickio/internal/models"
	"tickio/internal/payment"
)

func TestDummyGateway_AlwaysApproves(t *testing.T) {
	gateway := payment.DummyGateway{}

	ok, ref, err := gateway.Charge(context.Background(), decimal.NewFromInt(90),
		models.AuthenticatedUser("42"), map[string]string{"order_id": "o-1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(ref, "dummy-"))

	_, ref2, err := gateway.Charge(context.Background(), decimal.Zero,
		models.AnonymousSession("s"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, ref, ref2, "references must be unique per charge")
}
