package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tickio/internal/models"
)

// Gateway is the external payment capability. The core never interprets
// gateway-specific errors, only success/failure plus a reference string.
type Gateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, purchaser models.OwnerRef, metadata map[string]string) (bool, string, error)
}

// DummyGateway approves every charge. It is the development default and the
// original system's fallback when no gateway is configured.
type DummyGateway struct{}

func (DummyGateway) Charge(_ context.Context, _ decimal.Decimal, _ models.OwnerRef, _ map[string]string) (bool, string, error) {
	return true, "dummy-" + uuid.NewString(), nil
}
