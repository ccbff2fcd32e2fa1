package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"tickio/internal/holds/db"
	"tickio/internal/models"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Hold)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create holds table: %v", err)
	}

	// The upsert relies on this unique index, same as the real schema.
	_, err = bunDB.ExecContext(context.Background(),
		"CREATE UNIQUE INDEX holds_one_per_owner ON holds (ticket_type_id, owner)")
	if err != nil {
		t.Fatalf("Failed to create unique index: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func TestUpsertHold_ReplacesExisting(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now().UTC()
	err := holdDB.UpsertHold(context.Background(), models.Hold{
		TicketTypeID: "tt-1",
		Owner:        "user:42",
		Quantity:     2,
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	// Second upsert for the same pair replaces quantity and expiry instead
	// of adding a row.
	later := now.Add(5 * time.Minute)
	err = holdDB.UpsertHold(context.Background(), models.Hold{
		TicketTypeID: "tt-1",
		Owner:        "user:42",
		Quantity:     5,
		CreatedAt:    later,
		ExpiresAt:    later.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	count, err := bunDB.NewSelect().Model((*models.Hold)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hold, err := holdDB.GetHold(context.Background(), "tt-1", "user:42")
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, 5, hold.Quantity)
}

func TestGetHold_Missing(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	hold, err := holdDB.GetHold(context.Background(), "tt-1", "user:42")
	assert.NoError(t, err)
	assert.Nil(t, hold)
}

func TestDeleteHold(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now().UTC()
	require.NoError(t, holdDB.UpsertHold(context.Background(), models.Hold{
		TicketTypeID: "tt-1", Owner: "user:42", Quantity: 2,
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	require.NoError(t, holdDB.DeleteHold(context.Background(), "tt-1", "user:42"))

	hold, err := holdDB.GetHold(context.Background(), "tt-1", "user:42")
	require.NoError(t, err)
	assert.Nil(t, hold)

	// Deleting again is a no-op.
	assert.NoError(t, holdDB.DeleteHold(context.Background(), "tt-1", "user:42"))
}

func TestSumActiveHolds(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now().UTC()
	live := now.Add(10 * time.Minute)
	dead := now.Add(-1 * time.Minute)

	seed := []models.Hold{
		{TicketTypeID: "tt-1", Owner: "user:1", Quantity: 2, CreatedAt: now, ExpiresAt: live},
		{TicketTypeID: "tt-1", Owner: "session:abc", Quantity: 3, CreatedAt: now, ExpiresAt: live},
		{TicketTypeID: "tt-1", Owner: "user:expired", Quantity: 7, CreatedAt: now, ExpiresAt: dead},
		{TicketTypeID: "tt-1", Owner: "user:me", Quantity: 4, CreatedAt: now, ExpiresAt: live},
		{TicketTypeID: "tt-2", Owner: "user:1", Quantity: 9, CreatedAt: now, ExpiresAt: live},
	}
	for _, h := range seed {
		require.NoError(t, holdDB.UpsertHold(context.Background(), h))
	}

	// Expired rows and the excluded owner contribute nothing; tt-2 is a
	// different ticket type.
	total, err := holdDB.SumActiveHolds(context.Background(), "tt-1", "user:me", now)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	// No live rows at all.
	total, err = holdDB.SumActiveHolds(context.Background(), "tt-3", "user:me", now)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestGetHoldsForOwnerAndDeleteForOwner(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now().UTC()
	live := now.Add(10 * time.Minute)

	seed := []models.Hold{
		{TicketTypeID: "tt-1", Owner: "user:42", Quantity: 2, CreatedAt: now, ExpiresAt: live},
		{TicketTypeID: "tt-2", Owner: "user:42", Quantity: 1, CreatedAt: now, ExpiresAt: live},
		{TicketTypeID: "tt-3", Owner: "user:42", Quantity: 4, CreatedAt: now, ExpiresAt: now.Add(-time.Minute)},
		{TicketTypeID: "tt-1", Owner: "user:other", Quantity: 8, CreatedAt: now, ExpiresAt: live},
	}
	for _, h := range seed {
		require.NoError(t, holdDB.UpsertHold(context.Background(), h))
	}

	hs, err := holdDB.GetHoldsForOwner(context.Background(), "user:42", now)
	require.NoError(t, err)
	require.Len(t, hs, 2, "expired hold must not appear in the cart")
	assert.Equal(t, "tt-1", hs[0].TicketTypeID)
	assert.Equal(t, "tt-2", hs[1].TicketTypeID)

	require.NoError(t, holdDB.DeleteHoldsForOwner(context.Background(), "user:42"))

	hs, err = holdDB.GetHoldsForOwner(context.Background(), "user:42", now)
	require.NoError(t, err)
	assert.Empty(t, hs)

	// Other owners are untouched.
	other, err := holdDB.GetHold(context.Background(), "tt-1", "user:other")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestDeleteExpired(t *testing.T) {
	holdDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	now := time.Now().UTC()
	seed := []models.Hold{
		{TicketTypeID: "tt-1", Owner: "user:1", Quantity: 1, CreatedAt: now, ExpiresAt: now.Add(-2 * time.Minute)},
		{TicketTypeID: "tt-1", Owner: "user:2", Quantity: 1, CreatedAt: now, ExpiresAt: now.Add(-1 * time.Second)},
		{TicketTypeID: "tt-1", Owner: "user:3", Quantity: 1, CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)},
	}
	for _, h := range seed {
		require.NoError(t, holdDB.UpsertHold(context.Background(), h))
	}

	removed, err := holdDB.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := bunDB.NewSelect().Model((*models.Hold)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
