package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"tickio/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// UpsertHold replaces any existing hold for the (ticket type, owner) pair.
// The unique index on (ticket_type_id, owner) makes the replace-if-exists
// atomic, so concurrent upserts cannot leave duplicate rows.
func (d *DB) UpsertHold(ctx context.Context, hold models.Hold) error {
	_, err := d.Bun.NewInsert().
		Model(&hold).
		On("CONFLICT (ticket_type_id, owner) DO UPDATE").
		Set("quantity = EXCLUDED.quantity").
		Set("created_at = EXCLUDED.created_at").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return err
}

func (d *DB) GetHold(ctx context.Context, ticketTypeID, owner string) (*models.Hold, error) {
	var hold models.Hold
	err := d.Bun.NewSelect().
		Model(&hold).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("owner = ?", owner).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (d *DB) DeleteHold(ctx context.Context, ticketTypeID, owner string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Hold)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Where("owner = ?", owner).
		Exec(ctx)
	return err
}

func (d *DB) DeleteHoldsForOwner(ctx context.Context, owner string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Hold)(nil)).
		Where("owner = ?", owner).
		Exec(ctx)
	return err
}

// SumActiveHolds totals the non-expired quantities held by every owner
// except the excluded one. Expired rows are filtered out here rather than
// deleted; physical deletion is the reaper's job.
func (d *DB) SumActiveHolds(ctx context.Context, ticketTypeID, excludingOwner string, now time.Time) (int, error) {
	var total sql.NullInt64
	err := d.Bun.NewSelect().
		Model((*models.Hold)(nil)).
		ColumnExpr("SUM(quantity)").
		Where("ticket_type_id = ?", ticketTypeID).
		Where("owner != ?", excludingOwner).
		Where("expires_at > ?", now).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

func (d *DB) GetHoldsForOwner(ctx context.Context, owner string, now time.Time) ([]models.Hold, error) {
	var hs []models.Hold
	err := d.Bun.NewSelect().
		Model(&hs).
		Where("owner = ?", owner).
		Where("expires_at > ?", now).
		Order("ticket_type_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return hs, nil
}

// DeleteExpired removes every hold whose expiry has passed and reports how
// many rows went away. Safe to run concurrently with itself and with
// upserts; a racing upsert simply recreates the row with a fresh expiry.
func (d *DB) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Hold)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
