package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"tickio/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ErrNotFound is returned when a ticket type does not exist.
var ErrNotFound = errors.New("ticket type not found")

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (d *DB) GetTicketTypesForEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var tts []models.TicketType
	err := d.Bun.NewSelect().
		Model(&tts).
		Where("event_id = ?", eventID).
		Where("active = ?", true).
		Order("price").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tts, nil
}

// CommitSold atomically raises the sold counter by quantity, guarded so the
// capacity can never be exceeded. Returns false when the guard rejected the
// update (sold + quantity would pass capacity, or the row is missing or
// inactive).
func (d *DB) CommitSold(ctx context.Context, ticketTypeID string, quantity int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("sold = sold + ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("active = ?", true).
		Where("sold + ? <= capacity", quantity).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ReleaseSold lowers the sold counter by quantity. It is the compensation
// for a CommitSold that belongs to a checkout that later failed; the guard
// keeps the counter from going negative.
func (d *DB) ReleaseSold(ctx context.Context, ticketTypeID string, quantity int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("sold = sold - ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("sold >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.New("release would make sold negative")
	}
	return nil
}
