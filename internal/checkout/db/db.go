package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"tickio/internal/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrTicketNotFound = errors.New("ticket not found")
)

type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// CreateOrderTree persists an order, its items and its tickets in one
// transaction. ticketsByItem is indexed like items; each ticket's
// OrderItemID is filled in once the item row has an id. Nothing is written
// if any insert fails.
func (db *DB) CreateOrderTree(ctx context.Context, order *models.Order, items []models.OrderItem, ticketsByItem [][]models.Ticket) error {
	if len(items) != len(ticketsByItem) {
		return fmt.Errorf("order %s: %d items but %d ticket groups", order.OrderID, len(items), len(ticketsByItem))
	}

	return db.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.OrderID
			if _, err := tx.NewInsert().Model(&items[i]).Exec(ctx); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			for j := range ticketsByItem[i] {
				ticketsByItem[i][j].OrderID = order.OrderID
				ticketsByItem[i][j].OrderItemID = items[i].ID
				if _, err := tx.NewInsert().Model(&ticketsByItem[i][j]).Exec(ctx); err != nil {
					return fmt.Errorf("insert ticket: %w", err)
				}
			}
		}
		return nil
	})
}

func (db *DB) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := db.Bun.NewSelect().Model(&order).Where("order_id = ?", orderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (db *DB) GetOrderWithItems(ctx context.Context, orderID string) (*models.OrderWithItems, error) {
	order, err := db.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := db.Bun.NewSelect().Model(&items).Where("order_id = ?", orderID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}

	var tickets []models.Ticket
	if err := db.Bun.NewSelect().Model(&tickets).Where("order_id = ?", orderID).Order("issued_at ASC").Scan(ctx); err != nil {
		return nil, err
	}

	return &models.OrderWithItems{Order: *order, Items: items, Tickets: tickets}, nil
}

func (db *DB) GetOrdersForPurchaser(ctx context.Context, purchaser string) ([]models.OrderWithItems, error) {
	var orders []models.Order
	err := db.Bun.NewSelect().Model(&orders).Where("purchaser = ?", purchaser).Order("created_at DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.OrderWithItems, 0, len(orders))
	for _, order := range orders {
		full, err := db.GetOrderWithItems(ctx, order.OrderID)
		if err != nil {
			return nil, err
		}
		result = append(result, *full)
	}
	return result, nil
}

// UpdateOrderStatus moves an order between lifecycle states. The from guard
// makes the transition race-safe: two concurrent refunds cannot both win.
func (db *DB) UpdateOrderStatus(ctx context.Context, orderID, from, to string) error {
	res, err := db.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Where("order_id = ?", orderID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %s is not in status %q: %w", orderID, from, ErrOrderNotFound)
	}
	return nil
}

func (db *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := db.Bun.NewSelect().Model(&ticket).Where("redemption_code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkTicketUsed redeems a ticket exactly once. The NOT used guard makes
// double scans lose cleanly instead of silently succeeding.
func (db *DB) MarkTicketUsed(ctx context.Context, code string) (bool, error) {
	res, err := db.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("used = ?", true).
		Where("redemption_code = ?", code).
		Where("used = ?", false).
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

// SalesStats aggregates paid revenue and quantity for one ticket type.
type SalesStats struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Orders       int             `json:"orders"`
	Quantity     int             `json:"quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
}

func (db *DB) SalesStatsForTicketType(ctx context.Context, ticketTypeID string) (*SalesStats, error) {
	var row struct {
		Orders   int            `bun:"orders"`
		Quantity sql.NullInt64  `bun:"quantity"`
		Revenue  sql.NullString `bun:"revenue"`
	}
	err := db.Bun.NewSelect().
		ColumnExpr("COUNT(DISTINCT oi.order_id) AS orders").
		ColumnExpr("SUM(oi.quantity) AS quantity").
		ColumnExpr("SUM(oi.line_total) AS revenue").
		TableExpr("order_items AS oi").
		Join("JOIN orders AS o ON o.order_id = oi.order_id").
		Where("oi.ticket_type_id = ?", ticketTypeID).
		Where("o.status = ?", models.OrderStatusPaid).
		Scan(ctx, &row)
	if err != nil {
		return nil, err
	}

	stats := &SalesStats{TicketTypeID: ticketTypeID, Orders: row.Orders, Revenue: decimal.Zero}
	if row.Quantity.Valid {
		stats.Quantity = int(row.Quantity.Int64)
	}
	if row.Revenue.Valid {
		revenue, err := decimal.NewFromString(row.Revenue.String)
		if err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		stats.Revenue = revenue
	}
	return stats, nil
}
