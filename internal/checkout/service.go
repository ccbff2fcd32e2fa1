package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutdb "tickio/internal/checkout/db"
	"tickio/internal/checkout/codes"
	"tickio/internal/logger"
	"tickio/internal/models"
	"tickio/internal/payment"
)

// LedgerAPI is the slice of the inventory ledger checkout drives.
type LedgerAPI interface {
	TicketType(ctx context.Context, id string) (*models.TicketType, error)
	TryCommit(ctx context.Context, ticketTypeID string, quantity int) error
	Rollback(ctx context.Context, ticketTypeID string, quantity int) error
}

// HoldsAPI is the slice of the hold store checkout drives.
type HoldsAPI interface {
	UpsertHold(ctx context.Context, ticketTypeID string, owner models.OwnerRef, quantity int) (*models.Hold, error)
	ReleaseHold(ctx context.Context, ticketTypeID string, owner models.OwnerRef) error
	ReleaseAllForOwner(ctx context.Context, owner models.OwnerRef) error
	HoldsForOwner(ctx context.Context, owner models.OwnerRef) ([]models.Hold, error)
	ActiveHoldsFor(ctx context.Context, ticketTypeID string, excluding models.OwnerRef) (int, error)
}

// AvailabilityAPI answers the advisory availability question.
type AvailabilityAPI interface {
	EffectiveAvailable(ctx context.Context, ticketTypeID string, owner models.OwnerRef) (int, error)
}

// OrderDB is the order persistence surface.
type OrderDB interface {
	CreateOrderTree(ctx context.Context, order *models.Order, items []models.OrderItem, ticketsByItem [][]models.Ticket) error
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, orderID string) (*models.OrderWithItems, error)
	GetOrdersForPurchaser(ctx context.Context, purchaser string) ([]models.OrderWithItems, error)
	UpdateOrderStatus(ctx context.Context, orderID, from, to string) error
	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	MarkTicketUsed(ctx context.Context, code string) (bool, error)
	SalesStatsForTicketType(ctx context.Context, ticketTypeID string) (*checkoutdb.SalesStats, error)
}

// InventoryLocks serializes checkouts that touch overlapping ticket types.
type InventoryLocks interface {
	Acquire(ctx context.Context, ticketTypeIDs []string, token string) (bool, error)
	Release(ctx context.Context, ticketTypeIDs []string, token string) error
}

// Publisher emits order lifecycle events. Publishing is best-effort; a down
// broker never fails a paid checkout.
type Publisher interface {
	PublishOrderPaid(ctx context.Context, order *models.OrderWithItems) error
	PublishOrderRefunded(ctx context.Context, order *models.Order) error
}

// Orchestrator runs the multi-step checkout and its compensations. It is the
// only component that moves the sold counter, takes payment, and writes
// orders, so every partial-failure path here must leave the ledger exactly
// where it found it.
type Orchestrator struct {
	Ledger       LedgerAPI
	Holds        HoldsAPI
	Availability AvailabilityAPI
	Orders       OrderDB
	Locks        InventoryLocks
	Gateway      payment.Gateway
	Publisher    Publisher
	Logger       *logger.Logger
}

func NewOrchestrator(ledger LedgerAPI, holds HoldsAPI, avail AvailabilityAPI, orders OrderDB, locks InventoryLocks, gateway payment.Gateway, publisher Publisher, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		Ledger:       ledger,
		Holds:        holds,
		Availability: avail,
		Orders:       orders,
		Locks:        locks,
		Gateway:      gateway,
		Publisher:    publisher,
		Logger:       log,
	}
}

// normalizeCart merges duplicate lines and rejects empty carts and
// non-positive quantities. The returned lines are sorted by ticket type id,
// which is also the lock acquisition order.
func normalizeCart(lines []models.CartLine) ([]models.CartLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("cart is empty: %w", ErrInvalidCartRequest)
	}
	merged := map[string]int{}
	for _, line := range lines {
		if line.TicketTypeID == "" {
			return nil, fmt.Errorf("missing ticket type id: %w", ErrInvalidCartRequest)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity %d for %s: %w", line.Quantity, line.TicketTypeID, ErrInvalidCartRequest)
		}
		merged[line.TicketTypeID] += line.Quantity
	}
	out := make([]models.CartLine, 0, len(merged))
	for id, qty := range merged {
		out = append(out, models.CartLine{TicketTypeID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketTypeID < out[j].TicketTypeID })
	return out, nil
}

// ReserveLine places or adjusts the owner's hold after checking advisory
// availability. Quantity zero releases the line.
func (o *Orchestrator) ReserveLine(ctx context.Context, owner models.OwnerRef, ticketTypeID string, quantity int) (*models.Hold, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity %d for %s: %w", quantity, ticketTypeID, ErrInvalidCartRequest)
	}
	if quantity == 0 {
		return nil, o.Holds.ReleaseHold(ctx, ticketTypeID, owner)
	}

	available, err := o.Availability.EffectiveAvailable(ctx, ticketTypeID, owner)
	if err != nil {
		return nil, err
	}
	if quantity > available {
		return nil, &InsufficientAvailabilityError{TicketTypeID: ticketTypeID, Requested: quantity, Available: available}
	}
	return o.Holds.UpsertHold(ctx, ticketTypeID, owner, quantity)
}

// ReleaseLine drops the owner's hold on a ticket type. Idempotent.
func (o *Orchestrator) ReleaseLine(ctx context.Context, owner models.OwnerRef, ticketTypeID string) error {
	return o.Holds.ReleaseHold(ctx, ticketTypeID, owner)
}

// Cart returns the owner's live holds.
func (o *Orchestrator) Cart(ctx context.Context, owner models.OwnerRef) ([]models.Hold, error) {
	return o.Holds.HoldsForOwner(ctx, owner)
}

type committedLine struct {
	ticketType *models.TicketType
	quantity   int
}

// rollbackCommits undoes sold-counter commits from a checkout that failed
// partway. It runs on a detached context: the request context may already be
// cancelled (a shopper abandoning a slow charge), and the compensation must
// still land or the units stay sold with no order. Rollback failures are
// logged, not returned: the caller is already on an error path and the
// counters are the thing that must be reported.
func (o *Orchestrator) rollbackCommits(orderID string, committed []committedLine) {
	ctx := context.Background()
	for _, c := range committed {
		if err := o.Ledger.Rollback(ctx, c.ticketType.ID, c.quantity); err != nil {
			o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] rollback of %d units on %s failed: %v", orderID, c.quantity, c.ticketType.ID, err))
		}
	}
}

// Checkout converts a cart into a paid order, or into nothing. Under the
// per-ticket-type locks it re-validates availability, commits the sold
// counters, charges the purchaser, and writes the order tree; any failure
// after a commit compensates by rolling the counters back. Holds are cleared
// on success and on a definitive payment decline, and kept on transient
// errors so the shopper can retry.
func (o *Orchestrator) Checkout(ctx context.Context, purchaser models.OwnerRef, lines []models.CartLine) (*models.OrderWithItems, error) {
	cart, err := normalizeCart(lines)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	lockToken := uuid.NewString()
	ids := make([]string, len(cart))
	for i, line := range cart {
		ids[i] = line.TicketTypeID
	}

	ok, err := o.Locks.Acquire(ctx, ids, lockToken)
	if err != nil {
		return nil, fmt.Errorf("acquire inventory locks: %w", err)
	}
	if !ok {
		return nil, ErrConcurrencyConflict
	}
	defer func() {
		if err := o.Locks.Release(context.Background(), ids, lockToken); err != nil {
			o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] lock release failed: %v", orderID, err))
		}
	}()

	o.Logger.LogCheckout("START", orderID, fmt.Sprintf("%s buying %d line(s)", purchaser, len(cart)))

	// Re-validate and snapshot prices under the locks. Advisory availability
	// shown earlier may have gone stale.
	snapshot := make([]committedLine, 0, len(cart))
	for _, line := range cart {
		tt, err := o.Ledger.TicketType(ctx, line.TicketTypeID)
		if err != nil {
			return nil, fmt.Errorf("ticket type %s: %w", line.TicketTypeID, ErrInvalidCartRequest)
		}
		if !tt.Active {
			return nil, &InsufficientAvailabilityError{TicketTypeID: tt.ID, Requested: line.Quantity, Available: 0}
		}
		held, err := o.Holds.ActiveHoldsFor(ctx, tt.ID, purchaser)
		if err != nil {
			return nil, fmt.Errorf("sum holds for %s: %w", tt.ID, err)
		}
		available := tt.Capacity - tt.Sold - held
		if available < 0 {
			available = 0
		}
		if line.Quantity > available {
			return nil, &InsufficientAvailabilityError{TicketTypeID: tt.ID, Requested: line.Quantity, Available: available}
		}
		snapshot = append(snapshot, committedLine{ticketType: tt, quantity: line.Quantity})
	}

	// Commit the sold counters. The guarded update is the authoritative
	// oversell check; the validation above only produces friendlier errors.
	committed := make([]committedLine, 0, len(snapshot))
	for _, line := range snapshot {
		if err := o.Ledger.TryCommit(ctx, line.ticketType.ID, line.quantity); err != nil {
			o.rollbackCommits(orderID, committed)
			return nil, err
		}
		committed = append(committed, line)
	}

	total := decimal.Zero
	for _, line := range committed {
		total = total.Add(line.ticketType.Price.Mul(decimal.NewFromInt(int64(line.quantity))))
	}

	approved, paymentRef, err := o.Gateway.Charge(ctx, total, purchaser, map[string]string{"order_id": orderID})
	if err != nil {
		// Transient gateway failure: undo the commits, keep the holds so
		// the shopper can retry with their cart intact.
		o.rollbackCommits(orderID, committed)
		o.Logger.LogCheckout("PAYMENT_ERROR", orderID, err.Error())
		return nil, fmt.Errorf("charge: %w", err)
	}
	if !approved {
		o.rollbackCommits(orderID, committed)
		if err := o.Holds.ReleaseAllForOwner(context.Background(), purchaser); err != nil {
			o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] hold release after decline failed: %v", orderID, err))
		}
		o.Logger.LogCheckout("DECLINED", orderID, fmt.Sprintf("gateway ref %s", paymentRef))
		return nil, &PaymentError{Reference: paymentRef, Reason: "declined by gateway"}
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderID:     orderID,
		Purchaser:   purchaser.Key(),
		Status:      models.OrderStatusPaid,
		TotalAmount: total,
		PaymentRef:  paymentRef,
		CreatedAt:   now,
	}
	items := make([]models.OrderItem, len(committed))
	ticketsByItem := make([][]models.Ticket, len(committed))
	for i, line := range committed {
		items[i] = models.OrderItem{
			OrderID:      orderID,
			TicketTypeID: line.ticketType.ID,
			Name:         line.ticketType.Name,
			UnitPrice:    line.ticketType.Price,
			Quantity:     line.quantity,
			LineTotal:    line.ticketType.Price.Mul(decimal.NewFromInt(int64(line.quantity))),
		}
		tickets := make([]models.Ticket, line.quantity)
		for j := range tickets {
			tickets[j] = models.Ticket{
				TicketID:       uuid.NewString(),
				OrderID:        orderID,
				TicketTypeID:   line.ticketType.ID,
				EventID:        line.ticketType.EventID,
				Owner:          purchaser.Key(),
				RedemptionCode: codes.NewRedemptionCode(),
				IssuedAt:       now,
			}
		}
		ticketsByItem[i] = tickets
	}

	if err := o.Orders.CreateOrderTree(ctx, order, items, ticketsByItem); err != nil {
		o.rollbackCommits(orderID, committed)
		// The charge already went through; flag it for manual refund rather
		// than guessing at gateway reversal semantics here.
		o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] order write failed after charge %s, needs manual refund: %v", orderID, paymentRef, err))
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if err := o.Holds.ReleaseAllForOwner(context.Background(), purchaser); err != nil {
		o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] hold release after success failed: %v", orderID, err))
	}

	result := &models.OrderWithItems{Order: *order, Items: items}
	for _, tickets := range ticketsByItem {
		result.Tickets = append(result.Tickets, tickets...)
	}

	if o.Publisher != nil {
		if err := o.Publisher.PublishOrderPaid(ctx, result); err != nil {
			o.Logger.Warn("CHECKOUT", fmt.Sprintf("[%s] publish order.paid failed: %v", orderID, err))
		}
	}

	o.Logger.LogCheckout("PAID", orderID, fmt.Sprintf("total %s, ref %s", total.StringFixed(2), paymentRef))
	return result, nil
}

// Order fetches a full order. Owner is checked so one purchaser cannot read
// another's order.
func (o *Orchestrator) Order(ctx context.Context, owner models.OwnerRef, orderID string) (*models.OrderWithItems, error) {
	order, err := o.Orders.GetOrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Purchaser != owner.Key() {
		return nil, checkoutdb.ErrOrderNotFound
	}
	return order, nil
}

// OrdersForPurchaser lists the owner's orders, newest first.
func (o *Orchestrator) OrdersForPurchaser(ctx context.Context, owner models.OwnerRef) ([]models.OrderWithItems, error) {
	return o.Orders.GetOrdersForPurchaser(ctx, owner.Key())
}

// RefundOrder moves a paid order to refunded and returns its units to the
// ledger. The guarded status transition makes concurrent refunds single-shot.
func (o *Orchestrator) RefundOrder(ctx context.Context, owner models.OwnerRef, orderID string) (*models.Order, error) {
	order, err := o.Order(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}

	if err := o.Orders.UpdateOrderStatus(ctx, orderID, models.OrderStatusPaid, models.OrderStatusRefunded); err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		if err := o.Ledger.Rollback(ctx, item.TicketTypeID, item.Quantity); err != nil {
			o.Logger.Error("CHECKOUT", fmt.Sprintf("[%s] restock of %d units on %s failed: %v", orderID, item.Quantity, item.TicketTypeID, err))
		}
	}

	order.Status = models.OrderStatusRefunded
	if o.Publisher != nil {
		if err := o.Publisher.PublishOrderRefunded(ctx, &order.Order); err != nil {
			o.Logger.Warn("CHECKOUT", fmt.Sprintf("[%s] publish order.refunded failed: %v", orderID, err))
		}
	}
	o.Logger.LogCheckout("REFUNDED", orderID, fmt.Sprintf("ref %s", order.PaymentRef))
	return &order.Order, nil
}

// RedeemTicket consumes a ticket at the door. A second scan of the same code
// reports failure.
func (o *Orchestrator) RedeemTicket(ctx context.Context, code string) (*models.Ticket, error) {
	redeemed, err := o.Orders.MarkTicketUsed(ctx, code)
	if err != nil {
		return nil, err
	}
	ticket, err := o.Orders.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !redeemed {
		return ticket, fmt.Errorf("ticket %s already used", code)
	}
	return ticket, nil
}

// TicketQR renders the PNG for a ticket's redemption code.
func (o *Orchestrator) TicketQR(ctx context.Context, code string, size int) ([]byte, error) {
	if _, err := o.Orders.GetTicketByCode(ctx, code); err != nil {
		return nil, err
	}
	return codes.QRImage(code, size)
}

// SalesStats aggregates paid sales for one ticket type.
func (o *Orchestrator) SalesStats(ctx context.Context, ticketTypeID string) (*checkoutdb.SalesStats, error) {
	return o.Orders.SalesStatsForTicketType(ctx, ticketTypeID)
}
