package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tickio/internal/availability"
	"tickio/internal/checkout"
	checkoutdb "tickio/internal/checkout/db"
	"tickio/internal/inventory"
	invdb "tickio/internal/inventory/db"
	"tickio/internal/models"
)

type Handler struct {
	Checkout     *checkout.Orchestrator
	Availability *availability.Calculator
	Ledger       *inventory.Ledger
}

// ownerFromRequest resolves who is shopping: an authenticated user via the
// X-User-ID header, else an anonymous session via X-Session-Key or the
// session cookie.
func ownerFromRequest(r *http.Request) models.OwnerRef {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return models.AuthenticatedUser(userID)
	}
	if key := r.Header.Get("X-Session-Key"); key != "" {
		return models.AnonymousSession(key)
	}
	if cookie, err := r.Cookie("session_key"); err == nil && cookie.Value != "" {
		return models.AnonymousSession(cookie.Value)
	}
	return models.OwnerRef{}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeCheckoutError maps orchestrator failures onto HTTP statuses: bad cart
// 400, sold out 409, declined payment 402, lock contention 503.
func writeCheckoutError(w http.ResponseWriter, err error) {
	var insufficient *checkout.InsufficientAvailabilityError
	var payment *checkout.PaymentError
	switch {
	case errors.Is(err, checkout.ErrInvalidCartRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          insufficient.Error(),
			"ticket_type_id": insufficient.TicketTypeID,
			"requested":      insufficient.Requested,
			"available":      insufficient.Available,
		})
	case errors.Is(err, inventory.ErrInsufficientCapacity), errors.Is(err, inventory.ErrTicketTypeUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &payment):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":       payment.Error(),
			"payment_ref": payment.Reference,
		})
	case errors.Is(err, checkout.ErrConcurrencyConflict):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, checkoutdb.ErrOrderNotFound), errors.Is(err, checkoutdb.ErrTicketNotFound), errors.Is(err, invdb.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (models.OwnerRef, bool) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID, X-Session-Key or session cookie")
		return owner, false
	}
	return owner, true
}

// ReserveLine places or adjusts a hold: PUT /api/v1/cart/lines.
func (h *Handler) ReserveLine(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req models.CartLine
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	hold, err := h.Checkout.ReserveLine(r.Context(), owner, req.TicketTypeID, req.Quantity)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	if hold == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
		return
	}
	writeJSON(w, http.StatusOK, hold)
}

// ReleaseLine drops a hold: DELETE /api/v1/cart/lines/{ticketTypeID}.
func (h *Handler) ReleaseLine(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	ticketTypeID := chi.URLParam(r, "ticketTypeID")
	if err := h.Checkout.ReleaseLine(r.Context(), owner, ticketTypeID); err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

// GetCart lists the owner's live holds: GET /api/v1/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	holds, err := h.Checkout.Cart(r.Context(), owner)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	if holds == nil {
		holds = []models.Hold{}
	}
	writeJSON(w, http.StatusOK, holds)
}

// GetAvailability reports effective availability for one ticket type:
// GET /api/v1/availability/{ticketTypeID}.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	ticketTypeID := chi.URLParam(r, "ticketTypeID")

	available, err := h.Availability.EffectiveAvailable(r.Context(), ticketTypeID, owner)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_type_id": ticketTypeID,
		"available":      available,
	})
}

// GetEventAvailability rolls availability up over an event's active ticket
// types: GET /api/v1/events/{eventID}/availability.
func (h *Handler) GetEventAvailability(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	eventID := chi.URLParam(r, "eventID")

	total, err := h.Availability.EffectiveForEvent(r.Context(), eventID, owner)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":  eventID,
		"available": total,
	})
}

// ListTicketTypes lists an event's active ticket types:
// GET /api/v1/events/{eventID}/ticket-types.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	tts, err := h.Ledger.TicketTypesForEvent(r.Context(), eventID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	if tts == nil {
		tts = []models.TicketType{}
	}
	writeJSON(w, http.StatusOK, tts)
}

type checkoutRequest struct {
	Lines []models.CartLine `json:"lines"`
}

// PostCheckout runs the purchase: POST /api/v1/checkout. With no lines in
// the body, the owner's current cart is used.
func (h *Handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	lines := req.Lines
	if len(lines) == 0 {
		holds, err := h.Checkout.Cart(r.Context(), owner)
		if err != nil {
			writeCheckoutError(w, err)
			return
		}
		for _, hold := range holds {
			lines = append(lines, models.CartLine{TicketTypeID: hold.TicketTypeID, Quantity: hold.Quantity})
		}
	}

	order, err := h.Checkout.Checkout(r.Context(), owner, lines)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// ListOrders lists the owner's orders: GET /api/v1/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	orders, err := h.Checkout.OrdersForPurchaser(r.Context(), owner)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	if orders == nil {
		orders = []models.OrderWithItems{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder fetches one of the owner's orders: GET /api/v1/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	order, err := h.Checkout.Order(r.Context(), owner, chi.URLParam(r, "orderID"))
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// RefundOrder refunds a paid order: POST /api/v1/orders/{orderID}/refund.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	order, err := h.Checkout.RefundOrder(r.Context(), owner, chi.URLParam(r, "orderID"))
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// RedeemTicket consumes a ticket at the door: POST /api/v1/tickets/{code}/redeem.
func (h *Handler) RedeemTicket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	ticket, err := h.Checkout.RedeemTicket(r.Context(), code)
	if err != nil {
		if ticket != nil {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  err.Error(),
				"ticket": ticket,
			})
			return
		}
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// TicketQR renders the redemption code as a PNG: GET /api/v1/tickets/{code}/qr.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	png, err := h.Checkout.TicketQR(r.Context(), code, 256)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// SalesStats aggregates paid sales for a ticket type:
// GET /api/v1/ticket-types/{ticketTypeID}/stats.
func (h *Handler) SalesStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Checkout.SalesStats(r.Context(), chi.URLParam(r, "ticketTypeID"))
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Routes mounts every handler under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Put("/cart/lines", h.ReserveLine)
		r.Delete("/cart/lines/{ticketTypeID}", h.ReleaseLine)
		r.Get("/availability/{ticketTypeID}", h.GetAvailability)
		r.Get("/events/{eventID}/availability", h.GetEventAvailability)
		r.Get("/events/{eventID}/ticket-types", h.ListTicketTypes)
		r.Post("/checkout", h.PostCheckout)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Post("/orders/{orderID}/refund", h.RefundOrder)
		r.Post("/tickets/{code}/redeem", h.RedeemTicket)
		r.Get("/tickets/{code}/qr", h.TicketQR)
		r.Get("/ticket-types/{ticketTypeID}/stats", h.SalesStats)
	})
	return r
}
