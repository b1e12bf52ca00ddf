package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hamzak-27/curestock-app/domain"
	"github.com/hamzak-27/curestock-app/internal/billing"
)

const callColumns = `id, phone_number, duration, call_time, follow_up, summary, transcript, recording_url`

// latestCalls is the polling endpoint for the dashboard: calls with an id
// greater than last_id, newest first. Without last_id it returns an empty
// list.
func (h *Handler) latestCalls(w http.ResponseWriter, r *http.Request) {
	lastID := r.URL.Query().Get("last_id")
	if lastID == "" {
		respondJSON(w, http.StatusOK, map[string]any{"calls": []any{}})
		return
	}
	id, err := strconv.ParseInt(lastID, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "last_id must be an integer")
		return
	}

	var calls []domain.Call
	if err := h.db.Select(&calls,
		`SELECT `+callColumns+` FROM calls WHERE id > ? ORDER BY call_time DESC`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load calls")
		return
	}

	data := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		data = append(data, map[string]any{
			"id":           call.ID,
			"phone_number": call.PhoneNumber,
			"duration":     call.Duration,
			"call_time":    call.CallTime,
			"follow_up":    call.FollowUp,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"calls": data})
}

func (h *Handler) listCalls(w http.ResponseWriter, r *http.Request) {
	var calls []domain.Call
	if err := h.db.Select(&calls, `SELECT `+callColumns+` FROM calls ORDER BY call_time DESC`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list calls")
		return
	}
	if calls == nil {
		calls = []domain.Call{}
	}
	respondJSON(w, http.StatusOK, calls)
}

func (h *Handler) callDetail(w http.ResponseWriter, r *http.Request) {
	call, ok := h.callByParam(w, r)
	if !ok {
		return
	}

	orders, err := h.ordersForCall(call.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load orders")
		return
	}

	response := map[string]any{
		"call":     call,
		"orders":   orders,
		"has_bill": false,
	}

	var bill domain.Bill
	err = h.db.Get(&bill,
		`SELECT id, call_id, invoice_number, total_amount, gst_percentage, content, created_at FROM bills WHERE call_id = ?`, call.ID)
	switch {
	case err == nil:
		response["has_bill"] = true
		response["bill"] = bill
	case errors.Is(err, sql.ErrNoRows):
		// No bill yet: a normal state, not an error.
	default:
		respondError(w, http.StatusInternalServerError, "unable to load bill")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid bill id")
		return
	}
	var bill domain.Bill
	if err := h.db.Get(&bill,
		`SELECT id, call_id, invoice_number, total_amount, gst_percentage, content, created_at FROM bills WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "bill not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load bill")
		return
	}
	respondJSON(w, http.StatusOK, bill)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !domain.ValidOrderStatus(payload.Status) {
		respondError(w, http.StatusBadRequest, "status must be one of pending, confirmed, ready, completed, cancelled")
		return
	}

	res, err := h.db.Exec(`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, payload.Status, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update order")
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update order")
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) generateBill(w http.ResponseWriter, r *http.Request) {
	call, ok := h.callByParam(w, r)
	if !ok {
		return
	}

	orders, err := h.ordersForCall(call.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load orders")
		return
	}

	bill, created, err := h.bills.Generate(r.Context(), call, orders)
	if err != nil {
		if errors.Is(err, billing.ErrNoOrders) {
			respondError(w, http.StatusBadRequest, "cannot generate bill: no orders found for this call")
			return
		}
		h.log.Error().Err(err).Int64("call_id", call.ID).Msg("bill generation failed")
		respondError(w, http.StatusInternalServerError, "unable to generate bill")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, bill)
}

func (h *Handler) callByParam(w http.ResponseWriter, r *http.Request) (domain.Call, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid call id")
		return domain.Call{}, false
	}
	var call domain.Call
	if err := h.db.Get(&call, `SELECT `+callColumns+` FROM calls WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "call not found")
			return domain.Call{}, false
		}
		respondError(w, http.StatusInternalServerError, "unable to load call")
		return domain.Call{}, false
	}
	return call, true
}

func (h *Handler) ordersForCall(callID int64) ([]domain.Order, error) {
	var orders []domain.Order
	err := h.db.Select(&orders,
		`SELECT id, call_id, medicine_name, quantity, delivery_method, status, created_at, updated_at
         FROM orders WHERE call_id = ? ORDER BY id`, callID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
