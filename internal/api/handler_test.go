package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzak-27/curestock-app/internal/billing"
	"github.com/hamzak-27/curestock-app/internal/database"
	"github.com/hamzak-27/curestock-app/internal/migrations"
)

func newTestRouter(t *testing.T) (*sqlx.DB, http.Handler) {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	gen := billing.NewGenerator(db, nil, zerolog.Nop())
	h := New(db, "test-secret", zerolog.Nop(), gen)
	return db, h.Router()
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler, email, role string) string {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": strings.Split(email, "@")[0],
		"email":    email,
		"password": "secret123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func sampleMedicine(name string) map[string]any {
	return map[string]any{
		"name":            name,
		"manufacturer":    "GSK",
		"price":           15.50,
		"quantity":        100,
		"is_discontinued": false,
		"medicine_type":   "allopathy",
		"pack_size":       "strip of 15 tablets",
		"composition1":    "Paracetamol (500mg)",
		"composition2":    "",
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	_, router := newTestRouter(t)

	token := registerUser(t, router, "asha@curestock.com", "staff")
	require.NotEmpty(t, token)

	// Duplicate email is rejected.
	rec := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "asha2", "email": "asha@curestock.com", "password": "other", "role": "staff",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "Asha@Curestock.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "asha@curestock.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "x", "email": "x@curestock.com", "password": "secret123", "role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPassword(t *testing.T) {
	_, router := newTestRouter(t)
	token := registerUser(t, router, "asha@curestock.com", "staff")

	rec := doRequest(t, router, http.MethodPost, "/auth/reset-password", token, map[string]string{
		"new_password": "changed456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "asha@curestock.com", "password": "changed456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMedicineCRUD(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	// Mutations need a token.
	rec := doRequest(t, router, http.MethodPost, "/medicines", "", sampleMedicine("Paracetamol 500mg"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Paracetamol 500mg"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["id"].(float64))

	// Same name and manufacturer conflicts.
	rec = doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Paracetamol 500mg"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/medicines/%d", id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Paracetamol 500mg")

	updated := sampleMedicine("Paracetamol 500mg")
	updated["quantity"] = 60
	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/medicines/%d", id), admin, updated)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/medicines/9999", admin, updated)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/medicines/%d", id), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/medicines/%d", id), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMedicineValidation(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	cases := map[string]map[string]any{
		"missing name": func() map[string]any {
			m := sampleMedicine("")
			return m
		}(),
		"negative price": func() map[string]any {
			m := sampleMedicine("Dolo 650")
			m["price"] = -1.00
			return m
		}(),
		"too many decimal places": func() map[string]any {
			m := sampleMedicine("Dolo 650")
			m["price"] = 10.999
			return m
		}(),
		"negative quantity": func() map[string]any {
			m := sampleMedicine("Dolo 650")
			m["quantity"] = -5
			return m
		}(),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/medicines", admin, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDeleteMedicineRequiresAdmin(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")
	staff := registerUser(t, router, "staff@curestock.com", "staff")

	rec := doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Dolo 650"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["id"].(float64))

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/medicines/%d", id), staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, fmt.Sprintf("/medicines/%d", id), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMedicinesSearch(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	for _, name := range []string{"Paracetamol 500mg", "Azithral 500", "Benadryl Syrup"} {
		rec := doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine(name))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/medicines?query=azithral", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var medicines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &medicines))
	require.Len(t, medicines, 1)
	assert.Equal(t, "Azithral 500", medicines[0]["name"])

	rec = doRequest(t, router, http.MethodGet, "/medicines", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &medicines))
	assert.Len(t, medicines, 3)
}

func TestExportCSV(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")
	rec := doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Paracetamol 500mg"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/export/csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=")
	assert.Contains(t, rec.Body.String(), "Price (₹)")
	assert.Contains(t, rec.Body.String(), "Paracetamol 500mg")
	assert.Contains(t, rec.Body.String(), "Active")
}

func TestExportJSONPriceIsNumber(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")
	rec := doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Paracetamol 500mg"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/medicines", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var medicines []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &medicines))
	require.Len(t, medicines, 1)
	assert.InDelta(t, 15.50, medicines[0]["price"].(float64), 0.0001)
}

func insertAnalyzedCall(t *testing.T, db *sqlx.DB, phone, medicine, quantity string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO calls (phone_number, duration, call_time, follow_up, summary, transcript, recording_url)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		phone, 45, time.Now().UTC().Format(time.RFC3339), false, "", "", "")
	require.NoError(t, err)
	callID, err := res.LastInsertId()
	require.NoError(t, err)
	if medicine != "" {
		_, err = db.Exec(`INSERT INTO orders (call_id, medicine_name, quantity, delivery_method, status)
            VALUES (?, ?, ?, 'pickup', 'confirmed')`, callID, medicine, quantity)
		require.NoError(t, err)
	}
	return callID
}

func TestLatestCalls(t *testing.T) {
	db, router := newTestRouter(t)

	// Without last_id the endpoint stays quiet.
	rec := doRequest(t, router, http.MethodGet, "/latest-calls", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Calls []map[string]any `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Calls)

	first := insertAnalyzedCall(t, db, "+911111111111", "", "")
	insertAnalyzedCall(t, db, "+912222222222", "", "")

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/latest-calls?last_id=%d", first), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, "+912222222222", resp.Calls[0]["phone_number"])

	rec = doRequest(t, router, http.MethodGet, "/latest-calls?last_id=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallDetailAndBillFlow(t *testing.T) {
	db, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	rec := doRequest(t, router, http.MethodPost, "/medicines", admin, sampleMedicine("Paracetamol 500mg"))
	require.Equal(t, http.StatusCreated, rec.Code)

	callID := insertAnalyzedCall(t, db, "+919876543210", "Paracetamol 500mg", "2 tablets")

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/calls/%d", callID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, false, detail["has_bill"])

	// First generation creates the bill.
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/calls/%d/bill", callID), admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bill map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bill))
	invoice := bill["invoice_number"].(string)
	require.NotEmpty(t, invoice)

	// Second generation returns the same bill without touching stock again.
	rec = doRequest(t, router, http.MethodPost, fmt.Sprintf("/calls/%d/bill", callID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bill))
	assert.Equal(t, invoice, bill["invoice_number"])

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/calls/%d", callID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, true, detail["has_bill"])

	billID := int64(bill["id"].(float64))
	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/bills/%d", billID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateBillWithoutOrders(t *testing.T) {
	db, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	callID := insertAnalyzedCall(t, db, "+919876543210", "", "")
	rec := doRequest(t, router, http.MethodPost, fmt.Sprintf("/calls/%d/bill", callID), admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no orders found for this call")
}

func TestGenerateBillMissingCall(t *testing.T) {
	_, router := newTestRouter(t)
	admin := registerUser(t, router, "admin@curestock.com", "admin")

	rec := doRequest(t, router, http.MethodPost, "/calls/999/bill", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	db, router := newTestRouter(t)
	staff := registerUser(t, router, "staff@curestock.com", "staff")

	callID := insertAnalyzedCall(t, db, "+919876543210", "Paracetamol 500mg", "2 tablets")
	var orderID int64
	require.NoError(t, db.Get(&orderID, `SELECT id FROM orders WHERE call_id = ?`, callID))

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/orders/%d/status", orderID), staff, map[string]string{"status": "ready"})
	require.Equal(t, http.StatusOK, rec.Code)

	var status string
	require.NoError(t, db.Get(&status, `SELECT status FROM orders WHERE id = ?`, orderID))
	assert.Equal(t, "ready", status)

	rec = doRequest(t, router, http.MethodPut, fmt.Sprintf("/orders/%d/status", orderID), staff, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/orders/999/status", staff, map[string]string{"status": "ready"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
