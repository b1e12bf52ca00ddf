package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hamzak-27/curestock-app/domain"
)

const medicineColumns = `id, name, manufacturer, price, quantity, is_discontinued, medicine_type, pack_size, composition1, composition2`

type medicineRequest struct {
	Name           string          `json:"name"`
	Manufacturer   string          `json:"manufacturer"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int64           `json:"quantity"`
	IsDiscontinued bool            `json:"is_discontinued"`
	MedicineType   string          `json:"medicine_type"`
	PackSize       string          `json:"pack_size"`
	Composition1   string          `json:"composition1"`
	Composition2   string          `json:"composition2"`
}

func (req *medicineRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Manufacturer = strings.TrimSpace(req.Manufacturer)
	if req.Name == "" || req.Manufacturer == "" {
		return "name and manufacturer are required"
	}
	if req.Price.IsNegative() {
		return "price must not be negative"
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return "price must have at most two decimal places"
	}
	if req.Quantity < 0 {
		return "quantity must not be negative"
	}
	return ""
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	var medicines []domain.Medicine
	var err error
	if query == "" {
		err = h.db.Select(&medicines, `SELECT `+medicineColumns+` FROM medicines ORDER BY name`)
	} else {
		like := "%" + query + "%"
		err = h.db.Select(&medicines,
			`SELECT `+medicineColumns+` FROM medicines
             WHERE name LIKE ? OR manufacturer LIKE ? OR composition1 LIKE ? OR composition2 LIKE ?
             ORDER BY name`, like, like, like, like)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list medicines")
		return
	}
	if medicines == nil {
		medicines = []domain.Medicine{}
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	var medicine domain.Medicine
	if err := h.db.Get(&medicine, `SELECT `+medicineColumns+` FROM medicines WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "medicine not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load medicine")
		return
	}
	respondJSON(w, http.StatusOK, medicine)
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.db.Exec(`INSERT INTO medicines
        (name, manufacturer, price, quantity, is_discontinued, medicine_type, pack_size, composition1, composition2)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Name, req.Manufacturer, req.Price.StringFixed(2), req.Quantity, req.IsDiscontinued,
		req.MedicineType, req.PackSize, req.Composition1, req.Composition2)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			respondError(w, http.StatusConflict, "medicine already exists for this manufacturer")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to create medicine")
		}
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create medicine")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.db.Exec(`UPDATE medicines SET
        name = ?, manufacturer = ?, price = ?, quantity = ?, is_discontinued = ?,
        medicine_type = ?, pack_size = ?, composition1 = ?, composition2 = ?
        WHERE id = ?`,
		req.Name, req.Manufacturer, req.Price.StringFixed(2), req.Quantity, req.IsDiscontinued,
		req.MedicineType, req.PackSize, req.Composition1, req.Composition2, id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			respondError(w, http.StatusConflict, "medicine already exists for this manufacturer")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to update medicine")
		}
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update medicine")
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	res, err := h.db.Exec(`DELETE FROM medicines WHERE id = ?`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete medicine")
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete medicine")
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
