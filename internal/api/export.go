package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hamzak-27/curestock-app/domain"
)

// exportMedicinesCSV streams the full catalog as a CSV attachment, ordered
// by name.
func (h *Handler) exportMedicinesCSV(w http.ResponseWriter, r *http.Request) {
	var medicines []domain.Medicine
	if err := h.db.Select(&medicines, `SELECT `+medicineColumns+` FROM medicines ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to export medicines")
		return
	}

	filename := fmt.Sprintf("medicines_inventory_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"ID", "Name", "Manufacturer", "Price (₹)", "Quantity", "Status",
		"Type", "Pack Size", "Composition 1", "Composition 2"})
	for _, m := range medicines {
		_ = writer.Write([]string{
			strconv.FormatInt(m.ID, 10),
			m.Name,
			m.Manufacturer,
			m.Price.StringFixed(2),
			strconv.FormatInt(m.Quantity, 10),
			m.Status(),
			m.MedicineType,
			m.PackSize,
			m.Composition1,
			m.Composition2,
		})
	}
	writer.Flush()
}

// exportMedicinesJSON returns the catalog as a JSON array with price as a
// plain decimal number.
func (h *Handler) exportMedicinesJSON(w http.ResponseWriter, r *http.Request) {
	var medicines []domain.Medicine
	if err := h.db.Select(&medicines, `SELECT `+medicineColumns+` FROM medicines ORDER BY name`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to export medicines")
		return
	}

	data := make([]map[string]any, 0, len(medicines))
	for _, m := range medicines {
		data = append(data, map[string]any{
			"id":              m.ID,
			"name":            m.Name,
			"manufacturer":    m.Manufacturer,
			"price":           m.Price.InexactFloat64(),
			"quantity":        m.Quantity,
			"is_discontinued": m.IsDiscontinued,
			"status":          m.Status(),
			"medicine_type":   m.MedicineType,
			"pack_size":       m.PackSize,
			"composition1":    m.Composition1,
			"composition2":    m.Composition2,
		})
	}
	respondJSON(w, http.StatusOK, data)
}
