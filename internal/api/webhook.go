package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hamzak-27/curestock-app/domain"
)

// webhook ingests call-analytics events. The payload is external input,
// so every field access tolerates absence and wrong types; any failure is
// reported as a structured 400 rather than a crash.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.webhookError(w, "unable to read request body")
		return
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		h.webhookError(w, "invalid JSON body")
		return
	}

	event, _ := data["event"].(string)
	switch {
	case event == "call_analyzed":
		h.handleCallAnalyzed(w, r, data)
	case event == "call_started" || event == "call_ended":
		respondJSON(w, http.StatusOK, map[string]string{"status": "received", "event": event})
	case event == "":
		if _, ok := data["from_number"]; ok {
			h.handleTestPayload(w, r, data)
			return
		}
		fallthrough
	default:
		h.log.Info().Str("event", event).Msg("webhook received unknown event")
		respondJSON(w, http.StatusOK, map[string]string{"status": "received", "message": "Unknown event type"})
	}
}

func (h *Handler) handleCallAnalyzed(w http.ResponseWriter, r *http.Request, data map[string]any) {
	callData := asMap(data["call"])
	analysis := asMap(callData["call_analysis"])
	custom := asMap(analysis["custom_analysis_data"])

	phone := stringOr(callData["from_number"], "Unknown")

	duration := int64(0)
	if ms, ok := asInt64(callData["duration_ms"]); ok {
		duration = ms / 1000
	}

	callTime := time.Now().UTC()
	if ts, ok := asInt64(callData["start_timestamp"]); ok {
		callTime = time.UnixMilli(ts).UTC()
	}

	followUp := boolOr(custom["_follow_up"])
	summary := stringOr(analysis["call_summary"], "")
	transcript := stringOr(callData["transcript"], "")
	recordingURL := stringOr(callData["recording_url"], "")

	medicines := stringOr(custom["_medicines"], "")
	quantities := stringOr(custom["_quantities"], "")

	// Delivery method is inferred from the transcript; pickup is the
	// default.
	deliveryMethod := domain.DeliveryPickup
	lowered := strings.ToLower(transcript)
	if strings.Contains(lowered, "delivery") && !strings.Contains(lowered, "pickup") {
		deliveryMethod = domain.DeliveryDelivery
	}

	tx, err := h.db.Beginx()
	if err != nil {
		h.webhookError(w, "unable to start ingestion")
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO calls (phone_number, duration, call_time, follow_up, summary, transcript, recording_url)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		phone, duration, callTime.Format(time.RFC3339), followUp, summary, transcript, recordingURL)
	if err != nil {
		h.webhookError(w, "unable to store call")
		return
	}
	callID, err := res.LastInsertId()
	if err != nil {
		h.webhookError(w, "unable to store call")
		return
	}

	if medicines != "" && quantities != "" {
		names := strings.Split(medicines, ",")
		values := strings.Split(quantities, ",")
		for i, name := range names {
			quantity := "1"
			if i < len(values) {
				quantity = strings.TrimSpace(values[i])
			}
			if _, err := tx.Exec(`INSERT INTO orders (call_id, medicine_name, quantity, delivery_method, status)
                VALUES (?, ?, ?, ?, ?)`,
				callID, strings.TrimSpace(name), quantity, deliveryMethod, domain.OrderConfirmed); err != nil {
				h.webhookError(w, "unable to store orders")
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		h.webhookError(w, "unable to complete ingestion")
		return
	}

	h.log.Info().Int64("call_id", callID).Str("phone", phone).Msg("call analyzed event ingested")
	respondJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": callID})
}

// handleTestPayload accepts a bare payload without an event wrapper, used
// for manual endpoint checks.
func (h *Handler) handleTestPayload(w http.ResponseWriter, r *http.Request, data map[string]any) {
	duration := int64(0)
	if d, ok := asInt64(data["duration"]); ok {
		duration = d
	}

	res, err := h.db.Exec(`INSERT INTO calls (phone_number, duration, call_time, follow_up, summary, transcript, recording_url)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stringOr(data["from_number"], "Unknown"),
		duration,
		time.Now().UTC().Format(time.RFC3339),
		boolOr(data["Follow_up"]),
		stringOr(data["summary"], ""),
		stringOr(data["transcript"], ""),
		stringOr(data["recording_url"], ""))
	if err != nil {
		h.webhookError(w, "unable to store call")
		return
	}
	callID, err := res.LastInsertId()
	if err != nil {
		h.webhookError(w, "unable to store call")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": callID})
}

func (h *Handler) webhookError(w http.ResponseWriter, message string) {
	h.log.Warn().Str("message", message).Msg("webhook ingestion failed")
	respondJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": message})
}

// Untyped payload helpers.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func boolOr(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
