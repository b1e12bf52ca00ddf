package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzak-27/curestock-app/domain"
)

func TestOpenAIRendererSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  RENDERED INVOICE  "}},
			},
		})
	}))
	defer server.Close()

	renderer := NewOpenAIRenderer("sk-test", "gpt-3.5-turbo", server.URL, time.Second)
	content, err := renderer.Render(context.Background(), sampleContext())
	require.NoError(t, err)

	assert.Equal(t, "RENDERED INVOICE", content)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-3.5-turbo", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[1].Content, "INV-20250605-1234")
}

func TestOpenAIRendererUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	renderer := NewOpenAIRenderer("sk-test", "gpt-3.5-turbo", server.URL, time.Second)
	_, err := renderer.Render(context.Background(), sampleContext())
	assert.Error(t, err)
}

func TestOpenAIRendererEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	renderer := NewOpenAIRenderer("sk-test", "gpt-3.5-turbo", server.URL, time.Second)
	_, err := renderer.Render(context.Background(), sampleContext())
	assert.Error(t, err)
}

func TestOpenAIRendererMissingKey(t *testing.T) {
	renderer := NewOpenAIRenderer("", "gpt-3.5-turbo", "https://api.openai.com/v1", time.Second)
	_, err := renderer.Render(context.Background(), sampleContext())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGenerateUsesRendererContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "CUSTOM INVOICE TEXT"}},
			},
		})
	}))
	defer server.Close()

	db := newTestDB(t)
	insertMedicine(t, db, "Paracetamol 500mg", "GSK", "15.50", 100)
	call := insertCall(t, db, "+919876543210")
	order := insertOrder(t, db, call.ID, "Paracetamol 500mg", "2 tablets", domain.DeliveryPickup)

	renderer := NewOpenAIRenderer("sk-test", "gpt-3.5-turbo", server.URL, time.Second)
	gen := NewGenerator(db, renderer, zerolog.Nop())

	bill, created, err := gen.Generate(context.Background(), call, []domain.Order{order})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "CUSTOM INVOICE TEXT", bill.Content)
}

func TestGenerateFallsBackOnRendererFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	db := newTestDB(t)
	insertMedicine(t, db, "Paracetamol 500mg", "GSK", "15.50", 100)
	call := insertCall(t, db, "+919876543210")
	order := insertOrder(t, db, call.ID, "Paracetamol 500mg", "2 tablets", domain.DeliveryPickup)

	renderer := NewOpenAIRenderer("sk-test", "gpt-3.5-turbo", server.URL, time.Second)
	gen := NewGenerator(db, renderer, zerolog.Nop())

	bill, created, err := gen.Generate(context.Background(), call, []domain.Order{order})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, bill.Content, "CURESTOCK PHARMACY")
	assert.True(t, bill.TotalAmount.Equal(decimal.RequireFromString("36.58")),
		"total = %s", bill.TotalAmount)
}
