package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey is reported when the renderer is constructed without an API
// key. The generator treats it like any other rendering failure.
var ErrNoAPIKey = errors.New("text generation api key not configured")

const systemPrompt = "You are a professional invoice generator for a pharmacy."

const promptTemplate = `Generate a professional looking invoice for a pharmacy in text format (no HTML).
Use the following information to generate the invoice:

%s

The format should include:
1. Company header (Curestock Pharmacy)
2. Invoice details (number, date)
3. Customer information
4. Line items with quantity, unit price, and amount
5. Subtotal
6. GST (tax)
7. Total amount
8. Payment and delivery information
9. Thank you message

Make it look well-formatted and professional using only plain text with proper spacing and alignment.`

// OpenAIRenderer renders invoices through the chat completions API. Every
// call carries the client timeout so a stalled upstream cannot hang a
// request.
type OpenAIRenderer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAIRenderer(apiKey, model, baseURL string, timeout time.Duration) *OpenAIRenderer {
	return &OpenAIRenderer{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *OpenAIRenderer) Render(ctx context.Context, bc BillContext) (string, error) {
	if r.apiKey == "" {
		return "", ErrNoAPIKey
	}

	contextJSON, err := json.MarshalIndent(bc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode bill context: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, contextJSON)},
		},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion api returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("completion response contained no content")
	}
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
