package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoAPIKey short-circuits every call before any network traffic when the
// key was never configured.
var ErrNoAPIKey = errors.New("vision model api key is not configured")

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"

	geminiTimeout = 2 * time.Minute
)

// VisionModel is the hosted model contract: prompt (+ optional image) in,
// free text expected to contain exactly one JSON object out.
type VisionModel interface {
	PurchaseFromImage(ctx context.Context, image []byte) (string, error)
	PurchaseFromText(ctx context.Context, text string) (string, error)
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewGeminiClient(apiKey, model string, log zerolog.Logger) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultGeminiBaseURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *GeminiClient) WithBaseURL(u string) *GeminiClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

const receiptPrompt = `Analyze the following store receipt. Extract the information below and return it as a single JSON object.
The JSON object must NOT be wrapped in markdown formatting such as ` + "```json" + ` fences.

Structure of the JSON object:
{
  "purchaseDate": "YYYY-MM-DD",
  "store": "name of the store",
  "storeType": "classify the store; possible values: supermarket, gas station, clothing store, hardware store, unknown",
  "totalPrice": 123.45,
  "positions": [
    {
      "itemName": "name of the item",
      "itemType": "category of the item (e.g. groceries, clothing, fuel, electronics)",
      "quantity": 1.0,
      "unit": "the unit (e.g. piece, kg, liter, g)",
      "unitPrice": 1.23,
      "price": 1.23
    }
  ]
}

Important notes:
- Return only the JSON object as a string.
- Merge items that belong together but appear on separate receipt lines (e.g. name and price in different lines) into a single position.
- Ignore irrelevant information such as discounts, taxes or loyalty points unless they are included in the total.
- The totalPrice in the top-level object must be the sum of all price values in positions.`

const speechPrompt = `The following text is a spoken description of a purchase. Extract the information and return it as a single JSON object with the structure below.
The JSON object must NOT be wrapped in markdown formatting such as ` + "```json" + ` fences.

{
  "purchaseDate": "YYYY-MM-DD",
  "store": "name of the store",
  "storeType": "classify the store; possible values: supermarket, gas station, clothing store, hardware store, unknown",
  "totalPrice": 123.45,
  "positions": [
    {
      "itemName": "name of the item",
      "itemType": "category of the item (e.g. groceries, clothing, fuel, electronics)",
      "quantity": 1.0,
      "unit": "the unit (e.g. piece, kg, liter, g)",
      "unitPrice": 1.23,
      "price": 1.23
    }
  ]
}

If the date is not mentioned, leave purchaseDate empty. Return only the JSON object.

Spoken text:
`

func (c *GeminiClient) PurchaseFromImage(ctx context.Context, image []byte) (string, error) {
	parts := []part{
		{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(image)}},
		{Text: receiptPrompt},
	}
	return c.generate(ctx, parts)
}

func (c *GeminiClient) PurchaseFromText(ctx context.Context, text string) (string, error) {
	return c.generate(ctx, []part{{Text: speechPrompt + text}})
}

func (c *GeminiClient) generate(ctx context.Context, parts []part) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(generateRequest{Contents: []requestContent{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("vision model request failed")
		return "", fmt.Errorf("vision model unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("vision model error response")
		return "", fmt.Errorf("vision model error: %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode vision model response: %w", err)
	}
	text := decoded.firstText()
	if text == "" {
		return "", errors.New("vision model returned no content")
	}
	return text, nil
}

// StripFences removes stray markdown code fences the model sometimes wraps
// around its JSON despite being told not to.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) firstText() string {
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
