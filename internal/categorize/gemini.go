package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"smartledger/internal/core"
)

// Gemini asks a Gemini model for a category through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiOption adjusts the client configuration before it is built.
type GeminiOption func(*genai.ClientConfig)

// WithEndpoint sends requests to baseURL using hc instead of the public API.
func WithEndpoint(baseURL string, hc *http.Client) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = baseURL
		if hc != nil {
			cc.HTTPClient = hc
		}
	}
}

// NewGemini builds a client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing API key")
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// categorySchema constrains the reply to {"category": "<name>"}.
var categorySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category": {Type: genai.TypeString},
	},
	Required: []string{"category"},
}

func (g *Gemini) Categorize(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction(req.Kind), genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    categorySchema,
		})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return parseCategory(resp.Text())
}

func prompt(req Request) string {
	return fmt.Sprintf("Categorize this transaction: %q ($%s). Return JSON: { \"category\": \"Name\" }",
		req.Description, req.Amount.String())
}

func systemInstruction(k core.Kind) string {
	var guidance string
	if k == core.KindIncome {
		guidance = "Categories: " + strings.Join(core.Categories(k), ", ") + `.
- Salary: Payroll, ADP, Workday.
- Investment: Dividends, interest, crypto.
- Gift: Venmo/Zelle transfers from friends.`
	} else {
		guidance = "Categories: " + strings.Join(core.Categories(k), ", ") + `.
- Food & Drink: Restaurants, coffee (Starbucks), bars, UberEats.
- Groceries: Supermarkets (Whole Foods, Kroger, Trader Joe's).
- Transport: Gas (Shell), Uber (rides), parking, public transit.
- Shopping: Amazon, Target, Clothing, Electronics.
- Housing: Rent, mortgage, repairs.
- Utilities: Internet, phone, electricity, subscriptions (Netflix).`
	}
	return "You are a financial assistant.\nDefinitions: " + guidance + "\nReturn ONLY raw JSON."
}

// cleanJSON strips Markdown code fences the model sometimes wraps around JSON.
func cleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseCategory(text string) (string, error) {
	text = cleanJSON(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	var out struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return "", fmt.Errorf("gemini: decode reply: %w", err)
	}
	return out.Category, nil
}
