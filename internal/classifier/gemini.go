package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"fintrack/internal/catalog"
	"fintrack/internal/core"
)

const (
	// DefaultModelName is the Gemini model used for classification.
	DefaultModelName = "gemini-2.0-flash"

	// DefaultTimeout bounds a single prediction round-trip.
	DefaultTimeout = 10 * time.Second
)

// Gemini predicts categories by asking a Gemini model for a strict-JSON
// verdict over the transaction's payee text and the allowed category set.
type Gemini struct {
	client  *genai.Client
	catalog catalog.Source
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini-backed classifier. API credentials come from
// the environment, as the genai client resolves them.
func NewGemini(ctx context.Context, src catalog.Source, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gemini{client: client, catalog: src, model: model, timeout: timeout}, nil
}

// Suggest implements Suggester.
func (g *Gemini) Suggest(ctx context.Context, tx core.Transaction) (core.CategorySuggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	categories, err := g.catalog.List(ctx)
	if err != nil {
		return core.CategorySuggestion{}, fmt.Errorf("%w: loading category set: %v", ErrModelUnavailable, err)
	}

	prompt, err := buildPrompt(tx, categories)
	if err != nil {
		return core.CategorySuggestion{}, err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return core.CategorySuggestion{}, fmt.Errorf("%w after %v", ErrTimeout, g.timeout)
		}
		return core.CategorySuggestion{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return core.CategorySuggestion{}, fmt.Errorf("%w: empty response from model", ErrPredictionFailed)
	}

	return parseSuggestion(rawText, categories)
}

// parseSuggestion turns the model's raw text into a validated suggestion.
// Legacy "Error: *" category strings from the upstream service are mapped
// to typed failures here and never escape as category values.
func parseSuggestion(raw string, categories []string) (core.CategorySuggestion, error) {
	clean := cleanModelJSON(raw)

	var out struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return core.CategorySuggestion{}, fmt.Errorf("%w: unmarshal model output: %v", ErrPredictionFailed, err)
	}

	if failure, ok := sentinelFailure(out.Category); ok {
		return core.CategorySuggestion{}, failure
	}

	valid := false
	for _, c := range categories {
		if c == out.Category {
			valid = true
			break
		}
	}
	if !valid {
		return core.CategorySuggestion{}, fmt.Errorf("%w: model returned unknown category %q", ErrPredictionFailed, out.Category)
	}

	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	return core.CategorySuggestion{Category: out.Category, Confidence: out.Confidence}, nil
}

// sentinelFailure recognizes "Error: *" strings the legacy prediction
// service used to signal failures inside the category field.
func sentinelFailure(category string) (error, bool) {
	if !strings.HasPrefix(category, "Error:") {
		return nil, false
	}
	reason := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(category, "Error:")))
	switch {
	case strings.Contains(reason, "unavailable"), strings.Contains(reason, "not loaded"):
		return fmt.Errorf("%w: upstream reported %q", ErrModelUnavailable, category), true
	case strings.Contains(reason, "preprocess"):
		return fmt.Errorf("%w: upstream reported %q", ErrPreprocessingFailed, category), true
	case strings.Contains(reason, "not found"):
		return fmt.Errorf("%w: upstream reported %q", ErrTransactionNotFound, category), true
	case strings.Contains(reason, "timeout"), strings.Contains(reason, "timed out"):
		return fmt.Errorf("%w: upstream reported %q", ErrTimeout, category), true
	default:
		return fmt.Errorf("%w: upstream reported %q", ErrPredictionFailed, category), true
	}
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the strict-output instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if junk remains.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
