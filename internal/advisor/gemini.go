package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModelName = "gemini-2.0-flash"
	DefaultTimeout   = 10 * time.Second

	maxTipLength = 400
)

// Gemini generates expenditure tips with a Gemini model.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini-backed tip generator. API credentials come
// from the environment, as the genai client resolves them.
func NewGemini(ctx context.Context, model string, timeout time.Duration) (*Gemini, error) {
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
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

// Tip implements TipGenerator.
func (g *Gemini) Tip(ctx context.Context, req TipRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildTipPrompt(req)}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %v", ErrTimeout, g.timeout)
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	tip := strings.TrimSpace(resp.Text())
	if tip == "" {
		return "", fmt.Errorf("%w: empty response from model", ErrGenerationFailed)
	}
	if len(tip) > maxTipLength {
		tip = tip[:maxTipLength]
	}
	return tip, nil
}

func buildTipPrompt(req TipRequest) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Write ONE short, practical tip ")
	b.WriteString("(max two sentences, plain text, no Markdown) about the user's projected spending.\n\n")

	scope := "overall spending"
	if req.Category != "" {
		scope = fmt.Sprintf("spending on %q", req.Category)
	}
	fmt.Fprintf(&b, "Projection scope: %s, per %s period, as of %s.\n", scope, req.Period, req.AsOf.Format("2006-01-02"))

	b.WriteString("Projected amounts for the upcoming periods: ")
	for i, m := range req.Forecast {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.2f", m.Units())
	}
	b.WriteString("\n")

	return b.String()
}
