package tearsheet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const commentaryInstruction = `You are an equity analyst covering the Vietnamese stock market.
You receive a portfolio performance report in markdown.
Write two short paragraphs for the portfolio owner: what drove performance and
which risks stand out (drawdowns, concentration, volatility). Quote numbers from
the report only. No investment advice, no headings.`

// GeminiCommentator asks a Gemini model to comment on a report.
type GeminiCommentator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiCommentator(ctx context.Context, apiKey, model string) (*GeminiCommentator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiCommentator{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: commentaryInstruction}}},
		},
	}, nil
}

func (g *GeminiCommentator) Comment(ctx context.Context, report string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(report), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
