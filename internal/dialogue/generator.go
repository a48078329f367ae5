// Package dialogue produces ordered host/text turns for a topic from an
// opaque text-generation backend.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"tickertalk/internal/domain"
)

// TextGenerator is the opaque text-generation service. Output is stochastic
// and not guaranteed deterministic across calls.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []string, instruction string) (string, error)
}

// GeminiGenerator generates dialogue lines with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate asks the model for the next dialogue line given the prior turns.
func (g *GeminiGenerator) Generate(ctx context.Context, systemPrompt string, history []string, instruction string) (string, error) {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, line := range history {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(instruction)

	contents := []*genai.Content{
		genai.NewContentFromText(sb.String(), genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.9),
		MaxOutputTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("generate dialogue: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("generate dialogue: empty response")
	}

	return text, nil
}

// CannedGenerator cycles deterministic persona lines. Used when no API key
// is configured and in tests.
type CannedGenerator struct{}

// Generate returns the next canned line for the host named in instruction.
func (CannedGenerator) Generate(_ context.Context, _ string, history []string, instruction string) (string, error) {
	host := domain.HostMax
	if strings.Contains(instruction, domain.HostBen.Name()) {
		host = domain.HostBen
	}

	lines := fallbackLines[host]
	return lines[len(history)/2%len(lines)], nil
}

// cleanLine strips a leading speaker prefix the model sometimes echoes back.
func cleanLine(text string, host domain.Host) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{
		host.Name() + ":",
		strings.ToUpper(shortName(host)) + ":",
		shortName(host) + ":",
	} {
		if strings.HasPrefix(text, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return text
}

func shortName(h domain.Host) string {
	if h == domain.HostMax {
		return "Max"
	}
	return "Ben"
}
