package ai

import (
	"context"
	"fmt"
	"strings"

	"CineIndexBot/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxCatalogLines caps how much of the catalog goes into one prompt
const maxCatalogLines = 300

type GeminiAI struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiAI(ctx context.Context, apiKey string) (*GeminiAI, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-pro")

	return &GeminiAI{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiAI) Close() {
	g.client.Close()
}

// AnswerQuestion answers a user's question about what the catalog holds.
func (g *GeminiAI) AnswerQuestion(ctx context.Context, question string, catalog []models.IndexEntry) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(question, catalog)))
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", fmt.Errorf("no text in response")
	}
	return answer, nil
}

// BuildPrompt lists the catalog titles and asks the model to answer from them only.
func BuildPrompt(question string, catalog []models.IndexEntry) string {
	var b strings.Builder
	b.WriteString("You are the assistant of a movie channel. These titles are available (title | language code):\n\n")
	for i, e := range catalog {
		if i == maxCatalogLines {
			fmt.Fprintf(&b, "... and %d more\n", len(catalog)-maxCatalogLines)
			break
		}
		fmt.Fprintf(&b, "%s | %s\n", e.Title, e.Lang)
	}
	b.WriteString("\nQuestion: " + question + "\n\n")
	b.WriteString("Answer briefly using only the titles above. Tell the user to send the exact title to receive it. " +
		"If nothing fits, say so.")
	return b.String()
}
