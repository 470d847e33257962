package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// Gemini implements VisionGenerator using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a Gemini client for the given model
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Generate sends a text prompt
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, genai.Text(prompt))
}

// GenerateWithImage sends an image followed by the prompt
func (g *Gemini) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	// genai.ImageData expects just the format suffix (e.g., "png"), not the full MIME type
	format := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	return g.generate(ctx, genai.ImageData(format, image), genai.Text(prompt))
}

func (g *Gemini) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", apperr.External("gemini", fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperr.External("gemini", errors.New("no response from gemini"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
