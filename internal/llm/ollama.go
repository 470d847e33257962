package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// Ollama implements VisionGenerator against a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama instance.
// Vision models (llava, qwen2-vl) are needed for GenerateWithImage;
// any chat model works for Generate.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llama3.1"
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		// deadlines come from the caller's context
		client: &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Generate sends a text prompt
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	return o.chat(ctx, ollamaMessage{Role: "user", Content: prompt})
}

// GenerateWithImage attaches a base64 image to the user message
func (o *Ollama) GenerateWithImage(ctx context.Context, prompt string, image []byte, _ string) (string, error) {
	return o.chat(ctx, ollamaMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
	})
}

func (o *Ollama) chat(ctx context.Context, msg ollamaMessage) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    o.model,
		Stream:   false,
		Messages: []ollamaMessage{msg},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", apperr.External("ollama", fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", apperr.External("ollama", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", apperr.External("ollama", fmt.Errorf("decoding response: %w", err))
	}

	return chatResp.Message.Content, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
