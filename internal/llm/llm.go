// Package llm wraps the generative-text services used for structured
// extraction, receipt questions and image transcription.
package llm

import "context"

// Generator turns a prompt into a text completion
type Generator interface {
	// Generate sends the prompt and returns the model's text as written
	Generate(ctx context.Context, prompt string) (string, error)
	// Close releases any client resources
	Close() error
}

// VisionGenerator is a Generator that also accepts one image alongside the prompt
type VisionGenerator interface {
	Generator
	// GenerateWithImage sends a PNG, JPEG or WEBP image together with the prompt
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}
