package generator

import "context"

// LLMClient abstracts the generation backend so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	// GenerateImage returns raw image bytes (PNG unless the backend says otherwise).
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// LLMSettings is the per-credential configuration handed to a concrete backend.
type LLMSettings struct {
	Provider   string
	Model      string
	ImageModel string
	APIKey     string
	BaseURL    string
}
