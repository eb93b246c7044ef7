package main

import (
	"context"
	"fmt"
	"os"

	"seo_article_orchestrator/config"
	"seo_article_orchestrator/generator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLLM creates the backend for one API key of the pool.
func buildLLM(ctx context.Context, cfg config.LLM, key string) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		ImageModel: cfg.ImageModel,
		APIKey:     key,
		BaseURL:    cfg.BaseURL,
	}
	switch cfg.Provider {
	case "", "gemini":
		return generator.NewGeminiLLMFromConfig(ctx, settings)
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// OpenAI-compatible endpoint, base_url is mandatory
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "mock":
		return &generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
