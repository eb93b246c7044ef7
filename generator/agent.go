package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Executor runs an operation against an LLM backend. credentials.Client
// implements it with key rotation.
type Executor interface {
	Execute(ctx context.Context, op func(ctx context.Context, llm LLMClient) error) error
}

// Direct runs every operation on one backend, without rotation.
type Direct struct{ LLM LLMClient }

func (d Direct) Execute(ctx context.Context, op func(ctx context.Context, llm LLMClient) error) error {
	return op(ctx, d.LLM)
}

// Agent exposes one method per generation stage. Every call goes through the executor.
type Agent struct {
	exec Executor
}

func NewAgent(exec Executor) (*Agent, error) {
	if exec == nil {
		return nil, errors.New("llm executor is required")
	}
	return &Agent{exec: exec}, nil
}

func (a *Agent) complete(ctx context.Context, prompt Prompt) (string, error) {
	var out string
	err := a.exec.Execute(ctx, func(ctx context.Context, llm LLMClient) error {
		raw, err := llm.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", prompt.Stage, err)
	}
	return out, nil
}

// Plan produces the outline. An unparsable answer fails with ErrUnparsablePlan.
func (a *Agent) Plan(ctx context.Context, b Brief) (OutlinePlan, error) {
	raw, err := a.complete(ctx, BuildPlanPrompt(b))
	if err != nil {
		return OutlinePlan{}, err
	}
	return ParsePlan(raw)
}

// Draft writes the article body as HTML.
func (a *Agent) Draft(ctx context.Context, b Brief, plan OutlinePlan) (string, error) {
	raw, err := a.complete(ctx, BuildDraftPrompt(b, plan))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("draft stage: model returned empty article")
	}
	return raw, nil
}

// VoiceAdjust rewrites tone only. Callers treat its failure as non-fatal.
func (a *Agent) VoiceAdjust(ctx context.Context, b Brief, html string) (string, error) {
	raw, err := a.complete(ctx, BuildVoicePrompt(b, html))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("voice stage: model returned empty article")
	}
	return raw, nil
}

// Polish runs the editor and then Clean on its answer.
func (a *Agent) Polish(ctx context.Context, b Brief, html string) (string, error) {
	raw, err := a.complete(ctx, BuildPolishPrompt(b, html))
	if err != nil {
		return "", err
	}
	cleaned := Clean(raw)
	if cleaned == "" {
		return "", errors.New("polish stage: nothing left after clean-up")
	}
	return cleaned, nil
}

// Visualize returns between one and MaxImagePrompts image prompts.
func (a *Agent) Visualize(ctx context.Context, html string) ([]string, error) {
	raw, err := a.complete(ctx, BuildVisualPrompt(html))
	if err != nil {
		return nil, err
	}
	prompts := SplitImagePrompts(raw)
	if len(prompts) == 0 {
		return nil, errors.New("visualize stage: no image prompts")
	}
	return prompts, nil
}

// Image renders one prompt into image bytes.
func (a *Agent) Image(ctx context.Context, prompt string) ([]byte, error) {
	var out []byte
	err := a.exec.Execute(ctx, func(ctx context.Context, llm LLMClient) error {
		data, err := llm.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", StageImage, err)
	}
	return out, nil
}

// Suggest proposes at most MaxSuggestions follow-up keywords from the published article.
func (a *Agent) Suggest(ctx context.Context, b Brief, title, html string) ([]string, error) {
	raw, err := a.complete(ctx, BuildSuggestPrompt(b, title, html))
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(raw), nil
}
