package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a scripted backend for local runs and tests; it never calls a model.
// Responses and Errors are keyed by stage; stages without a script get a canned answer.
type MockLLM struct {
	Responses map[Stage]string
	Errors    map[Stage]error
	Image     []byte
	ImageErr  error

	mu    sync.Mutex
	calls []Prompt
}

func (m *MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	m.mu.Unlock()

	if err := m.Errors[prompt.Stage]; err != nil {
		return "", err
	}
	if out, ok := m.Responses[prompt.Stage]; ok {
		return out, nil
	}
	return cannedResponse(prompt), nil
}

func (m *MockLLM) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Prompt{Stage: StageImage, User: prompt})
	m.mu.Unlock()

	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	if m.Image != nil {
		return m.Image, nil
	}
	// 1x1 transparent PNG
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89"), nil
}

// Calls returns the prompts received so far, in order.
func (m *MockLLM) Calls() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.calls...)
}

// CallsFor returns how many prompts the mock received for stage.
func (m *MockLLM) CallsFor(stage Stage) int {
	n := 0
	for _, p := range m.Calls() {
		if p.Stage == stage {
			n++
		}
	}
	return n
}

func cannedResponse(prompt Prompt) string {
	switch prompt.Stage {
	case StagePlan:
		return `{"title": "Artigo de exemplo", "meta_description": "Resumo de exemplo.", "is_pillar_page": false, ` +
			`"internal_links_strategy": [], "outline": ["H2. Introdução", "H2. Conclusão"]}`
	case StageVisualize:
		return strings.Join([]string{"capa abstrata", "consultório moderno", "caminho livre"}, " "+ImagePromptDelimiter+" ")
	case StageSuggest:
		return "Novo tema A\nNovo tema B"
	case StageVoice, StagePolish:
		if i := strings.Index(prompt.User, "<h1>"); i >= 0 {
			return prompt.User[i:]
		}
	}
	var sb strings.Builder
	sb.WriteString("<h1>Artigo de exemplo</h1>\n")
	sb.WriteString("<p>Introdução gerada localmente.</p>\n")
	sb.WriteString(PlaceholderMark + "\n")
	sb.WriteString("<h2>Desenvolvimento</h2>\n")
	sb.WriteString(fmt.Sprintf("<p>Conteúdo para a etapa %s.</p>\n", prompt.Stage))
	sb.WriteString(PlaceholderMark + "\n")
	sb.WriteString("<h2>Conclusão</h2>\n<p>Fim.</p>")
	return sb.String()
}
