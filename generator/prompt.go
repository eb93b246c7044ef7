package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlaceholderMark is the sentinel the editor is asked to leave where images go.
const PlaceholderMark = "<!-- IMG_PLACEHOLDER -->"

// ImagePromptDelimiter separates image prompts in one visual-stage response.
const ImagePromptDelimiter = "|||"

// Maximum sizes of the list-shaped stage outputs.
const (
	MaxImagePrompts = 3
	MaxSuggestions  = 2
)

// imageContextLimit bounds how much of the article the visual stage sees.
const imageContextLimit = 2000

// Prompt is one request to the LLM.
type Prompt struct {
	Stage  Stage
	System string
	User   string
}

func writeKnowledge(sb *strings.Builder, knowledge string) {
	if strings.TrimSpace(knowledge) == "" {
		return
	}
	sb.WriteString("\nBASE DE CONHECIMENTO DA EMPRESA (use como referência principal):\n")
	sb.WriteString(knowledge)
	sb.WriteString("\n")
}

func systemFor(persona string, fallback string) string {
	if strings.TrimSpace(persona) != "" {
		return persona
	}
	return fallback
}

// BuildPlanPrompt asks for the outline as a single JSON object.
func BuildPlanPrompt(b Brief) Prompt {
	var sb strings.Builder
	sb.WriteString("Planeje um artigo de blog otimizado para SEO.\n")
	sb.WriteString(fmt.Sprintf("PALAVRA-CHAVE ALVO: '%s'\n", b.Keyword))
	sb.WriteString("INVENTÁRIO DE LINKS INTERNOS:\n")
	if len(b.Inventory) == 0 {
		sb.WriteString("- (nenhum artigo publicado ainda)\n")
	}
	for _, l := range b.Inventory {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", l.Keyword, l.URL))
	}
	writeKnowledge(&sb, b.Knowledge)
	sb.WriteString(`
Decida se é um artigo pilar (2000+ palavras) ou padrão (1000+ palavras).
SAÍDA ESPERADA (JSON):
{
  "title": "Título",
  "meta_description": "Texto para o Google (até 160 caracteres)",
  "is_pillar_page": true,
  "internal_links_strategy": [{"text": "texto âncora", "url": "url", "context": "contexto"}],
  "outline": ["H2. Tópico", "  H3. Subtópico"]
}
Retorne APENAS o JSON.`)

	return Prompt{
		Stage:  StagePlan,
		System: systemFor(b.Persona, "Você é um estrategista de conteúdo SEO."),
		User:   sb.String(),
	}
}

// BuildDraftPrompt turns the outline into article HTML.
func BuildDraftPrompt(b Brief, plan OutlinePlan) Prompt {
	outline, _ := json.MarshalIndent(plan, "", "  ")

	var sb strings.Builder
	sb.WriteString("Escreva o artigo completo seguindo o outline abaixo.\n")
	sb.WriteString("OUTLINE DO ARTIGO:\n")
	sb.Write(outline)
	sb.WriteString("\n")
	writeKnowledge(&sb, b.Knowledge)
	sb.WriteString("\nFORMATO:\n")
	sb.WriteString("- Use HTML (h1, h2, h3, p, ul, b). Nada de Markdown.\n")
	sb.WriteString("- Comece pelo <h1> com o título.\n")
	sb.WriteString("- Insira os links internos do outline no contexto indicado.\n")
	if b.CTAHTML != "" {
		sb.WriteString("- Termine EXATAMENTE com este HTML de chamada para ação:\n")
		sb.WriteString(b.CTAHTML)
		sb.WriteString("\n")
	}

	return Prompt{
		Stage:  StageDraft,
		System: systemFor(b.Persona, "Você é um redator sênior."),
		User:   sb.String(),
	}
}

// BuildVoicePrompt asks for tone-level edits only.
func BuildVoicePrompt(b Brief, html string) Prompt {
	var sb strings.Builder
	sb.WriteString("Reescreva o tom do artigo abaixo para soar como o autor descrito no guia de voz.\n")
	sb.WriteString("REGRAS:\n")
	sb.WriteString("- Mantenha o tamanho do texto.\n")
	sb.WriteString("- Preserve todas as tags de título (h1, h2, h3).\n")
	sb.WriteString(fmt.Sprintf("- Preserve todos os marcadores %s.\n", PlaceholderMark))
	if b.CTAHTML != "" {
		sb.WriteString("- Preserve o bloco de chamada para ação sem alterações.\n")
	}
	sb.WriteString("- Devolva apenas o HTML.\n")
	if strings.TrimSpace(b.VoiceGuide) != "" {
		sb.WriteString("\nGUIA DE VOZ:\n")
		sb.WriteString(b.VoiceGuide)
		sb.WriteString("\n")
	}
	sb.WriteString("\nARTIGO:\n")
	sb.WriteString(html)

	return Prompt{
		Stage:  StageVoice,
		System: systemFor(b.Persona, "Você é um editor de estilo."),
		User:   sb.String(),
	}
}

// BuildPolishPrompt asks the editor for clean HTML with image placeholders.
func BuildPolishPrompt(b Brief, html string) Prompt {
	var sb strings.Builder
	sb.WriteString("Você é o editor final. Garanta que o artigo esteja em HTML limpo.\n")
	sb.WriteString("TAREFAS:\n")
	sb.WriteString("1. Remova qualquer comentário seu (ex: \"Aqui está o artigo\"). Apenas o HTML do conteúdo.\n")
	sb.WriteString(fmt.Sprintf("2. Insira os marcadores %s (mínimo 2, máximo 3): um após a introdução e um antes da conclusão.\n", PlaceholderMark))
	if b.CTAHTML != "" {
		sb.WriteString("3. Garanta que o bloco de chamada para ação está no final.\n")
	}
	sb.WriteString("\nINPUT:\n")
	sb.WriteString(html)

	return Prompt{
		Stage:  StagePolish,
		System: "Responda apenas com HTML.",
		User:   sb.String(),
	}
}

// BuildVisualPrompt asks for up to three image prompts separated by ImagePromptDelimiter.
func BuildVisualPrompt(html string) Prompt {
	article := truncateRunes(html, imageContextLimit)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Gere %d prompts de imagem para ilustrar este artigo.\n", MaxImagePrompts))
	sb.WriteString("- Evite clichês; prefira metáforas visuais.\n")
	sb.WriteString("- Sem texto dentro das imagens.\n")
	sb.WriteString("\nARTIGO:\n")
	sb.WriteString(article)
	sb.WriteString(fmt.Sprintf("\n\nSAÍDA (separada por %s):\n", ImagePromptDelimiter))
	sb.WriteString(fmt.Sprintf("Prompt 1 (Capa) %s Prompt 2 (Corpo) %s Prompt 3 (Final)", ImagePromptDelimiter, ImagePromptDelimiter))

	return Prompt{
		Stage:  StageVisualize,
		System: "Você é um diretor de arte.",
		User:   sb.String(),
	}
}

// BuildSuggestPrompt asks for follow-up topics, one per line.
func BuildSuggestPrompt(b Brief, title, html string) Prompt {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Com base no artigo '%s', sugira %d novos temas relacionados.\n", title, MaxSuggestions))
	sb.WriteString("Não repita a palavra-chave '" + b.Keyword + "'.\n")
	sb.WriteString("Retorne apenas os títulos, um por linha.\n")
	sb.WriteString("\nARTIGO:\n")
	sb.WriteString(truncateRunes(html, imageContextLimit))

	return Prompt{
		Stage:  StageSuggest,
		System: systemFor(b.Persona, "Você é um especialista em crescimento orgânico."),
		User:   sb.String(),
	}
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
