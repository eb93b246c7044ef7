package generator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planJSON = `{
  "title": "A ansiedade não é o seu problema",
  "meta_description": "Entenda por que você aprendeu a ficar ansioso.",
  "is_pillar_page": true,
  "internal_links_strategy": [
    {"text": "hipnoterapia", "url": "https://example.com/hipnoterapia/", "context": "na introdução"},
    {"text": "sem url", "url": "", "context": "ignorado"}
  ],
  "outline": ["H2. O que é", "  H3. Por que acontece", ""]
}`

func TestParsePlanStrict(t *testing.T) {
	plan, err := ParsePlan(planJSON)
	require.NoError(t, err)
	assert.Equal(t, "A ansiedade não é o seu problema", plan.Title)
	assert.Equal(t, "Entenda por que você aprendeu a ficar ansioso.", plan.MetaDescription)
	assert.True(t, plan.IsPillar)
	require.Len(t, plan.LinkStrategy, 1)
	assert.Equal(t, LinkStrategy{AnchorText: "hipnoterapia", URL: "https://example.com/hipnoterapia/", Context: "na introdução"}, plan.LinkStrategy[0])
	assert.Equal(t, []string{"H2. O que é", "H3. Por que acontece"}, plan.Sections)
}

func TestParsePlanRecoversFromWrapping(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + planJSON + "\n```"},
		{"bare fence", "```\n" + planJSON + "\n```"},
		{"chatter around", "Aqui está o plano:\n" + planJSON + "\nEspero que ajude!"},
		{"array wrapper", "[" + planJSON + "]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "A ansiedade não é o seu problema", plan.Title)
			assert.True(t, plan.IsPillar)
		})
	}
}

func TestParsePlanFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "Desculpe, não consigo ajudar com isso."},
		{"truncated", `{"title": "x", "outline": [`},
		{"missing title", `{"meta_description": "x", "is_pillar_page": false}`},
		{"blank title", `{"title": "   "}`},
		{"pillar not bool", `{"title": "x", "is_pillar_page": "sim"}`},
		{"not an object", `"just a string"`},
		{"empty array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparsablePlan)

			var perr *PlanError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.raw, perr.Raw)
		})
	}
}

func TestParsePlanMissingPillarIsFalse(t *testing.T) {
	plan, err := ParsePlan(`{"title": "Título"}`)
	require.NoError(t, err)
	assert.False(t, plan.IsPillar)
	assert.Empty(t, plan.Sections)
}

func TestCleanStripsFencesAndPreamble(t *testing.T) {
	raw := "```html\nAqui está o artigo revisado:\n<h1>Título</h1>\n<p>Texto.</p>\n" + PlaceholderMark + "\n<h2>Seção</h2>\n```"
	got := Clean(raw)
	assert.Equal(t, "<h1>Título</h1>\n<p>Texto.</p>\n"+PlaceholderMark+"\n<h2>Seção</h2>", got)
}

func TestCleanPreambleBeforeFence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "html with leftover bold",
			raw:  "Aqui está o artigo revisado:\n```html\n<h1>Ansiedade tem cura?</h1>\n<p>Texto **forte**.</p>\n```",
			want: "<h1>Ansiedade tem cura?</h1>\n<p>Texto <strong>forte</strong>.</p>",
		},
		{
			name: "plain html",
			raw:  "Aqui está o artigo revisado:\n```html\n<h1>Ansiedade tem cura?</h1>\n<p>Texto.</p>\n```",
			want: "<h1>Ansiedade tem cura?</h1>\n<p>Texto.</p>",
		},
		{
			name: "markdown article",
			raw:  "Segue:\n```markdown\n# Título\n\nTexto **x**.\n```",
			want: "<h1>Título</h1>\n<p>Texto <strong>x</strong>.</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<pre>")
			assert.NotContains(t, got, "Aqui está")
		})
	}
}

func TestCleanKeepsFenceAfterHeading(t *testing.T) {
	raw := "<h1>Título</h1>\n<p>Exemplo:</p>\n```\ncódigo\n```\n<p>fim</p>"
	assert.True(t, strings.HasPrefix(Clean(raw), "<h1>Título</h1>\n<p>Exemplo:</p>\n```"))
}

func TestCleanKeepsMarkdownBeforeTrailingMark(t *testing.T) {
	got := Clean("Texto com **negrito** e mais.\n\n" + PlaceholderMark)
	assert.Contains(t, got, "<strong>negrito</strong>")
	assert.Contains(t, got, PlaceholderMark)
}

func TestCleanFallsBackToFirstSubheading(t *testing.T) {
	got := Clean("Claro! Segue:\n<h2>Seção</h2><p>a</p>")
	assert.Equal(t, "<h2>Seção</h2><p>a</p>", got)

	got = Clean("Segue o texto: <p>a</p>")
	assert.Equal(t, "<p>a</p>", got)
}

func TestCleanConvertsLeftoverMarkdown(t *testing.T) {
	raw := "# Título\n\nUm parágrafo com **negrito**.\n\n## Seção\n\n- item\n\n" + PlaceholderMark + "\n"
	got := Clean(raw)

	assert.False(t, HasMarkdown(got), got)
	assert.True(t, strings.HasPrefix(got, "<h1>Título</h1>"), got)
	assert.Contains(t, got, "<strong>negrito</strong>")
	assert.Contains(t, got, "<h2>Seção</h2>")
	assert.Contains(t, got, "<li>item</li>")
	assert.Contains(t, got, PlaceholderMark)
}

func TestCleanConvertsMarkdownInsideHTML(t *testing.T) {
	raw := "<h1>Título</h1>\n<p>Um **destaque** aqui.</p>\n## Seção solta\n<p>fim</p>"
	got := Clean(raw)
	assert.False(t, HasMarkdown(got), got)
	assert.Contains(t, got, "<strong>destaque</strong>")
	assert.Contains(t, got, "<h2>Seção solta</h2>")
}

func TestCleanKeepsIndentedHTMLOutOfCodeBlocks(t *testing.T) {
	raw := "# Título\n\n<div class=\"cta-box\">\n\n    <p>Fale **comigo**</p>\n</div>"
	got := Clean(raw)
	assert.NotContains(t, got, "<pre>")
	assert.Contains(t, got, "<strong>comigo</strong>")
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		"<h1>Título</h1>\n<p>Texto limpo.</p>",
		"```html\nPreâmbulo\n<h1>Título</h1><p>x</p>\n```",
		"# Título\n\nTexto com **negrito**.\n\n## Seção\n\n<p>html</p>",
		"Olá! <p>sem título</p>",
		"<h1>T</h1>\n<p>Um **destaque**</p>\n### Sub\n",
		"Aqui está o artigo revisado:\n```html\n<h1>Ansiedade tem cura?</h1>\n<p>Texto **forte**.</p>\n```",
		"Segue:\n```markdown\n# Título\n\nTexto **x**.\n```",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input: %q", in)
	}
}

func TestSplitImagePrompts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"delimited", "capa ||| corpo ||| final", []string{"capa", "corpo", "final"}},
		{"capped", "a|||b|||c|||d", []string{"a", "b", "c"}},
		{"empty parts dropped", "a ||| ||| b", []string{"a", "b"}},
		{"single with delimiter", "só uma |||", []string{"só uma"}},
		{"newline fallback", "1. capa\n2. corpo\n\n3. final\n4. extra", []string{"capa", "corpo", "final"}},
		{"nothing", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitImagePrompts(tt.raw))
		})
	}
}

func TestParseSuggestions(t *testing.T) {
	assert.Equal(t, []string{"Título A", "Título B"}, ParseSuggestions("Título A\nTítulo B\nTítulo C"))
	assert.Equal(t, []string{"Tema um", "Tema dois"}, ParseSuggestions("- Tema um\n\n* Tema dois\n"))
	assert.Equal(t, []string{"Tema"}, ParseSuggestions("  • Tema  "))
	assert.Empty(t, ParseSuggestions("\n \n"))
}
