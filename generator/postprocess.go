package generator

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	fenceOpenRe  = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\\n?")
	fenceCloseRe = regexp.MustCompile("\\n?```[ \t]*$")

	mdHeadingRe = regexp.MustCompile(`(?m)^[ \t]{0,3}(#{1,6})[ \t]+(.+?)[ \t#]*$`)
	mdBoldRe    = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)

	fenceLineRe = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$\n?")

	h1Re       = regexp.MustCompile(`(?i)<h1[\s>]`)
	h2Re       = regexp.MustCompile(`(?i)<h2[\s>]`)
	mdH1Re     = regexp.MustCompile(`(?m)^[ \t]{0,3}#[ \t]+\S`)
	mdH2Re     = regexp.MustCompile(`(?m)^[ \t]{0,3}##[ \t]+\S`)
	indentedRe = regexp.MustCompile(`(?m)^[ \t]+<`)

	bulletRe = regexp.MustCompile(`^(?:[-*•·–]+|\d+[.)])\s*`)
)

var markdown = goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))

// ParsePlan reads the planner output. A strict parse is tried first; if that
// fails, code fences and text around the JSON are stripped and the parse is
// retried once. Fields are never invented: a missing title is an error.
func ParsePlan(raw string) (OutlinePlan, error) {
	trimmed := strings.TrimSpace(raw)
	plan, err := parsePlanJSON(trimmed)
	if err == nil {
		return plan, nil
	}
	if cleaned := unwrapJSON(trimmed); cleaned != trimmed {
		plan, err = parsePlanJSON(cleaned)
		if err == nil {
			return plan, nil
		}
	}
	return OutlinePlan{}, &PlanError{Raw: raw, Err: err}
}

func unwrapJSON(s string) string {
	s = stripFences(s)
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func parsePlanJSON(s string) (OutlinePlan, error) {
	if s == "" {
		return OutlinePlan{}, errors.New("empty response")
	}
	if !gjson.Valid(s) {
		return OutlinePlan{}, errors.New("invalid JSON")
	}
	root := gjson.Parse(s)
	if root.IsArray() {
		items := root.Array()
		if len(items) == 0 {
			return OutlinePlan{}, errors.New("empty JSON array")
		}
		root = items[0]
	}
	if !root.IsObject() {
		return OutlinePlan{}, errors.New("expected a JSON object")
	}

	plan := OutlinePlan{
		Title:           strings.TrimSpace(root.Get("title").String()),
		MetaDescription: strings.TrimSpace(root.Get("meta_description").String()),
	}
	if plan.Title == "" {
		return OutlinePlan{}, errors.New("missing title")
	}

	pillar := root.Get("is_pillar_page")
	switch {
	case !pillar.Exists():
	case pillar.Type == gjson.True || pillar.Type == gjson.False:
		plan.IsPillar = pillar.Bool()
	default:
		return OutlinePlan{}, errors.New("is_pillar_page is not a boolean")
	}

	root.Get("internal_links_strategy").ForEach(func(_, v gjson.Result) bool {
		link := LinkStrategy{
			AnchorText: strings.TrimSpace(v.Get("text").String()),
			URL:        strings.TrimSpace(v.Get("url").String()),
			Context:    strings.TrimSpace(v.Get("context").String()),
		}
		if link.URL != "" {
			plan.LinkStrategy = append(plan.LinkStrategy, link)
		}
		return true
	})
	for _, section := range root.Get("outline").Array() {
		if text := strings.TrimSpace(section.String()); text != "" {
			plan.Sections = append(plan.Sections, text)
		}
	}
	return plan, nil
}

// Clean is the mechanical part of the polish stage: wrapping fences are
// removed, anything written before the first top-level heading is dropped, and
// only then is leftover Markdown converted to HTML. Clean(Clean(x)) == Clean(x).
func Clean(doc string) string {
	s := stripFences(strings.TrimSpace(doc))
	s = stripFences(dropPreamble(skipToFence(s)))
	if HasMarkdown(s) {
		s = dropPreamble(markdownToHTML(s))
	}
	return strings.TrimSpace(s)
}

// HasMarkdown reports whether s still contains heading hashes or bold asterisks.
func HasMarkdown(s string) bool {
	return mdHeadingRe.MatchString(s) || mdBoldRe.MatchString(s)
}

func stripFences(s string) string {
	for {
		next := strings.TrimSpace(fenceCloseRe.ReplaceAllString(fenceOpenRe.ReplaceAllString(s, ""), ""))
		if next == s {
			return s
		}
		s = next
	}
}

func markdownToHTML(s string) string {
	// Indented HTML would otherwise be rendered as a code block.
	s = indentedRe.ReplaceAllString(s, "<")

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(s), &buf); err == nil {
		s = buf.String()
	}
	// Markdown inside raw HTML blocks is passed through untouched by goldmark.
	s = mdHeadingRe.ReplaceAllStringFunc(s, func(line string) string {
		m := mdHeadingRe.FindStringSubmatch(line)
		level := string(rune('0' + len(m[1])))
		return "<h" + level + ">" + m[2] + "</h" + level + ">"
	})
	return mdBoldRe.ReplaceAllString(s, "<strong>$1</strong>")
}

// skipToFence drops a preamble that ends in an opening code fence, as in
// "Segue o artigo:\n```html\n<h1>...". A fence after the first heading is content.
func skipToFence(s string) string {
	loc := fenceLineRe.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head := s[:loc[0]]
	for _, re := range []*regexp.Regexp{h1Re, h2Re, mdHeadingRe} {
		if re.MatchString(head) {
			return s
		}
	}
	return s[loc[1]:]
}

// dropPreamble cuts everything before the first h1, else the first h2, in
// HTML or Markdown form. Without headings it cuts to the first tag, unless
// Markdown remains and the text may be the article itself.
func dropPreamble(s string) string {
	for _, level := range [][]*regexp.Regexp{{h1Re, mdH1Re}, {h2Re, mdH2Re}} {
		cut := -1
		for _, re := range level {
			if loc := re.FindStringIndex(s); loc != nil && (cut < 0 || loc[0] < cut) {
				cut = loc[0]
			}
		}
		if cut >= 0 {
			return s[cut:]
		}
	}
	if HasMarkdown(s) {
		return s
	}
	if i := strings.Index(s, "<"); i > 0 {
		return s[i:]
	}
	return s
}

// SplitImagePrompts splits the visual-stage output on ImagePromptDelimiter,
// falling back to one prompt per line when the delimiter is missing.
func SplitImagePrompts(raw string) []string {
	var parts []string
	if strings.Contains(raw, ImagePromptDelimiter) {
		parts = splitClean(raw, ImagePromptDelimiter)
	} else {
		parts = splitClean(raw, "\n")
	}
	if len(parts) > MaxImagePrompts {
		parts = parts[:MaxImagePrompts]
	}
	return parts
}

// ParseSuggestions returns at most MaxSuggestions topics, one per non-empty line.
func ParseSuggestions(raw string) []string {
	topics := splitClean(raw, "\n")
	if len(topics) > MaxSuggestions {
		topics = topics[:MaxSuggestions]
	}
	return topics
}

func splitClean(raw, sep string) []string {
	var out []string
	for _, p := range strings.Split(raw, sep) {
		p = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(p), ""))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
