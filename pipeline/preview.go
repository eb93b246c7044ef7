package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"seo_article_orchestrator/config"
	"seo_article_orchestrator/generator"
	"seo_article_orchestrator/knowledge"
)

// Preview holds every text stage of one keyword, for inspection without publishing.
type Preview struct {
	Keyword      string                `json:"keyword"`
	Plan         generator.OutlinePlan `json:"plan"`
	Draft        string                `json:"-"`
	Voice        string                `json:"-"`
	Final        string                `json:"-"`
	ImagePrompts []string              `json:"image_prompts"`
}

// Preview runs plan, draft, voice, polish and visualize for keyword with the
// tenant's knowledge base. Nothing is uploaded and the worksheet is not read.
func (r *Runner) Preview(ctx context.Context, t config.Tenant, keyword string) (*Preview, error) {
	log := r.logger.With(zap.String("tenant", t.CompanyID), zap.String("keyword", keyword))
	dir := t.KnowledgeDir(r.opts.CompaniesDir)
	filters := t.KnowledgeFilters
	if len(filters) == 0 {
		filters = knowledge.DefaultFilters
	}

	var err error
	brief := generator.Brief{Keyword: keyword, Persona: t.PersonaPrompt, CTAHTML: t.CTAHTML}
	if brief.Knowledge, err = knowledge.Load(dir, filters); err != nil {
		return nil, err
	}
	if brief.VoiceGuide, err = knowledge.LoadVoiceGuide(dir); err != nil {
		return nil, err
	}

	p := &Preview{Keyword: keyword}
	if err := r.stage(ctx, log, generator.StagePlan, func(ctx context.Context) (err error) {
		p.Plan, err = r.agent.Plan(ctx, brief)
		return err
	}); err != nil {
		return nil, &StageError{Stage: generator.StagePlan, Err: err}
	}
	if err := r.stage(ctx, log, generator.StageDraft, func(ctx context.Context) (err error) {
		p.Draft, err = r.agent.Draft(ctx, brief, p.Plan)
		return err
	}); err != nil {
		return nil, &StageError{Stage: generator.StageDraft, Err: err}
	}
	p.Voice = p.Draft
	if err := r.stage(ctx, log, generator.StageVoice, func(ctx context.Context) error {
		out, err := r.agent.VoiceAdjust(ctx, brief, p.Draft)
		if err == nil {
			p.Voice = out
		}
		return err
	}); err != nil {
		log.Warn("voice adjustment skipped, keeping draft")
	}
	if err := r.stage(ctx, log, generator.StagePolish, func(ctx context.Context) (err error) {
		p.Final, err = r.agent.Polish(ctx, brief, p.Voice)
		return err
	}); err != nil {
		return nil, &StageError{Stage: generator.StagePolish, Err: err}
	}
	if err := r.stage(ctx, log, generator.StageVisualize, func(ctx context.Context) (err error) {
		p.ImagePrompts, err = r.agent.Visualize(ctx, p.Final)
		return err
	}); err != nil {
		log.Warn("no image prompts")
	}
	return p, nil
}

// WriteTo stores the outline as JSON and each stage as HTML under dir.
func (p *Preview) WriteTo(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	outline, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	slug := Slug(p.Keyword)
	files := []struct {
		name string
		data []byte
	}{
		{slug + "_outline.json", outline},
		{slug + "_1_draft.html", []byte(p.Draft)},
		{slug + "_2_voice.html", []byte(p.Voice)},
		{slug + "_3_final.html", []byte(p.Final)},
	}
	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
