package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"seo_article_orchestrator/config"
	"seo_article_orchestrator/document"
	"seo_article_orchestrator/generator"
	"seo_article_orchestrator/lease"
	"seo_article_orchestrator/publisher"
	"seo_article_orchestrator/queue"
)

const (
	metaDescriptionLimit = 155
	slugLimit            = 30
)

// processTask runs one keyword end to end. Failures before publication release
// the lease and leave the row pending for the next run.
func (r *Runner) processTask(ctx context.Context, t config.Tenant, env *TenantEnv, base generator.Brief, task queue.KeywordTask) (TaskResult, error) {
	log := r.logger.With(
		zap.String("tenant", t.CompanyID),
		zap.String("keyword", task.Keyword),
		zap.Int("row", task.Row))

	key := lease.Key(t.CompanyID, task.Row, task.Keyword)
	if err := r.claimer.Claim(ctx, key); err != nil {
		if errors.Is(err, lease.ErrHeld) {
			log.Info("task claimed by another run, skipping")
		} else {
			log.Error("claim failed", zap.Error(err))
		}
		return TaskResult{}, err
	}

	res, published, err := r.runStages(ctx, log, t, env, base, task)
	if err != nil && !published {
		// release with a fresh context so a cancelled run still frees the row
		if rerr := r.claimer.Release(context.WithoutCancel(ctx), key); rerr != nil {
			log.Warn("lease release failed", zap.Error(rerr))
		}
	}
	if err != nil {
		log.Error("task failed", zap.Error(err))
		return res, err
	}
	log.Info("task published", zap.String("url", res.URL), zap.Int("post_id", res.PostID))
	return res, nil
}

func (r *Runner) runStages(ctx context.Context, log *zap.Logger, t config.Tenant, env *TenantEnv, base generator.Brief, task queue.KeywordTask) (TaskResult, bool, error) {
	res := TaskResult{Row: task.Row, Keyword: task.Keyword}
	brief := base
	brief.Keyword = task.Keyword

	var plan generator.OutlinePlan
	if err := r.stage(ctx, log, generator.StagePlan, func(ctx context.Context) (err error) {
		plan, err = r.agent.Plan(ctx, brief)
		return err
	}); err != nil {
		return res, false, &StageError{Stage: generator.StagePlan, Err: err}
	}
	log.Info("outline ready", zap.String("title", plan.Title), zap.Bool("pillar", plan.IsPillar), zap.Int("sections", len(plan.Sections)))

	var html string
	if err := r.stage(ctx, log, generator.StageDraft, func(ctx context.Context) (err error) {
		html, err = r.agent.Draft(ctx, brief, plan)
		return err
	}); err != nil {
		return res, false, &StageError{Stage: generator.StageDraft, Err: err}
	}

	if err := r.stage(ctx, log, generator.StageVoice, func(ctx context.Context) error {
		adjusted, err := r.agent.VoiceAdjust(ctx, brief, html)
		if err != nil {
			return err
		}
		html = adjusted
		return nil
	}); err != nil {
		log.Warn("voice adjustment skipped, keeping draft")
	}

	if err := r.stage(ctx, log, generator.StagePolish, func(ctx context.Context) (err error) {
		html, err = r.agent.Polish(ctx, brief, html)
		return err
	}); err != nil {
		return res, false, &StageError{Stage: generator.StagePolish, Err: err}
	}

	placements, coverID, err := r.images(ctx, log, env, task.Keyword, plan.Title, html)
	if err != nil {
		return res, false, &StageError{Stage: generator.StagePublish, Err: fmt.Errorf("upload image: %w", err)}
	}

	if err := r.stage(ctx, log, generator.StagePublish, func(ctx context.Context) error {
		doc := document.Parse(html)
		positions := doc.Inject(placements)
		log.Debug("images placed", zap.Any("positions", positions), zap.Int("marks_left", doc.Marks()))
		doc.DropMarks()
		html = doc.Render()

		meta := strings.TrimSpace(plan.MetaDescription)
		if meta == "" {
			meta = document.Summary(html, metaDescriptionLimit)
		}
		entry, err := env.Sink.CreateEntry(ctx, publisher.Entry{
			Title:           plan.Title,
			HTML:            html,
			CoverID:         coverID,
			Status:          t.PostStatus,
			FocusKeyword:    task.Keyword,
			MetaDescription: meta,
		})
		if err != nil {
			return err
		}
		res.URL, res.PostID = entry.URL, entry.ID
		return nil
	}); err != nil {
		return res, false, &StageError{Stage: generator.StagePublish, Err: err}
	}

	if !r.opts.ReadOnly {
		if err := env.Queue.Complete(ctx, task.Row, res.URL); err != nil {
			return res, true, &StageError{Stage: generator.StagePublish, Err: fmt.Errorf("record published row: %w", err)}
		}
	}

	if err := r.stage(ctx, log, generator.StageSuggest, func(ctx context.Context) error {
		topics, err := r.agent.Suggest(ctx, brief, plan.Title, html)
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			return nil
		}
		if !r.opts.ReadOnly {
			if err := env.Queue.Append(ctx, topics); err != nil {
				return err
			}
		}
		res.Suggestions = topics
		r.metrics.AddSuggestions(t.CompanyID, len(topics))
		for _, topic := range topics {
			log.Info("growth suggestion", zap.String("topic", topic))
		}
		return nil
	}); err != nil {
		log.Warn("growth suggestions skipped")
	}
	return res, true, nil
}

// images generates, uploads and assigns roles to the article's images. The first
// prompt becomes the cover, a local pool photo the first body image, and the
// last remaining prompt the closing image. Generation failures drop an image;
// upload failures abandon the task.
func (r *Runner) images(ctx context.Context, log *zap.Logger, env *TenantEnv, keyword, title, html string) ([]document.Placement, int, error) {
	var prompts []string
	if err := r.stage(ctx, log, generator.StageVisualize, func(ctx context.Context) (err error) {
		prompts, err = r.agent.Visualize(ctx, html)
		return err
	}); err != nil {
		log.Warn("publishing without generated images")
	}

	slug := Slug(keyword)
	var placements []document.Placement
	coverID := 0

	for i, prompt := range prompts {
		role := imageRole(i, len(prompts))
		n := i + 1

		var data []byte
		if err := r.stage(ctx, log, generator.StageImage, func(ctx context.Context) (err error) {
			data, err = r.agent.Image(ctx, prompt)
			return err
		}); err != nil {
			log.Warn("image dropped", zap.Int("image", n))
			continue
		}
		asset, err := r.upload(ctx, env, data, fmt.Sprintf("%s-%d.png", slug, n))
		if err != nil {
			return nil, 0, err
		}
		if role == document.RoleCover {
			coverID = asset.ID
			placements = append(placements, document.Placement{Role: role})
			placements = append(placements, r.poolPhoto(ctx, log, env, slug, title)...)
			continue
		}
		placements = append(placements, document.Placement{
			Role: role,
			HTML: document.Figure(asset.URL, fmt.Sprintf("%s - Imagem %d", title, n), ""),
		})
	}
	if coverID == 0 {
		placements = append(r.poolPhoto(ctx, log, env, slug, title), placements...)
	}
	return placements, coverID, nil
}

// poolPhoto uploads the next local photo as a body placement, if the tenant has a pool.
func (r *Runner) poolPhoto(ctx context.Context, log *zap.Logger, env *TenantEnv, slug, title string) []document.Placement {
	if env.Assets == nil {
		return nil
	}
	photo, err := env.Assets.Next()
	if err != nil {
		log.Warn("asset pool unavailable", zap.Error(err))
		return nil
	}
	asset, err := r.upload(ctx, env, photo.Data, slug+"-"+photo.Filename)
	if err != nil {
		log.Warn("asset pool upload failed", zap.String("file", photo.Filename), zap.Error(err))
		return nil
	}
	return []document.Placement{{Role: document.RoleBody, HTML: document.Figure(asset.URL, title, "")}}
}

func (r *Runner) upload(ctx context.Context, env *TenantEnv, data []byte, filename string) (publisher.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StageTimeout)
	defer cancel()
	return env.Sink.UploadAsset(ctx, data, filename)
}

// imageRole maps a prompt position to its role: cover, then body, and the last
// of several prompts closes the article.
func imageRole(i, total int) document.Role {
	switch {
	case i == 0:
		return document.RoleCover
	case i == total-1:
		return document.RoleClosing
	default:
		return document.RoleBody
	}
}

// Slug turns a keyword into a filename prefix of at most 30 characters.
func Slug(keyword string) string {
	s := strings.ToLower(strings.Join(strings.Fields(keyword), "-"))
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '?' || r == '#' || r == '"' || r == '\'' {
			return -1
		}
		return r
	}, s)
	if runes := []rune(s); len(runes) > slugLimit {
		s = strings.TrimRight(string(runes[:slugLimit]), "-")
	}
	if s == "" {
		s = "artigo"
	}
	return s
}
