// Package pipeline runs the per-tenant keyword loop: plan, draft, voice,
// polish, visualize, publish and suggest, one keyword at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"seo_article_orchestrator/assets"
	"seo_article_orchestrator/config"
	"seo_article_orchestrator/generator"
	"seo_article_orchestrator/knowledge"
	"seo_article_orchestrator/lease"
	"seo_article_orchestrator/metrics"
	"seo_article_orchestrator/publisher"
	"seo_article_orchestrator/queue"
)

// Queue is a tenant's keyword worksheet.
type Queue interface {
	Pending(ctx context.Context) ([]queue.KeywordTask, error)
	Inventory(ctx context.Context) ([]queue.Link, error)
	Complete(ctx context.Context, row int, link string) error
	Append(ctx context.Context, topics []string) error
}

// Sink publishes assets and entries.
type Sink interface {
	UploadAsset(ctx context.Context, data []byte, filename string) (publisher.Asset, error)
	CreateEntry(ctx context.Context, e publisher.Entry) (publisher.Result, error)
}

// AssetSource hands out local images, e.g. author photos.
type AssetSource interface {
	Next() (assets.ImageAsset, error)
}

// TenantEnv holds the collaborators opened for one tenant. Assets may be nil.
type TenantEnv struct {
	Queue  Queue
	Sink   Sink
	Assets AssetSource
}

// OpenFunc connects a tenant's queue and sink. An error abandons the tenant.
type OpenFunc func(ctx context.Context, t config.Tenant) (*TenantEnv, error)

type Options struct {
	CompaniesDir string
	StageTimeout time.Duration
	// ReadOnly leaves the worksheet untouched: no status updates, no suggestions appended.
	ReadOnly bool
}

// Runner drives tenants through the pipeline.
type Runner struct {
	agent   *generator.Agent
	open    OpenFunc
	claimer lease.Claimer
	metrics *metrics.Metrics
	tracker *Tracker
	logger  *zap.Logger
	opts    Options
}

func NewRunner(agent *generator.Agent, open OpenFunc, opts Options, logger *zap.Logger) (*Runner, error) {
	if agent == nil {
		return nil, errors.New("generator agent required")
	}
	if open == nil {
		return nil, errors.New("tenant opener required")
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		agent:   agent,
		open:    open,
		claimer: lease.Noop{},
		logger:  logger,
		opts:    opts,
	}, nil
}

// WithClaimer sets the lease used to claim tasks.
func (r *Runner) WithClaimer(c lease.Claimer) *Runner {
	if c != nil {
		r.claimer = c
	}
	return r
}

func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithTracker records each finished tenant report on t.
func (r *Runner) WithTracker(t *Tracker) *Runner {
	r.tracker = t
	return r
}

// Run processes tenants in order. A failing tenant never stops the others;
// cancellation stops the run between tasks.
func (r *Runner) Run(ctx context.Context, tenants []config.Tenant) Report {
	var report Report
	for _, t := range tenants {
		if ctx.Err() != nil {
			r.logger.Warn("run cancelled", zap.Error(ctx.Err()))
			break
		}
		tr := r.runTenant(ctx, t)
		tr.Finished = time.Now()
		r.tracker.Record(tr)
		report.Tenants = append(report.Tenants, tr)
	}
	return report
}

func (r *Runner) runTenant(ctx context.Context, t config.Tenant) TenantReport {
	tr := TenantReport{TenantID: t.CompanyID}
	log := r.logger.With(zap.String("tenant", t.CompanyID))
	log.Info("processing tenant", zap.String("site", t.Name()))

	env, brief, tasks, err := r.initTenant(ctx, t)
	if err != nil {
		log.Error("tenant abandoned", zap.Error(err))
		tr.Err = err.Error()
		return tr
	}
	tr.Pending = len(tasks)
	log.Info("tenant ready",
		zap.Int("pending", len(tasks)),
		zap.Int("inventory", len(brief.Inventory)),
		zap.Int("knowledge_bytes", len(brief.Knowledge)))

	for _, task := range tasks {
		if ctx.Err() != nil {
			log.Warn("tenant loop cancelled", zap.Error(ctx.Err()))
			break
		}
		res, err := r.processTask(ctx, t, env, brief, task)
		switch {
		case errors.Is(err, lease.ErrHeld):
			tr.Skipped++
			r.metrics.IncTask(t.CompanyID, metrics.OutcomeSkipped)
		case err != nil:
			var se *StageError
			stage := "unknown"
			if errors.As(err, &se) {
				stage = string(se.Stage)
			}
			tr.Failed = append(tr.Failed, TaskFailure{Row: task.Row, Keyword: task.Keyword, Stage: stage, Err: err.Error()})
			r.metrics.IncTask(t.CompanyID, metrics.OutcomeFailed)
		default:
			tr.Published = append(tr.Published, res)
			tr.Suggestions += len(res.Suggestions)
			r.metrics.IncTask(t.CompanyID, metrics.OutcomePublished)
		}
	}
	log.Info("tenant done",
		zap.Int("published", len(tr.Published)),
		zap.Int("failed", len(tr.Failed)),
		zap.Int("skipped", tr.Skipped))
	return tr
}

// initTenant opens collaborators and loads the per-tenant context.
func (r *Runner) initTenant(ctx context.Context, t config.Tenant) (*TenantEnv, generator.Brief, []queue.KeywordTask, error) {
	var brief generator.Brief
	env, err := r.open(ctx, t)
	if err != nil {
		return nil, brief, nil, fmt.Errorf("open tenant: %w", err)
	}
	if env == nil || env.Queue == nil || env.Sink == nil {
		return nil, brief, nil, errors.New("open tenant: queue and sink required")
	}

	dir := t.KnowledgeDir(r.opts.CompaniesDir)
	filters := t.KnowledgeFilters
	if len(filters) == 0 {
		filters = knowledge.DefaultFilters
	}
	if brief.Knowledge, err = knowledge.Load(dir, filters); err != nil {
		return nil, brief, nil, err
	}
	if brief.VoiceGuide, err = knowledge.LoadVoiceGuide(dir); err != nil {
		return nil, brief, nil, err
	}
	brief.Persona = t.PersonaPrompt
	brief.CTAHTML = t.CTAHTML

	links, err := env.Queue.Inventory(ctx)
	if err != nil {
		return nil, brief, nil, fmt.Errorf("read inventory: %w", err)
	}
	for _, l := range links {
		brief.Inventory = append(brief.Inventory, generator.LinkRef{Keyword: l.Keyword, URL: l.URL})
	}
	tasks, err := env.Queue.Pending(ctx)
	if err != nil {
		return nil, brief, nil, fmt.Errorf("read pending rows: %w", err)
	}
	return env, brief, tasks, nil
}

// StageError names the stage that abandoned a task.
type StageError struct {
	Stage generator.Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// stage runs fn under the per-stage timeout and records its duration.
func (r *Runner) stage(ctx context.Context, log *zap.Logger, stage generator.Stage, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StageTimeout)
	defer cancel()

	log.Debug("stage started", zap.String("stage", string(stage)))
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	r.metrics.ObserveStage(string(stage), d)
	if err != nil {
		r.metrics.IncStageFailure(string(stage))
		log.Warn("stage failed", zap.String("stage", string(stage)), zap.Duration("duration", d), zap.Error(err))
		return err
	}
	log.Info("stage finished", zap.String("stage", string(stage)), zap.Duration("duration", d))
	return nil
}
