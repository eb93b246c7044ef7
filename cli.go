package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"seo_article_orchestrator/assets"
	"seo_article_orchestrator/config"
	"seo_article_orchestrator/credentials"
	"seo_article_orchestrator/generator"
	"seo_article_orchestrator/lease"
	"seo_article_orchestrator/metrics"
	"seo_article_orchestrator/pipeline"
	"seo_article_orchestrator/publisher"
	"seo_article_orchestrator/queue"
	"seo_article_orchestrator/server"
)

var (
	configPath  string
	verbose     bool
	console     bool
	mockLLM     bool
	dryRun      bool
	writeBack   bool
	metricsAddr string
	tenantID    string
	outDir      string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seo-orchestrator",
		Short: "Generate and publish SEO articles from keyword worksheets",
		Long: `Reads pending keywords from each tenant's Google Sheet, writes an article
through plan, draft, voice, polish and illustration stages, publishes it to
the tenant's WordPress site and records the link back in the sheet.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to config file (yaml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "human readable logs")
	rootCmd.PersistentFlags().BoolVar(&mockLLM, "mock", false, "use the scripted offline model instead of a provider")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process every pending keyword of every tenant",
		RunE:  runPipeline,
	}
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "write articles to the output dir instead of WordPress")
	runCmd.Flags().BoolVar(&writeBack, "write-back", false, "with --dry-run, still update the worksheet")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /api/status on this address (overrides config)")
	runCmd.Flags().StringVar(&tenantID, "tenant", "", "only process this company id")

	planCmd := &cobra.Command{
		Use:   "plan <keyword>",
		Short: "Run the text stages for one keyword and save them locally",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	planCmd.Flags().StringVar(&tenantID, "tenant", "", "company id whose persona and knowledge base to use (default: first tenant)")
	planCmd.Flags().StringVar(&outDir, "out", "", "output directory (default: output_dir from config)")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify access to every tenant's worksheet and site",
		RunE:  runCheck,
	}

	rootCmd.AddCommand(runCmd, planCmd, checkCmd)
	return rootCmd
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if console {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracker  *pipeline.Tracker
	agent    *generator.Agent
	sheets   *sheets.Service
	redis    *lease.Redis
}

func newApp() (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if mockLLM {
		cfg.LLM.Provider = "mock"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	keys := cfg.LLM.APIKeys
	if cfg.LLM.Provider == "mock" {
		keys = []string{"mock"}
	}
	pool, err := credentials.NewPool(keys)
	if err != nil {
		return nil, err
	}
	client, err := credentials.NewClient[generator.LLMClient](pool, func(ctx context.Context, key string) (generator.LLMClient, error) {
		return buildLLM(ctx, cfg.LLM, key)
	}, generator.IsRotatable, logger.Named("credentials"))
	if err != nil {
		return nil, err
	}
	client.OnRotate = func(from, to int) { m.IncRotation() }
	agent, err := generator.NewAgent(client)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  m,
		tracker:  pipeline.NewTracker(),
		agent:    agent,
	}
	if cfg.Redis.Addr != "" {
		a.redis = lease.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LeaseTTL)
	}
	logger.Info("configuration loaded",
		zap.String("provider", cfg.LLM.Provider),
		zap.Int("api_keys", pool.Size()),
		zap.Int("tenants", len(cfg.Tenants)),
		zap.Bool("lease", a.redis != nil))
	return a, nil
}

func (a *app) sheetsService(ctx context.Context) (*sheets.Service, error) {
	if a.sheets != nil {
		return a.sheets, nil
	}
	svc, err := queue.NewSheetsService(ctx, a.cfg.ServiceAccount)
	if err != nil {
		return nil, err
	}
	a.sheets = svc
	return svc, nil
}

func (a *app) queueOptions() queue.Options {
	return queue.Options{
		DoneStatus:    a.cfg.DoneStatus,
		PendingMarker: a.cfg.PendingMarker,
		GrowthMarker:  a.cfg.GrowthMarker,
	}
}

// openTenant connects a tenant's worksheet, site and photo pool.
func (a *app) openTenant(local bool) pipeline.OpenFunc {
	return func(ctx context.Context, t config.Tenant) (*pipeline.TenantEnv, error) {
		log := a.logger.With(zap.String("tenant", t.CompanyID))
		svc, err := a.sheetsService(ctx)
		if err != nil {
			return nil, err
		}
		q, err := queue.NewSheets(svc, t.SpreadsheetID, a.queueOptions(), log.Named("queue"))
		if err != nil {
			return nil, err
		}

		var sink pipeline.Sink
		if local {
			sink, err = publisher.NewLocal(filepath.Join(a.cfg.OutputDir, t.CompanyID), log.Named("local"))
		} else {
			sink, err = publisher.New(ctx, publisher.Config{
				BaseURL:     t.WordPressURL,
				Username:    t.WordPressUsername,
				AppPassword: t.WordPressAppPassword,
			}, nil, log.Named("wordpress"))
		}
		if err != nil {
			return nil, err
		}

		env := &pipeline.TenantEnv{Queue: q, Sink: sink}
		if t.AssetPoolDir != "" {
			env.Assets = assets.NewPool(t.AssetPoolDir)
		}
		return env, nil
	}
}

func (a *app) selectTenants() ([]config.Tenant, error) {
	if tenantID == "" {
		return a.cfg.Tenants, nil
	}
	for _, t := range a.cfg.Tenants {
		if t.CompanyID == tenantID {
			return []config.Tenant{t}, nil
		}
	}
	return nil, fmt.Errorf("tenant %s not configured", tenantID)
}

func (a *app) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		CompaniesDir: a.cfg.CompaniesDir,
		StageTimeout: a.cfg.StageTimeout,
		ReadOnly:     dryRun && !writeBack,
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	tenants, err := a.selectTenants()
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(a.agent, a.openTenant(dryRun), a.pipelineOptions(), a.logger.Named("pipeline"))
	if err != nil {
		return err
	}
	runner.WithMetrics(a.metrics).WithTracker(a.tracker)
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("lease store unreachable: %w", err)
		}
		runner.WithClaimer(a.redis)
	}

	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.MetricsAddr
	}
	if addr != "" {
		srv, err := server.New(a.tracker, a.registry, a.logger.Named("http"))
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	report := runner.Run(ctx, tenants)
	for _, t := range report.Tenants {
		fields := []zap.Field{
			zap.String("tenant", t.TenantID),
			zap.Int("pending", t.Pending),
			zap.Int("published", len(t.Published)),
			zap.Int("failed", len(t.Failed)),
			zap.Int("skipped", t.Skipped),
			zap.Int("suggestions", t.Suggestions),
		}
		if t.Err != "" {
			a.logger.Error("tenant abandoned", append(fields, zap.String("error", t.Err))...)
			continue
		}
		a.logger.Info("tenant finished", fields...)
	}
	a.logger.Info("run finished",
		zap.Int("published", report.Published()),
		zap.Int("failed", report.Failed()),
		zap.Duration("elapsed", time.Since(start)))
	return ctx.Err()
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	tenant := a.cfg.Tenants[0]
	if tenantID != "" {
		tenants, err := a.selectTenants()
		if err != nil {
			return err
		}
		tenant = tenants[0]
	}

	noQueue := func(context.Context, config.Tenant) (*pipeline.TenantEnv, error) {
		return nil, errors.New("plan does not open tenants")
	}
	runner, err := pipeline.NewRunner(a.agent, noQueue, a.pipelineOptions(), a.logger.Named("pipeline"))
	if err != nil {
		return err
	}
	preview, err := runner.Preview(ctx, tenant, args[0])
	if err != nil {
		return err
	}

	dir := outDir
	if dir == "" {
		dir = a.cfg.OutputDir
	}
	files, err := preview.WriteTo(dir)
	if err != nil {
		return err
	}
	a.logger.Info("preview written",
		zap.String("title", preview.Plan.Title),
		zap.Int("image_prompts", len(preview.ImagePrompts)),
		zap.Strings("files", files))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	var errs []error
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis %s: %w", a.cfg.Redis.Addr, err))
		} else {
			a.logger.Info("lease store reachable", zap.String("addr", a.cfg.Redis.Addr))
		}
	}

	svc, err := a.sheetsService(ctx)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, t := range a.cfg.Tenants {
		log := a.logger.With(zap.String("tenant", t.CompanyID))
		q, err := queue.NewSheets(svc, t.SpreadsheetID, a.queueOptions(), log)
		if err == nil {
			err = q.Check(ctx)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s worksheet: %w", t.CompanyID, err))
			log.Error("worksheet check failed", zap.Error(err))
		} else {
			log.Info("worksheet reachable")
		}

		if _, err := publisher.New(ctx, publisher.Config{
			BaseURL:     t.WordPressURL,
			Username:    t.WordPressUsername,
			AppPassword: t.WordPressAppPassword,
		}, nil, log); err != nil {
			errs = append(errs, fmt.Errorf("%s site: %w", t.CompanyID, err))
			log.Error("site check failed", zap.Error(err))
		} else {
			log.Info("site credentials accepted")
		}

		if t.AssetPoolDir != "" {
			if _, err := os.Stat(t.AssetPoolDir); err != nil {
				log.Warn("asset pool dir missing", zap.String("dir", t.AssetPoolDir))
			}
		}
	}
	return errors.Join(errs...)
}
