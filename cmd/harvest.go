package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolpress/newsharvest/internal/api"
	"github.com/bolpress/newsharvest/internal/archive"
	"github.com/bolpress/newsharvest/internal/config"
	"github.com/bolpress/newsharvest/internal/extract"
	"github.com/bolpress/newsharvest/internal/fetch"
	"github.com/bolpress/newsharvest/internal/logging"
	"github.com/bolpress/newsharvest/internal/metrics"
	"github.com/bolpress/newsharvest/internal/normalize"
	"github.com/bolpress/newsharvest/internal/pipeline"
	"github.com/bolpress/newsharvest/internal/planner"
	"github.com/bolpress/newsharvest/internal/publish"
	"github.com/bolpress/newsharvest/internal/store"
)

var harvestSource string

func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Run one incremental harvest over the configured sources",
		Long: `Runs the full pipeline once per configured source: load existing URLs,
plan candidates across sections and pages, then fetch, extract, normalize and
upsert each new article. The run is idempotent; re-running against unchanged
sources inserts nothing.`,
		RunE: runHarvest,
	}
	cmd.Flags().StringVar(&harvestSource, "source", "", "only harvest the named source")
	return cmd
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := api.New(cfg.Metrics.Addr, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	archiver, closeArchiver, err := buildArchiver(ctx, cfg.Archive, logger)
	if err != nil {
		return err
	}
	defer closeArchiver()

	publisher, closePublisher, err := buildPublisher(ctx, cfg.PubSub)
	if err != nil {
		return err
	}
	defer closePublisher()

	var runErr error
	matched := false
	for _, src := range cfg.Sources {
		if harvestSource != "" && src.Name != harvestSource {
			continue
		}
		matched = true
		if err := harvestOne(ctx, cfg, src, archiver, publisher, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// A fatal store error for one source should not stop the rest.
			logger.Error("harvest failed", zap.String("source", src.Name), zap.Error(err))
			runErr = err
		}
	}
	if !matched {
		return fmt.Errorf("no source named %q in configuration", harvestSource)
	}
	return runErr
}

func harvestOne(
	ctx context.Context,
	cfg config.Config,
	src config.SourceConfig,
	archiver pipeline.Archiver,
	publisher pipeline.Publisher,
	logger *zap.Logger,
) error {
	fetcher, closeFetcher, err := buildFetcher(src)
	if err != nil {
		return err
	}
	defer closeFetcher()

	extractor, err := buildExtractor(src)
	if err != nil {
		return err
	}
	normalizer, err := buildNormalizer(src)
	if err != nil {
		return err
	}

	articleStore, err := store.NewPostgres(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
		Columns:         src.Columns,
	})
	if err != nil {
		return fmt.Errorf("init store for %s: %w", src.Name, err)
	}
	defer articleStore.Close()

	plan := planner.New(planner.Config{
		Source:     src.Name,
		BaseURL:    src.BaseURL,
		Sections:   src.Sections,
		PageBudget: src.PageBudget,
		Pagination: src.Pagination,
		Listing:    src.Listing,
	}, fetcher, pipeline.SystemClock{}, logger)

	orch := pipeline.NewOrchestrator(
		pipeline.OrchestratorConfig{
			Source:      src.Name,
			Table:       src.Table,
			Concurrency: cfg.Harvest.Concurrency,
			Topic:       cfg.PubSub.Topic,
		},
		plan,
		fetcher,
		extractor,
		normalizer,
		articleStore,
		archiver,
		publisher,
		pipeline.SystemClock{},
		logger,
	)

	_, err = orch.Run(ctx)
	return err
}

func buildFetcher(src config.SourceConfig) (pipeline.Fetcher, func(), error) {
	switch src.Strategy {
	case config.StrategyChallenge:
		f, err := fetch.NewChromedp(fetch.ChallengeConfig{
			UserAgent:    src.Fetch.UserAgent,
			NavTimeout:   time.Duration(src.Fetch.NavTimeoutSeconds) * time.Second,
			MaxParallel:  src.Fetch.MaxParallel,
			WaitSelector: src.Fetch.WaitSelector,
			DelayMin:     src.Fetch.DelayMin(),
			DelayMax:     src.Fetch.DelayMax(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init challenge fetcher for %s: %w", src.Name, err)
		}
		return f, f.Close, nil
	default:
		f := fetch.NewColly(fetch.Config{
			UserAgent:     src.Fetch.UserAgent,
			Timeout:       src.Fetch.Timeout(),
			RespectRobots: src.Fetch.RespectRobots,
			DelayMin:      src.Fetch.DelayMin(),
			DelayMax:      src.Fetch.DelayMax(),
		})
		return f, func() {}, nil
	}
}

var knownFields = map[pipeline.Field]struct{}{
	pipeline.FieldHeadline:    {},
	pipeline.FieldSubheadline: {},
	pipeline.FieldDate:        {},
	pipeline.FieldAuthor:      {},
	pipeline.FieldContent:     {},
	pipeline.FieldDateAgency:  {},
}

func buildExtractor(src config.SourceConfig) (*extract.Extractor, error) {
	fields := make(map[pipeline.Field]extract.FieldRule, len(src.Selectors))
	for name, rule := range src.Selectors {
		field := pipeline.Field(name)
		if _, ok := knownFields[field]; !ok {
			return nil, fmt.Errorf("source %s: unknown field %q in selectors", src.Name, name)
		}
		fields[field] = rule
	}
	return extract.New(extract.Profile{
		Fields:     fields,
		BodyMarker: src.BodyMarker,
	}), nil
}

func buildNormalizer(src config.SourceConfig) (*normalize.Normalizer, error) {
	grammar := normalize.NewSpanishGrammar()
	if len(src.DateRules) > 0 {
		rules, err := normalize.CompileRules(src.DateRules)
		if err != nil {
			return nil, fmt.Errorf("source %s: compile date rules: %w", src.Name, err)
		}
		grammar.Rules = rules
	}

	agency := normalize.AgencyRules{Replacements: src.AgencyReplacements}
	for _, alias := range src.AgencyAliases {
		agency.Aliases = append(agency.Aliases, normalize.AgencyAlias{
			Prefix:    alias.Prefix,
			Squash:    alias.Squash,
			Canonical: alias.Canonical,
		})
	}

	return normalize.New(normalize.Rules{
		Source:       src.Name,
		SectionDepth: src.SectionDepth,
		Dates:        grammar,
		Agency:       agency,
	}), nil
}

func buildArchiver(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (pipeline.Archiver, func(), error) {
	switch cfg.Backend {
	case "gcs":
		g, err := archive.NewGCS(ctx, cfg.Bucket, logger)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	case "local":
		l, err := archive.NewLocal(cfg.BaseDir)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.PubSubConfig) (pipeline.Publisher, func(), error) {
	if cfg.ProjectID == "" {
		return nil, func() {}, nil
	}
	p, err := publish.NewPubSub(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}
