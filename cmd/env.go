package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/ai"
	"github.com/sightline-ai/sightline/internal/discover"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/gaps"
	"github.com/sightline-ai/sightline/internal/memo"
	"github.com/sightline-ai/sightline/internal/policy"
	"github.com/sightline-ai/sightline/internal/scan"
	"github.com/sightline-ai/sightline/internal/store"
	"github.com/sightline-ai/sightline/internal/workflows"
)

// env holds the wired components shared by the serve, worker and trigger
// commands.
type env struct {
	store    store.Store
	temporal client.Client
	router   *events.Router
}

func (e *env) Close() {
	if e.temporal != nil {
		e.temporal.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sightline.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dial temporal")
	}
	return c, nil
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	tc, err := initTemporal()
	if err != nil {
		st.Close()
		return nil, err
	}

	return &env{
		store:    st,
		temporal: tc,
		router:   events.NewRouter(tc, cfg.Temporal.TaskQueue, st),
	}, nil
}

func initActivities(e *env) (*workflows.Activities, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (SIGHTLINE_ANTHROPIC_KEY)")
	}
	aiClient := ai.NewClient(cfg.Anthropic.Key, time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)

	pol, err := policy.LoadOverrides("policy.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "load policy overrides")
	}

	return &workflows.Activities{
		Store:      e.store,
		Discoverer: discover.New(e.store, aiClient, pol, e.router, cfg.Anthropic.DiscoveryModel),
		Queries:    discover.NewQueryGenerator(e.store, aiClient, e.router, cfg.Anthropic.DiscoveryModel),
		Scanner:    scan.New(e.store, aiClient, nil, cfg.Anthropic.AnswerModels, cfg.Scan.CallsPerSecond, cfg.Scan.MaxParallel),
		Analyzer:   gaps.NewAnalyzer(e.store, aiClient, cfg.Anthropic.AnalysisModel),
		Memos:      memo.NewWriter(e.store, aiClient, cfg.Anthropic.AnalysisModel),
		Caps: workflows.LoopCaps{
			MaxCompetitors: cfg.Loop.MaxCompetitors,
			MaxQueries:     cfg.Loop.MaxQueries,
		},
	}, nil
}
