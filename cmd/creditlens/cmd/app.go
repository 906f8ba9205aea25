package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/blobstore"
	"github.com/jumuia/creditlens/internal/chunker"
	"github.com/jumuia/creditlens/internal/config"
	"github.com/jumuia/creditlens/internal/extract"
	infrabq "github.com/jumuia/creditlens/internal/infra/bigquery"
	"github.com/jumuia/creditlens/internal/logger"
	"github.com/jumuia/creditlens/internal/oracle"
	"github.com/jumuia/creditlens/internal/orchestrator"
	"github.com/jumuia/creditlens/internal/parsers"
	"github.com/jumuia/creditlens/internal/queue"
	"github.com/jumuia/creditlens/internal/repository"
	"github.com/jumuia/creditlens/internal/rules"
	"github.com/jumuia/creditlens/internal/scoring"
	"github.com/jumuia/creditlens/internal/validation"
)

// app bundles every wired component the commands pick from.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     *repository.Store
	bqStore   *infrabq.Store // nil on the in-memory backend
	queue     *queue.Service
	blobs     *blobstore.Store
	rules     rules.Registry
	validator *validation.Service
	errorLog  *apperrors.ErrorLog
	engine    *scoring.Engine
	orch      *orchestrator.Orchestrator
}

// buildApp wires the full component graph from configuration. withOracle
// controls whether the generative model client is attempted; commands that
// never parse documents skip it.
func buildApp(ctx context.Context, withOracle bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	a := &app{cfg: cfg, log: log}

	switch cfg.Storage.Backend {
	case "bigquery":
		bqStore, err := infrabq.New(ctx, cfg.Storage.ProjectID, cfg.Storage.Dataset, log)
		if err != nil {
			return nil, fmt.Errorf("connect bigquery: %w", err)
		}
		a.bqStore = bqStore
		// The claim queue stays node-local regardless of the backend.
		a.store = bqStore.Repositories(repository.NewMemoryStore().Queue)
	default:
		a.store = repository.NewMemoryStore()
	}

	a.errorLog = apperrors.NewErrorLog(apperrors.DefaultErrorLogCapacity)
	a.validator, err = validation.New(cfg.Validation.ReconcileTolerance, cfg.Validation.SmallFileBytes, a.errorLog, log)
	if err != nil {
		return nil, err
	}

	a.rules, err = rules.NewRegistry(rules.KenyanSeedRules())
	if err != nil {
		return nil, err
	}

	extractor := extract.New(log)
	registry := parsers.NewRegistry(
		parsers.NewTabularParser(log),
		parsers.NewBankParser(extractor, log),
		parsers.NewMobileMoneyParser(extractor, log),
		parsers.NewSaccoParser(extractor, log),
	)

	var oracleClient oracle.Client
	if withOracle {
		gemini, err := oracle.NewGeminiClient(ctx, cfg.Oracle.Model, log)
		if err != nil {
			log.Warn().Err(err).Msg("oracle unavailable, relying on format parsers only")
		} else {
			oracleClient = oracle.NewRetryingClient(gemini,
				cfg.Oracle.MaxAttempts, cfg.Oracle.BaseBackoff, cfg.Oracle.MaxBackoff, log)
		}
	}

	a.queue = queue.NewService(a.store.Queue, cfg.Queue.MaxAttempts, log)
	a.blobs = blobstore.New(cfg.Storage.GCSBucket, log)
	a.engine = scoring.NewEngine(cfg.Scoring, a.store, log)

	chunks := chunker.NewProcessor(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.PacingDelay, log)
	a.orch = orchestrator.New(cfg.Queue, a.store, a.blobs, a.queue, extractor, registry,
		chunks, oracleClient, a.rules, a.validator, log)

	return a, nil
}

func (a *app) close() {
	if a.bqStore != nil {
		if err := a.bqStore.Close(); err != nil {
			a.log.Error().Err(err).Msg("closing bigquery store")
		}
	}
}
