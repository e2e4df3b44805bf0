package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/doganlap/shahin-grc/internal/config"
	"github.com/doganlap/shahin-grc/internal/events"
	"github.com/doganlap/shahin-grc/internal/server"
	applicabilitytypes "github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	applicabilitypersistence "github.com/doganlap/shahin-grc/modules/applicability/infrastructure/persistence"
	applicabilityservices "github.com/doganlap/shahin-grc/modules/applicability/services"
	baselinepersistence "github.com/doganlap/shahin-grc/modules/baseline/infrastructure/persistence"
	baselineservices "github.com/doganlap/shahin-grc/modules/baseline/services"
	catalogpersistence "github.com/doganlap/shahin-grc/modules/catalog/infrastructure/persistence"
	catalogservices "github.com/doganlap/shahin-grc/modules/catalog/services"
	orgpersistence "github.com/doganlap/shahin-grc/modules/orgentity/infrastructure/persistence"
	orgservices "github.com/doganlap/shahin-grc/modules/orgentity/services"
	overlaypersistence "github.com/doganlap/shahin-grc/modules/overlay/infrastructure/persistence"
	overlayservices "github.com/doganlap/shahin-grc/modules/overlay/services"
	suitepersistence "github.com/doganlap/shahin-grc/modules/suite/infrastructure/persistence"
	suiteservices "github.com/doganlap/shahin-grc/modules/suite/services"
	"github.com/doganlap/shahin-grc/pkg/authz"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to grc.yaml")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	mode, err := authz.ModeFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("authz mode")
	}
	authorizer, err := authz.NewAuthorizer(cfg.AuthzModelPath, cfg.AuthzPolicyPath, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("load authz policy")
	}

	catalogStore := catalogpersistence.NewCatalogPGStore(pool)
	baselineStore := baselinepersistence.NewBaselinePGStore(pool)
	overlayStore := overlaypersistence.NewOverlayPGStore(pool)
	ruleStore := applicabilitypersistence.NewRulePGStore(pool)
	ledgerStore := applicabilitypersistence.NewLedgerPGStore(pool)
	entityStore := orgpersistence.NewEntityPGStore(pool)
	suiteStore := suitepersistence.NewSuitePGStore(pool)
	evidenceStore := suitepersistence.NewEvidencePGStore(pool)

	evaluator, err := applicabilityservices.NewRuleEvaluator(applicabilitytypes.ConflictPolicy(cfg.ConflictPolicy))
	if err != nil {
		log.Fatal().Err(err).Msg("build rule evaluator")
	}
	ledger, err := applicabilityservices.NewLedgerService(ctx, ledgerStore, authorizer)
	if err != nil {
		log.Fatal().Err(err).Msg("build ledger service")
	}

	bus := events.NewBus(log)
	defer bus.Close()

	resolver := orgservices.NewHierarchyResolver(entityStore)

	generator := suiteservices.NewSuiteGenerator(suiteservices.GeneratorDeps{
		Resolver:  resolver,
		Entities:  entityStore,
		Composer:  baselineservices.NewBaselineComposer(baselineStore, catalogStore),
		Overlays:  overlayStore,
		Engine:    overlayservices.NewOverlayEngine(catalogStore),
		Rules:     ruleStore,
		Evaluator: evaluator,
		Ledger:    ledger,
		Suites:    suiteStore,
		Evidence:  evidenceStore,
		Publisher: events.NewSuitePublisher(bus, log),
		Log:       log,
	})

	deps := server.Deps{
		Catalog:  catalogservices.NewCatalogService(catalogStore),
		Entities: orgservices.NewEntityRegistry(entityStore, resolver),
		Suites:   generator,
		Ledger:   ledger,
		Log:      log,
	}
	if cfg.AllowlistPath != "" {
		raw, err := os.ReadFile(cfg.AllowlistPath)
		if err != nil {
			log.Fatal().Err(err).Msg("read allowlist")
		}
		deps.Allowlist = raw
	}

	mux, err := server.NewMux(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("build routes")
	}

	log.Info().Str("addr", cfg.HTTPAddr).Str("authz_mode", string(mode)).Msg("listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}
