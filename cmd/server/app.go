package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"bluecarbon/internal/config"
	"bluecarbon/internal/credits"
	"bluecarbon/internal/dashboard"
	"bluecarbon/internal/db"
	"bluecarbon/internal/email"
	"bluecarbon/internal/handlers/api"
	"bluecarbon/internal/imaging"
	"bluecarbon/internal/jobs"
	"bluecarbon/internal/ledger"
	"bluecarbon/internal/metrics"
	"bluecarbon/internal/middleware"
	"bluecarbon/internal/objectstore"
	"bluecarbon/internal/server"
	"bluecarbon/internal/submissions"
	"bluecarbon/internal/verification"
)

func openDatabase(ctx context.Context) (*db.DB, error) {
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations completed successfully")
	return database, nil
}

func runMigrate(ctx context.Context) error {
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	database.Close()
	return nil
}

func runSeed(ctx context.Context) error {
	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SeedDevUsers(ctx); err != nil {
		return fmt.Errorf("failed to seed dev users: %w", err)
	}
	logger.Info("seeded development users")
	return nil
}

// objectStore is what the service needs from the bucket plus a readiness check.
type objectStore interface {
	submissions.ObjectStore
	api.Pinger
}

func openObjectStore(ctx context.Context) (objectStore, func(), error) {
	if cfg.StorageBucket == "" {
		logger.Warn("FIREBASE_STORAGE_BUCKET not set, keeping images in memory")
		return objectstore.NewMemory(strings.TrimRight(cfg.BaseURL, "/") + "/objects"), func() {}, nil
	}
	gcs, err := objectstore.NewGCS(ctx, cfg.StorageBucket, cfg.StoragePublicBaseURL, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return gcs, func() { _ = gcs.Close() }, nil
}

func newVerifierBackend(ctx context.Context) (verification.Backend, error) {
	switch cfg.VerifierBackend {
	case "gemini":
		return verification.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "none":
		return nil, nil
	default:
		return verification.NewHTTPBackend(verification.HTTPConfig{
			BaseURL:      cfg.AIServiceURL,
			APIKey:       cfg.AIAPIKey,
			TokenURL:     cfg.AITokenURL,
			ClientID:     cfg.AIClientID,
			ClientSecret: cfg.AIClientSecret,
			Timeout:      cfg.AITimeout,
		}), nil
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	yamlCfg, err := config.LoadYAMLConfig()
	if err != nil {
		return fmt.Errorf("failed to load YAML config: %w", err)
	}
	calculator := credits.FromYAML(yamlCfg)

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := database.SeedDevUsers(ctx); err != nil {
			logger.Warn("failed to seed dev users", zap.Error(err))
		}
	}

	metrics.Init(database, logger)

	objects, closeObjects, err := openObjectStore(ctx)
	if err != nil {
		return err
	}
	defer closeObjects()

	probes := map[string]api.Pinger{"database": database, "storage": objects}

	// Ledger is optional: without it approvals fail with a ledger error.
	var chain *ledger.Client
	opts := submissions.Options{VerifyDelay: cfg.VerifyDelay}
	if cfg.IsLedgerEnabled() {
		chain, err = ledger.Dial(ctx, cfg.BlockchainRPCURL, cfg.ContractAddress, cfg.AdminPrivateKey, cfg.LedgerTimeout, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to ledger: %w", err)
		}
		defer chain.Close()
		opts.Ledger = chain
		opts.RecordLocation = cfg.EnableOnchainLocation
		probes["ledger"] = chain
	} else {
		logger.Warn("ledger not configured, approvals will fail until BLOCKCHAIN_RPC_URL, CARBON_CREDIT_CONTRACT_ADDRESS and ADMIN_PRIVATE_KEY are set")
	}

	backend, err := newVerifierBackend(ctx)
	if err != nil {
		return fmt.Errorf("failed to create verifier backend: %w", err)
	}
	verifier := verification.NewVerifier(backend, calculator, logger, verification.WithRetries(cfg.AIRetries))
	logger.Info("verifier ready", zap.String("backend", verifier.BackendName()))

	worker := jobs.NewVerificationWorker(database, verifier, cfg.VerifyPollInterval, cfg.VerifyLease, cfg.VerifyBatchSize, logger)
	opts.Scheduler = worker

	mailer := email.NewService(cfg, logger)
	defer mailer.Wait()
	if mailer.IsEnabled() {
		opts.Notifier = email.NewNotifier(cfg, mailer)
	}

	subs := submissions.NewService(database, objects, imaging.NewProcessor(), calculator, logger, opts)
	dash := dashboard.NewService(database)

	var tokens middleware.TokenVerifier
	if cfg.IsAuthEnabled() {
		oidcVerifier, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		tokens = oidcVerifier
	} else {
		logger.Warn("authentication is disabled. Set OIDC_ISSUER to enable.")
	}

	var chainAPI api.Ledger
	if chain != nil {
		chainAPI = chain
	}

	srv := server.New(cfg, logger)
	srv.RegisterRoutes(server.Handlers{
		Auth:        middleware.NewAuthMiddleware(tokens, cfg.AdminEmailList(), logger),
		Mobile:      api.NewMobileHandler(subs),
		Submissions: api.NewSubmissionHandler(subs),
		AI:          api.NewAIHandler(verifier, database, logger),
		Dashboard:   api.NewDashboardHandler(dash),
		Users:       api.NewUserHandler(subs),
		Blockchain:  api.NewBlockchainHandler(chainAPI),
		Probe:       api.NewProbeHandler(probes),
	})

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
		stop()
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	<-workerDone
	logger.Info("server exited")
	return nil
}
