package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/manarah-platform/manarah/internal/app"
	"github.com/manarah-platform/manarah/internal/attachments"
	"github.com/manarah-platform/manarah/internal/auth"
	"github.com/manarah-platform/manarah/internal/authz"
	"github.com/manarah-platform/manarah/internal/boq"
	"github.com/manarah-platform/manarah/internal/contracts"
	"github.com/manarah-platform/manarah/internal/disbursement"
	"github.com/manarah-platform/manarah/internal/mosques"
	"github.com/manarah-platform/manarah/internal/notify"
	"github.com/manarah-platform/manarah/internal/observability"
	"github.com/manarah-platform/manarah/internal/quotations"
	"github.com/manarah-platform/manarah/internal/reports"
	"github.com/manarah-platform/manarah/internal/requests"
	"github.com/manarah-platform/manarah/internal/shared"
	"github.com/manarah-platform/manarah/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewEnqueuer(asynqClient)

	metrics := observability.NewMetrics()
	gate := authz.NewGate()
	authzMW := authz.Middleware{Gate: gate, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, redisClient, cfg.AuthCacheTTL, logger)
	authMW := auth.Middleware{Service: authService}

	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)

	mosqueRepo := mosques.NewRepository(dbpool)
	mosqueService := mosques.NewService(mosqueRepo, gate, shared.NewAuditLogger(dbpool))
	mosqueHandler := mosques.NewHandler(logger, mosqueService, authzMW)

	requestRepo := requests.NewRepository(dbpool)
	boqRepo := boq.NewRepository(dbpool)
	quotationRepo := quotations.NewRepository(dbpool)

	// requests and quotations reference each other; the quotation service is
	// built first against the bare repositories.
	requestReader := requests.NewService(requestRepo, gate, mosqueService, nil, notifier, metrics, logger)
	quotationService := quotations.NewService(
		quotationRepo, gate, requestReader, boq.NewService(boqRepo, gate, requestReader),
		notifier, approvalRecorder, metrics,
		quotations.Config{EnforceSingleAccepted: cfg.EnforceSingleAcceptedQuotation},
		logger,
	)
	requestService := requests.NewService(requestRepo, gate, mosqueService, quotationService, notifier, metrics, logger)
	boqService := boq.NewService(boqRepo, gate, requestService)

	requestHandler := requests.NewHandler(logger, requestService, authzMW)
	boqHandler := boq.NewHandler(logger, boqService, authzMW)
	quotationHandler := quotations.NewHandler(logger, quotationService, authzMW)

	contractRepo := contracts.NewRepository(dbpool)
	contractService := contracts.NewService(contractRepo, gate, quotationService)
	contractHandler := contracts.NewHandler(logger, contractService, authzMW)

	disbRepo := disbursement.NewRepository(dbpool)
	disbService := disbursement.NewService(
		disbRepo, gate, contractService, notifier, approvalRecorder, metrics,
		disbursement.Config{EnforceContractBalance: cfg.EnforceContractBalance},
		logger,
	)
	disbHandler := disbursement.NewHandler(logger, disbService, authzMW)

	attachmentRepo := attachments.NewRepository(dbpool)
	attachmentService := attachments.NewService(attachmentRepo, gate, nil, logger)
	attachmentHandler := attachments.NewHandler(logger, attachmentService, authzMW)

	reportHandler := reports.NewHandler(logger, requestService, boqService, quotationService, disbService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthMiddleware:      authMW,
		RequestsHandler:     requestHandler,
		BOQHandler:          boqHandler,
		QuotationsHandler:   quotationHandler,
		ContractsHandler:    contractHandler,
		DisbursementHandler: disbHandler,
		MosquesHandler:      mosqueHandler,
		AttachmentsHandler:  attachmentHandler,
		ReportsHandler:      reportHandler,
		JobsHandler:         jobsHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
