// Package server wires the application together: database, repositories,
// services and the HTTP surface, plus signal handling and shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/relativit/relativit/internal/cryptox"
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/audit"
	"github.com/relativit/relativit/internal/server/config"
	"github.com/relativit/relativit/internal/server/email"
	"github.com/relativit/relativit/internal/server/httpapi"
	"github.com/relativit/relativit/internal/server/repositories/repomanager"
	"github.com/relativit/relativit/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := &repomanager.PostgresRepositoryManager{}
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	sink, err := auditSink(ctx, cfg, manager, db)
	if err != nil {
		return nil, fmt.Errorf("audit sink init error: %w", err)
	}
	auditWriter := audit.NewWriter(sink, logger)

	sender := email.NewLogSender(logger)

	var codes cryptox.CodeGenerator = &cryptox.RandomCodeGenerator{}
	if cfg.DemoVerificationCode != "" {
		logger.Warn(ctx, "DEMO MODE: verification codes are fixed, do not use in production")
		codes = &cryptox.FixedCodeGenerator{Code: cfg.DemoVerificationCode}
	}

	verification := services.NewVerificationService(db, manager, codes, sender, logger)
	tokens := services.NewTokenService(db, manager, cfg)
	auth := services.NewAuthService(db, manager, verification, tokens, auditWriter, sender, logger)
	vault := services.NewVaultService(db, manager, cfg.EncryptionKey, cfg.TrialStartCredits, auditWriter, logger)
	ai := services.NewAIService(db, manager, vault, cfg, logger)

	handlers := httpapi.NewHandlers(auth, tokens, vault, ai, logger)
	srv := httpapi.NewServer(cfg.EndpointAddr, handlers, logger)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

// auditSink selects the audit destination. Postgres is the default; the S3
// sink ships entries to object storage instead.
func auditSink(ctx context.Context, cfg *config.Config, manager repomanager.RepositoryManager, db *sql.DB) (audit.Sink, error) {
	switch cfg.AuditSink {
	case "s3":
		return audit.NewS3Sink(ctx, audit.S3Options{
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return manager.AuditLog(db), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
