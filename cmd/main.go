package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"

	"workshopportal/cmd/buildCFG"
	"workshopportal/internal/api/api"
	rabbitReader "workshopportal/internal/consumerWorker"
	"workshopportal/internal/mailer"
	"workshopportal/internal/rabbit"
	"workshopportal/internal/repo"
	"workshopportal/internal/service"
)

func main() {
	zlog.Init()
	log := zlog.Logger
	log.Info().Msg("Starting workshop registration portal")

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", ""); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	storageCfg := buildCFG.BuildStorageConfig(cfg, &log)

	adminCfg, err := buildCFG.BuildAdminConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build admin config")
	}
	mailerCfg, err := buildCFG.BuildMailerConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build mailer config")
	}

	db, err := repo.OpenSQLite(storageCfg.Path)
	if err != nil {
		log.Fatal().Msgf("failed to open store: %v", err)
	}
	defer db.Close()
	log.Info().Str("path", storageCfg.Path).Msg("Store opened successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	if err := repository.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	smtp := mailer.New(mailerCfg.SMTP, &log)

	var (
		notifier service.Notifier = smtp
		reader   *rabbitReader.Reader
	)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if mailerCfg.Mode == buildCFG.MailModeQueue {
		var rmq *rabbit.Client
		rmq, reader = startQueue(workerCtx, cfg, smtp, &log)
		defer rmq.Close()
		notifier = rabbit.NewQueueNotifier(rmq)
	}

	serviceInstance := service.NewService(repository, &log, notifier, service.Options{
		AdminPassword: adminCfg.Password,
		ExportDir:     storageCfg.ExportDir,
	})
	app := api.NewRouters(&api.Routers{
		Service:       serviceInstance,
		SessionSecret: []byte(adminCfg.SessionSecret),
		Mode:          serverCfg.Mode,
		FrontendDir:   "./frontend",
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Msgf("Error shutting down server: %v", err)
	}

	if reader != nil {
		reader.Stop()
	}
	cancelWorkers()

	// registrations are kept across restarts; nothing is rolled back here
	log.Info().Msg("Shutdown complete")
}

// startQueue connects to RabbitMQ and starts the worker that turns queued
// notifications into emails.
func startQueue(ctx context.Context, cfg buildCFG.Getter, smtp *mailer.Mailer, log *zerolog.Logger) (*rabbit.Client, *rabbitReader.Reader) {
	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}

	reader := rabbitReader.NewReader(rmq, smtp)
	reader.Start(ctx)
	return rmq, reader
}
