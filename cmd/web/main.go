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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/api"
	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/config"
	"github.com/littleexplorer/explorer/internal/core"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/events"
	"github.com/littleexplorer/explorer/internal/logger"
	"github.com/littleexplorer/explorer/internal/speech"
)

const envFile = ".env"

func main() {
	// Load environment variables
	_ = godotenv.Load(envFile)
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	// Initialize database
	database, err := db.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer database.Close()

	seed, err := catalog.DefaultSeed()
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	gateway := ai.NewService(
		ai.NewClaudeClient(cfg.AnthropicAPIKey, log),
		ai.NewImageClient(cfg.ImageBaseURL, cfg.ImageAPIKey, cfg.ImageModel, log),
	)

	var recognizer speech.Recognizer = speech.Unsupported{}
	if cloud, err := speech.NewCloudRecognizer(ctx, cfg.SpeechCreds, log); err == nil {
		defer cloud.Close()
		recognizer = cloud
	} else if !errors.Is(err, speech.ErrUnsupported) {
		log.Warn("speech recognition disabled", "error", err)
	}

	speaker := speech.NewSpeaker(cfg.TTSCommand, log)
	if !speaker.Available() {
		log.Warn("text to speech unavailable", "command", cfg.TTSCommand)
	}

	app, err := core.New(ctx, core.Options{
		Seed:               seed,
		Store:              database,
		Gateway:            gateway,
		Speaker:            speaker,
		Recognizer:         recognizer,
		APIKey:             config.KeySource(envFile, "ANTHROPIC_API_KEY"),
		CredentialInterval: cfg.CredentialCheck,
		RandSeed:           cfg.Seed,
		Log:                log,
	})
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer app.Close()
	defer speaker.Stop()

	if cfg.RedisAddr != "" {
		bridge, err := events.NewRedisBridge(ctx, cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			log.Warn("activity sharing disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer bridge.Close()
			defer bridge.Mirror(app.Bus)()
			if err := bridge.StartForwarder(ctx, func(env events.Envelope) {
				app.Feed.Add(core.FeedItemFromEnvelope(env))
			}); err != nil {
				log.Warn("activity forwarding disabled", "error", err)
			}
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewHandler(app, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting web server", "addr", "http://localhost"+srv.Addr, "database", cfg.DatabasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.Credentials.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
