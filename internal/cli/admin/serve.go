package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/docadmin/internal/api/handlers"
	"github.com/cloo-solutions/docadmin/internal/config"
	"github.com/cloo-solutions/docadmin/internal/database"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/jobs"
	"github.com/cloo-solutions/docadmin/internal/openai"
	"github.com/cloo-solutions/docadmin/internal/repository"
	"github.com/cloo-solutions/docadmin/internal/server"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/cloo-solutions/docadmin/internal/storage"
	"github.com/cloo-solutions/docadmin/internal/telemetry"
	"github.com/cloo-solutions/docadmin/internal/webhook"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the document admin API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL, database.DefaultMigrationsSource); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	storageClient, err := newStorageClient(ctx, cfg)
	if err != nil {
		return err
	}

	svcs := newServices(cfg, pool, storageClient)

	if cfg.InitAdminEmail != "" {
		if err := bootstrapInitialAdmin(ctx, cfg, svcs.auth); err != nil {
			return fmt.Errorf("failed to bootstrap initial admin: %w", err)
		}
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   svcs.auth,
		DocumentHandler: handlers.NewDocumentHandler(svcs.documents, svcs.forward),
		FragmentHandler: handlers.NewFragmentHandler(svcs.fragments),
		AuthHandler:     handlers.NewAuthHandler(svcs.auth),
		MaxBodyBytes:    cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sweeper *jobs.Worker
	if cfg.ForwardSweepInterval > 0 {
		sweeper = jobs.NewWorker("forward sweep",
			jobs.NewPendingForwarder(svcs.documents, svcs.forward, cfg.ForwardSweepBatch),
			cfg.ForwardSweepInterval)
		go sweeper.Start(ctx)
	}

	go func() {
		log.Printf("starting server on port %s (webhook %s, %d retries)", cfg.Port, cfg.WebhookURL, cfg.WebhookMaxRetries)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if sweeper != nil {
		sweeper.Stop()
	}

	// Leave room for an in-flight forward to use its full timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.WebhookTimeout+30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// services bundles everything built from one config and pool
type services struct {
	auth      *service.AuthService
	documents *service.DocumentService
	forward   *service.ForwardService
	fragments *service.FragmentService
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, storageClient service.StorageClientInterface) *services {
	docRepo := repository.NewDocumentRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}

	sender := webhook.NewClient(webhook.Config{
		URL:        cfg.WebhookURL,
		MaxRetries: cfg.WebhookMaxRetries,
		RetryDelay: cfg.WebhookRetryDelay,
		Timeout:    cfg.WebhookTimeout,
	})
	forwardSvc := service.NewForwardService(docRepo, storageClient, sender)

	// A nil *QueryEmbedder must not reach the service as a non-nil interface
	var embedder service.QueryEmbedder
	if cfg.HasOpenAI() {
		embedder = openai.NewQueryEmbedder(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
		})
	}

	return &services{
		auth:      service.NewAuthService(repository.NewAdminUserRepository(pool), repository.NewAPIKeyRepository(pool), uuidGen),
		documents: service.NewDocumentServiceWithUUIDGen(docRepo, storageClient, uuidGen),
		forward:   forwardSvc,
		fragments: service.NewFragmentService(repository.NewFragmentRepository(pool), forwardSvc, embedder),
	}
}

func newStorageClient(ctx context.Context, cfg *config.Config) (service.StorageClientInterface, error) {
	if !cfg.HasS3() {
		log.Println("S3 not configured: document uploads and downloads are disabled")
		return &NoOpStorage{}, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return s3Client, nil
}

// NoOpStorage stands in for the object store when S3 is not configured
type NoOpStorage struct{}

func (s *NoOpStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return domain.ErrStorageNotConfigured
}

func (s *NoOpStorage) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, domain.ErrStorageNotConfigured
}

func (s *NoOpStorage) Remove(ctx context.Context, key string) error {
	return domain.ErrStorageNotConfigured
}

func (s *NoOpStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "", domain.ErrStorageNotConfigured
}

func bootstrapInitialAdmin(ctx context.Context, cfg *config.Config, authSvc *service.AuthService) error {
	admin, created, err := authSvc.EnsureAdmin(ctx, cfg.InitAdminEmail)
	if err != nil {
		return err
	}
	if created {
		log.Printf("bootstrap: created admin '%s' (id: %s)", admin.Email, admin.ID)
	} else {
		log.Printf("bootstrap: admin '%s' already exists (id: %s)", admin.Email, admin.ID)
	}

	if cfg.InitAPIKey == "" {
		return nil
	}

	_, err = authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey)
	switch {
	case err == nil:
		log.Printf("bootstrap: API key already exists")
		return nil
	case errors.Is(err, domain.ErrAPIKeyRevoked):
		log.Printf("bootstrap: INIT_API_KEY was revoked, not recreating it")
		return nil
	}

	if err := authSvc.CreateAPIKeyWithToken(ctx, admin.ID, "bootstrap", cfg.InitAPIKey); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	log.Printf("bootstrap: created API key")
	return nil
}
