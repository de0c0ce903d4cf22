package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/email"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full application: database pool, S3 client, repositories,
// services, handlers and middleware. The returned pool is closed by the
// caller on shutdown.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	dsn := cfg.DBConnectionString
	// Local Postgres usually runs without SSL; hosted connection strings are
	// expected to carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	s3Config, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})
	store := storage.NewS3Store(s3Client, cfg.S3URL, cfg.S3Bucket, cfg.S3BucketPublic, time.Duration(cfg.SignedURLTTLSec)*time.Second)

	validate := validator.New(validator.WithRequiredStructEnabled())

	var sender email.Sender = email.NoOpSender{}
	if cfg.SMTPHost != "" {
		sender = email.NewSMTPSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn().Msg("SMTP_HOST not set, booking inquiries will be logged and dropped")
	}

	entitlementRepo := repository.NewEntitlementRepo(pool)
	paymentEventRepo := repository.NewPaymentEventRepo(pool)
	auditRepo := repository.NewAuditRepo(pool, logger)

	entitlementSvc := service.NewEntitlementService(entitlementRepo, cfg.FreeMonthlyLimit, logger)
	editor := service.NewGeminiEditor(cfg.GeminiAPIKey, cfg.GeminiModel, time.Duration(cfg.GenerationTimeoutSec)*time.Second)
	generationSvc := service.NewGenerationService(entitlementSvc, editor, auditRepo, store, time.Duration(cfg.GenerationTimeoutSec)*time.Second, logger)
	stripeSvc := service.NewStripeService(cfg, paymentEventRepo, logger)
	bookingSvc := service.NewBookingService(sender, cfg.BookingInbox, logger)

	quotaHandler := handler.NewQuotaHandler(entitlementSvc, logger)
	styleHandler := handler.NewStyleHandler(generationSvc, validate, logger)
	billingHandler := handler.NewBillingHandler(cfg, stripeSvc, validate, logger)
	bookingHandler := handler.NewBookingHandler(bookingSvc, validate, logger)
	generationsHandler := handler.NewGenerationsHandler(generationSvc, cfg.AdminToken, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	styleLimiter := middleware.NewRateLimiter(time.Minute, cfg.StyleRateLimitPerMin)
	bookingLimiter := middleware.NewRateLimiter(time.Minute, cfg.BookingRateLimitPerMin)

	apiV1Mux := http.NewServeMux()
	quotaHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	styleHandler.RegisterRoutes(apiV1Mux, func(next http.Handler) http.Handler {
		return middleware.RateLimitMiddleware(styleLimiter)(authMiddleware(next))
	})
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	bookingHandler.RegisterRoutes(apiV1Mux, middleware.RateLimitMiddleware(bookingLimiter))
	generationsHandler.RegisterRoutes(apiV1Mux)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.SiteOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Token", "X-Request-Id"},
		AllowCredentials: true,
	})

	return middleware.RequestIDMiddleware(logger)(c.Handler(mux)), pool, nil
}

// removeDisableGzip works around S3 signature errors with some S3-compatible
// services. See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
