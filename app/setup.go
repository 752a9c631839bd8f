package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/api"
	"github.com/sahilchouksey/active-classroom-api/config"
	"github.com/sahilchouksey/active-classroom-api/database"
	"github.com/sahilchouksey/active-classroom-api/router"
	"github.com/sahilchouksey/active-classroom-api/services"
	"github.com/sahilchouksey/active-classroom-api/services/cron"
	"github.com/sahilchouksey/active-classroom-api/services/events"
	"github.com/sahilchouksey/active-classroom-api/services/sslcommerz"
	"github.com/sahilchouksey/active-classroom-api/services/storage"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"github.com/sahilchouksey/active-classroom-api/utils/cache"
	"github.com/sahilchouksey/active-classroom-api/utils/middleware"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		log.Warnf("No .env file loaded: %v", err)
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	if getEnv.IDENTITY_JWT_SECRET == "" {
		return fmt.Errorf("IDENTITY_JWT_SECRET environment variable is not set")
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		log.Errorf("Check whether Postgres is running at %s:%s", getEnv.DB_HOST, getEnv.DB_PORT)
		return err
	}

	if err := store.Init(); err != nil {
		log.Error("Failed to initialize database tables")
		return err
	}
	db := store.GetDB()

	// Optional integrations degrade to no-ops
	var opts []services.PaymentOption
	var closers []func() error

	opts = append(opts, services.WithNotifier(services.NewNotificationService(
		db, newMailer(getEnv), newInvoiceStore(getEnv), services.DefaultRetryPolicy)))

	if len(getEnv.KAFKA_BROKERS) > 0 {
		producer, err := events.NewProducer(getEnv.KAFKA_BROKERS, getEnv.KAFKA_ENROLLMENT_TOPIC)
		if err != nil {
			log.Warnf("[EVENTS] %v. Enrollment events will not be published.", err)
		} else {
			opts = append(opts, services.WithPublisher(producer))
			closers = append(closers, producer.Close)
		}
	}

	if getEnv.REDIS_URL != "" {
		redisCache, err := cache.NewRedisCache(getEnv.REDIS_URL)
		if err != nil {
			log.Warnf("Failed to connect to Redis: %v. IPN in-flight guard will be disabled.", err)
		} else {
			opts = append(opts, services.WithInflightGuard(redisCache))
			closers = append(closers, redisCache.Close)
		}
	}

	gateway := sslcommerz.NewClient(sslcommerz.Config{
		StoreID:       getEnv.SSLCOMMERZ_STORE_ID,
		StorePassword: getEnv.SSLCOMMERZ_STORE_PASSWORD,
		IsLive:        getEnv.SSLCOMMERZ_IS_LIVE,
		Timeout:       time.Duration(getEnv.GATEWAY_TIMEOUT_SECONDS) * time.Second,
	})

	payments := services.NewPaymentService(db, gateway, services.PaymentConfig{
		BackendURL:  getEnv.BACKEND_URL,
		FrontendURL: getEnv.FRONTEND_URL,
		Currency:    getEnv.PAYMENT_CURRENCY,
	}, opts...)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED {
		cronManager = cron.NewCronManager(db, payments, cron.DefaultSchedule)
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warnf("Failed to start cron jobs: %v", err)
			cronManager = nil
		}
	}

	// Defer stopping cron jobs, draining side effects and closing connections
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		payments.Wait()
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Warnf("Close failed: %v", err)
			}
		}
		store.Close()
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, router.Dependencies{
		Store: store,
		Verifier: auth.NewJWTManager(auth.JWTConfig{
			Secret: getEnv.IDENTITY_JWT_SECRET,
			Issuer: getEnv.IDENTITY_JWT_ISSUER,
		}),
		Payments: payments,
		Security: middleware.SecurityConfig{
			AllowedOrigins:    getEnv.ALLOWED_ORIGINS,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			UnlimitedPrefixes: router.GatewayCallbackPaths,
		},
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Errorf("Server shutdown failed: %v", err)
		}
	}()

	// Get the PORT & Start the Server
	return server.Run()
}

// newMailer prefers SendGrid, then SMTP, then a logger
func newMailer(env *config.EnviornmentVariable) services.Mailer {
	if env.SENDGRID_API_KEY != "" {
		log.Info("[MAIL] Using SendGrid")
		return services.NewSendGridMailer(env.SENDGRID_API_KEY, env.MAIL_FROM, "")
	}

	smtpMailer := services.NewEmailService(services.SMTPConfig{
		Host:     env.SMTP_HOST,
		Port:     env.SMTP_PORT,
		Username: env.SMTP_USERNAME,
		Password: env.SMTP_PASSWORD,
		From:     env.MAIL_FROM,
	})
	if smtpMailer.IsConfigured() {
		log.Infof("[MAIL] Using SMTP %s:%d", env.SMTP_HOST, env.SMTP_PORT)
		return smtpMailer
	}

	log.Warn("[MAIL] No mail transport configured. Invoices will only be logged.")
	return services.NoopMailer{}
}

// newInvoiceStore returns nil when invoice storage is not configured
func newInvoiceStore(env *config.EnviornmentVariable) services.InvoiceStore {
	cfg := storage.SpacesConfig{
		AccessKey: env.INVOICE_ACCESS_KEY,
		SecretKey: env.INVOICE_SECRET_KEY,
		Bucket:    env.INVOICE_BUCKET,
		Region:    env.INVOICE_REGION,
		Endpoint:  env.INVOICE_ENDPOINT,
		CDNURL:    env.INVOICE_CDN_URL,
	}
	if !cfg.Configured() {
		return nil
	}

	client, err := storage.NewSpacesClient(cfg)
	if err != nil {
		log.Warnf("[MAIL] Invoice storage disabled: %v", err)
		return nil
	}
	return client
}
