// @title Event Portal API
// @version 1.0
// @description Event catalog, registrations and mobile money payments.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventportal/config"
	_ "eventportal/docs"
	"eventportal/internal/adapters/auth"
	"eventportal/internal/adapters/awsconfig"
	"eventportal/internal/adapters/broker"
	"eventportal/internal/adapters/email"
	"eventportal/internal/adapters/mobilemoney"
	"eventportal/internal/adapters/ratelimit"
	"eventportal/internal/adapters/sms"
	httpdelivery "eventportal/internal/delivery/http"
	"eventportal/internal/delivery/http/controllers"
	"eventportal/internal/domain"
	"eventportal/internal/repository/postgres"
	"eventportal/internal/services"
	"eventportal/internal/worker"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	codeRepo := postgres.NewVerificationCodeRepository(db)
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	loginCodeRepo := postgres.NewLoginCodeRepository(db)

	// Adapters
	tokens := auth.NewJWT(cfg.Auth.JWTSecret)
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES:         awsSettings(cfg.Email.AWS),
	}, logger)
	if err != nil {
		return err
	}
	smsSender := sms.NewSender(sms.SenderConfig{
		Provider: cfg.SMS.Provider,
		SenderID: cfg.SMS.SenderID,
		SNS:      awsSettings(cfg.SMS.AWS),
	}, logger)

	rdb := ratelimit.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := ratelimit.NewRedisLimiter(rdb, "eventportal", logger)

	var gateway domain.PaymentGateway
	if cfg.SandboxPayments() {
		logger.Warn("using sandbox payment gateway")
		gateway = mobilemoney.NewSandbox()
	} else {
		if cfg.Payments.BaseURL == "" {
			return errors.New("PAYMENT_API_URL is required unless PAYMENT_SANDBOX is enabled outside production")
		}
		gateway = mobilemoney.NewClient(cfg.Payments.BaseURL, cfg.Payments.APIKey, nil)
	}
	if cfg.Payments.WebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET is empty, payment webhooks will be rejected")
	}

	// Services
	timeout := cfg.RequestTimeout
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer(), logger)
	notifier := services.NewNotificationService(userRepo, eventRepo, emailService, timeout)

	var publisher domain.ConfirmationPublisher
	var consumer *worker.NotificationConsumer
	if cfg.RabbitMQ.URL != "" {
		pub, err := broker.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = pub

		sub, err := broker.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue,
			[]string{broker.RoutingKeyRegistrationConfirmed}, 10, logger)
		if err != nil {
			return err
		}
		defer sub.Close()
		deliveries, err := sub.Consume("eventportal-notifications")
		if err != nil {
			return err
		}
		consumer = worker.NewNotificationConsumer(deliveries, notifier, logger)
	} else {
		logger.Info("RABBITMQ_URL not set, confirmation emails are sent in-process")
		publisher = services.NewDirectPublisher(notifier, logger)
	}

	watcher := worker.NewPaymentWatcher(cfg.Payments.Watchers, logger)
	poll := services.PollPolicy{
		Initial:     cfg.Payments.PollInitial,
		MaxInterval: cfg.Payments.PollMaxInterval,
		Multiplier:  cfg.Payments.PollMultiplier,
		MaxElapsed:  cfg.Payments.PollMaxElapsed,
	}

	userService := services.NewUserService(userRepo, roleRepo, loginCodeRepo, tokens, cfg.Auth.TokenExpiry, emailService, cfg.Auth.BootstrapAdmins)
	adminService := services.NewAdminService(userRepo, roleRepo, timeout)
	eventService := services.NewEventService(eventRepo, categoryRepo, registrationRepo, timeout)
	registrationService := services.NewRegistrationService(registrationRepo, eventRepo, cfg.Registrations.PendingTTL, timeout)
	verificationService := services.NewVerificationService(codeRepo, registrationRepo, userRepo,
		auth.NewBcryptCodeHasher(0), smsSender, limiter, timeout, logger)
	paymentService := services.NewPaymentService(paymentRepo, registrationRepo, eventRepo, gateway, publisher, watcher,
		cfg.Payments.WebhookSecret, poll, timeout, logger)

	// Workers
	reaper := worker.NewReaper(registrationService, cfg.Registrations.ReaperInterval, logger)
	reaper.Start(ctx)
	defer reaper.Stop()
	watcher.Start(ctx, paymentService, paymentService)
	defer watcher.Stop()
	if consumer != nil {
		consumer.Start(ctx)
		defer func() {
			cancel()
			<-consumer.Done()
		}()
	}

	// HTTP
	mux := httpdelivery.NewRouter(httpdelivery.Controllers{
		Health:        controllers.NewHealthController(logger, db),
		Auth:          controllers.NewAuthController(logger, userService),
		User:          controllers.NewUserController(logger, userService),
		Event:         controllers.NewEventController(logger, eventService),
		Registration:  controllers.NewRegistrationController(logger, registrationService, verificationService),
		Payment:       controllers.NewPaymentController(logger, paymentService),
		Admin:         controllers.NewAdminController(logger, adminService, registrationService),
		TokenVerifier: tokens,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpdelivery.NewHandler(mux, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func awsSettings(c config.AWSConfig) awsconfig.Settings {
	return awsconfig.Settings{
		Region:             c.Region,
		AccessKeyID:        c.AccessKeyID,
		SecretAccessKey:    c.SecretAccessKey,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}
