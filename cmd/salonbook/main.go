package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/myasnails/salonbook/internal/auth"
	"github.com/myasnails/salonbook/internal/availability"
	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/consumer"
	"github.com/myasnails/salonbook/internal/gallery"
	"github.com/myasnails/salonbook/internal/handlers"
	"github.com/myasnails/salonbook/internal/inbox"
	"github.com/myasnails/salonbook/internal/notify"
	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/internal/payments"
	"github.com/myasnails/salonbook/internal/schedule"
	"github.com/myasnails/salonbook/internal/storage"
	"github.com/myasnails/salonbook/internal/sweep"
	"github.com/myasnails/salonbook/libs/config"
	"github.com/myasnails/salonbook/libs/db"
	"github.com/myasnails/salonbook/libs/httpx"
	"github.com/myasnails/salonbook/libs/kafkax"
	otelx "github.com/myasnails/salonbook/libs/otel"
	"github.com/myasnails/salonbook/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load(".env")

	service := config.String("SERVICE_NAME", "salonbook")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	// Repositories.
	bookingRepo := storage.NewBookingRepository(pool)
	availabilityRepo := storage.NewAvailabilityRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	galleryRepo := storage.NewGalleryRepository(pool)
	notificationsRepo := storage.NewNotificationsRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	// Payments.
	stripeKey, err := config.RequiredString("STRIPE_SECRET_KEY")
	if err != nil {
		panic(err)
	}
	provider, err := payments.NewStripeProvider(payments.StripeConfig{
		SecretKey:     stripeKey,
		WebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
		DepositCents:  int64(config.Int("DEPOSIT_CENTS", 2000)),
		Currency:      config.String("DEPOSIT_CURRENCY", "usd"),
		ProductName:   config.String("DEPOSIT_PRODUCT_NAME", "Nail Deposit"),
		SuccessURL:    config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/booked?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/book"),
	})
	if err != nil {
		panic(err)
	}

	// Domain services.
	pendingGrace := config.Minutes("PENDING_GRACE_MINUTES", 0)
	engine := availability.NewEngine(availabilityRepo, bookingRepo, pendingGrace)
	bookingSvc := booking.NewService(bookingRepo, engine, provider, outboxRepo, logger)
	scheduleSvc := schedule.NewService(scheduleRepo, availabilityRepo)

	blobs := gallery.NewSupabaseStore(
		config.String("STORAGE_URL", ""),
		config.String("STORAGE_BUCKET", "gallery"),
		config.String("STORAGE_SERVICE_KEY", ""),
	)
	gallerySvc := gallery.NewService(galleryRepo, blobs, logger)

	owner := auth.NewOwner(
		config.String("OWNER_PASSWORD_HASH", ""),
		config.String("SESSION_SECRET", ""),
		config.Minutes("SESSION_TTL_MINUTES", 12*time.Hour),
	)

	// Background workers.
	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sweepWorker := sweep.NewWorker(
		bookingRepo,
		storage.NewReminderTx(pool, bookingRepo, outboxRepo),
		logger,
		config.Minutes("SWEEP_INTERVAL_MINUTES", time.Hour),
	)
	go sweepWorker.Run(ctx)

	smsSender := newSMSSender()
	emailSender := notify.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@salonbook.local"),
	)
	dispatcher := notify.NewDispatcher(
		smsSender,
		emailSender,
		config.String("OWNER_EMAIL", ""),
		config.String("SALON_NAME", "Mya's Nails"),
		notificationsRepo,
		logger,
	)
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "salonbook-notify"),
		Topics: []string{
			outbox.EventBookingConfirmed,
			outbox.EventBookingCancelled,
			outbox.EventBookingUpdated,
			outbox.EventReminderDue,
		},
	}, dispatcher.Handle)
	go eventConsumer.Run(ctx)

	// HTTP surface.
	bookingHandler := handlers.NewBookingHandler(bookingSvc, engine, provider, logger)
	adminHandler := handlers.NewAdminHandler(bookingSvc, availabilityRepo, scheduleSvc, sweepWorker, logger)
	galleryHandler := handlers.NewGalleryHandler(gallerySvc, logger)
	authHandler := handlers.NewAuthHandler(owner, config.String("COOKIE_SECURE", "true") == "true", logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	bookLimiter := newBookLimiter(logger)
	mux.Handle("/api/v1/public/book", bookLimiter(http.HandlerFunc(bookingHandler.Book)))
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/payments/confirm", bookingHandler.ConfirmPayment)
	mux.HandleFunc("/api/v1/public/gallery", galleryHandler.List)
	mux.HandleFunc("/api/v1/webhooks/stripe", bookingHandler.StripeWebhook)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/auth/logout", authHandler.Logout)

	ownerOnly := owner.RequireOwner
	mux.Handle("/api/v1/bookings", ownerOnly(http.HandlerFunc(adminHandler.ListBookings)))
	mux.Handle("/api/v1/bookings/edit", ownerOnly(http.HandlerFunc(adminHandler.EditBooking)))
	mux.Handle("/api/v1/bookings/cancel", ownerOnly(http.HandlerFunc(adminHandler.CancelBooking)))
	mux.Handle("/api/v1/schedule", ownerOnly(http.HandlerFunc(adminHandler.Schedule)))
	mux.Handle("/api/v1/availability", ownerOnly(http.HandlerFunc(adminHandler.Availability)))
	mux.Handle("/api/v1/availability/generate", ownerOnly(http.HandlerFunc(adminHandler.GenerateMonth)))
	mux.Handle("/api/v1/gallery/upload", ownerOnly(http.HandlerFunc(galleryHandler.Upload)))
	mux.Handle("/api/v1/gallery/delete", ownerOnly(http.HandlerFunc(galleryHandler.Delete)))
	mux.Handle("/api/v1/sweep/run", ownerOnly(http.HandlerFunc(adminHandler.RunSweep)))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(12<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   strings.Split(config.String("CORS_ORIGINS", ""), ","),
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
	)
	handler = otelhttp.NewHandler(handler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("shut down cleanly")
}

func newSMSSender() notify.SMSSender {
	key := config.String("SMS_GATEWAY_KEY", "")
	if key == "" {
		return notify.NewNoopSender()
	}
	return notify.NewTextbeltSender(config.String("SMS_GATEWAY_URL", ""), key)
}

// newBookLimiter rate limits the public booking form. With REDIS_URL set the
// window is shared across replicas; otherwise it falls back to in-process.
func newBookLimiter(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("BOOK_RATE_LIMIT", 10)
	window := config.Minutes("BOOK_RATE_WINDOW_MINUTES", time.Minute)

	redisURL := config.String("REDIS_URL", "")
	if redisURL == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	rdb := redis.NewClient(opts)
	return httpx.NewRedisRateLimiter(rdb, limit, window, "rl:book").Middleware(logger, true)
}
