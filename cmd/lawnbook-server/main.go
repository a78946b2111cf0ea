package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/green-horizons/lawnbook/internal/booking"
	"github.com/green-horizons/lawnbook/internal/events"
	"github.com/green-horizons/lawnbook/internal/handlers"
	"github.com/green-horizons/lawnbook/internal/sms"
	"github.com/green-horizons/lawnbook/internal/storage"
	"github.com/green-horizons/lawnbook/libs/config"
	"github.com/green-horizons/lawnbook/libs/httpx"
	"github.com/green-horizons/lawnbook/libs/kafkax"
	otelx "github.com/green-horizons/lawnbook/libs/otel"
	"github.com/green-horizons/lawnbook/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "lawnbook")
	port, err := config.Port("PORT", "3001")
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

	store, err := storage.Open(config.String("DATA_DIR", "data"))
	if err != nil {
		logger.Error("store open failed", "err", err)
		panic(err)
	}

	var sender sms.Sender
	accountSID := config.String("TWILIO_ACCOUNT_SID", "")
	authToken := config.String("TWILIO_AUTH_TOKEN", "")
	fromNumber := config.String("TWILIO_PHONE_NUMBER", "")
	if accountSID != "" && authToken != "" && fromNumber != "" {
		sender = sms.NewTwilioSender(accountSID, authToken, fromNumber)
	} else {
		logger.Warn("twilio credentials not set, sms confirmations disabled")
		sender = sms.NewNoopSender()
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	publisher := events.NewPublisher(logger, kafkaBrokers)
	go publisher.Run(ctx)

	smsTimeout := time.Duration(config.Int("SMS_TIMEOUT_SECONDS", 5)) * time.Second
	svc := booking.NewService(store, sender, publisher, logger, smsTimeout)

	bookingHandler := handlers.NewBookingHandler(svc, store, logger)
	webhookHandler := handlers.NewSMSWebhookHandler(svc, logger)
	adminHandler := handlers.NewAdminHandler(
		store,
		logger,
		config.String("ADMIN_PASSWORD_HASH", ""),
		config.String("ADMIN_TOKEN_SECRET", "dev-secret"),
		time.Duration(config.Int("ADMIN_TOKEN_TTL_SECONDS", 3600))*time.Second,
	)

	readyChecks := []runtime.ReadyCheck{
		{Name: "store", Check: store.ReadyCheck()},
	}
	if strings.TrimSpace(kafkaBrokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("/api/health", bookingHandler.Health)
	mux.HandleFunc("/api/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			bookingHandler.List(w, r)
		case http.MethodPost:
			bookingHandler.Create(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/appointments/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/available-slots", bookingHandler.AvailableSlots)
	mux.HandleFunc("/api/sms-webhook", webhookHandler.Inbound)
	mux.HandleFunc("/api/admin/login", adminHandler.Login)
	mux.HandleFunc("/api/admin/appointments", adminHandler.Appointments)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "*")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		rateLimitMW,
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
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
