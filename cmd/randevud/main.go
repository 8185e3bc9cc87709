package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/randevuhq/randevu/internal/availability"
	"github.com/randevuhq/randevu/internal/booking"
	"github.com/randevuhq/randevu/internal/handlers"
	"github.com/randevuhq/randevu/internal/intent"
	"github.com/randevuhq/randevu/internal/notify"
	"github.com/randevuhq/randevu/internal/outbox"
	"github.com/randevuhq/randevu/internal/reminder"
	"github.com/randevuhq/randevu/internal/storage"
	"github.com/randevuhq/randevu/libs/config"
	"github.com/randevuhq/randevu/libs/db"
	"github.com/randevuhq/randevu/libs/httpx"
	"github.com/randevuhq/randevu/libs/kafkax"
	otelx "github.com/randevuhq/randevu/libs/otel"
	"github.com/randevuhq/randevu/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func mustClock(key, fallback string) availability.ClockTime {
	ct, err := availability.ParseClock(config.String(key, fallback))
	if err != nil {
		panic(err)
	}
	return ct
}

func main() {
	service := config.String("SERVICE_NAME", "randevud")
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

	tzName := config.String("TIMEZONE", "Europe/Istanbul")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		logger.Error("invalid TIMEZONE, falling back to UTC", "value", tzName, "err", err)
		loc = time.UTC
	}
	workStart := mustClock("WORK_START", "09:00")
	workEnd := mustClock("WORK_END", "18:00")
	slotMinutes := config.Int("SLOT_MINUTES", 60)
	meetingLink := config.String("MEETING_LINK_URL", "")

	store := storage.New(pool)
	outboxRepo := outbox.NewRepository(pool)
	booker := booking.NewService(store, outboxRepo)

	var sender notify.Sender
	accessToken := config.String("WHATSAPP_ACCESS_TOKEN", "")
	phoneNumberID := config.String("WHATSAPP_PHONE_NUMBER_ID", "")
	if accessToken != "" && phoneNumberID != "" {
		sender = notify.NewWhatsAppSender(accessToken, phoneNumberID)
	} else {
		logger.Warn("whatsapp credentials missing; outbound messages are dropped")
		sender = notify.NewNoopSender()
	}
	sender = notify.NewRecordedSender(sender, store, logger)

	offsets := reminder.ParseOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	sched := reminder.NewScheduler(store, sender, reminder.SystemClock(), logger, reminder.Config{
		Offsets:     offsets,
		Location:    loc,
		MeetingLink: meetingLink,
	})
	go sched.Run(ctx)
	if err := sched.ReconcileAll(ctx); err != nil {
		logger.Error("initial reminder reconcile failed", "err", err)
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	router := intent.NewRouter(store, booker, sender, sched, reminder.SystemClock(), logger, intent.Config{
		WorkStart:   workStart,
		WorkEnd:     workEnd,
		SlotMinutes: slotMinutes,
		Location:    loc,
		MeetingLink: meetingLink,
	})

	jwtSecret := config.String("JWT_SECRET", "dev-secret-change-me")
	authHandler := handlers.NewAuthHandler(pool, store, outboxRepo, sched, logger, jwtSecret, 24*time.Hour)
	apptHandler := handlers.NewAppointmentHandler(store, booker, sched, sender, logger, handlers.ScheduleConfig{
		WorkStart:   workStart,
		WorkEnd:     workEnd,
		SlotMinutes: slotMinutes,
		Location:    loc,
		MeetingLink: meetingLink,
	})
	webhookHandler := handlers.NewWebhookHandler(store, router, logger,
		config.String("WHATSAPP_VERIFY_TOKEN", ""))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("POST /v1/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)
	mux.HandleFunc("GET /v1/auth/me", handlers.RequireAuth(jwtSecret, authHandler.Me))
	mux.HandleFunc("GET /v1/appointments", handlers.RequireAuth(jwtSecret, apptHandler.List))
	mux.HandleFunc("GET /v1/appointments/upcoming", handlers.RequireAuth(jwtSecret, apptHandler.Upcoming))
	mux.HandleFunc("POST /v1/appointments", handlers.RequireAuth(jwtSecret, apptHandler.Create))
	mux.HandleFunc("DELETE /v1/appointments/{id}", handlers.RequireAuth(jwtSecret, apptHandler.Cancel))
	mux.HandleFunc("GET /v1/slots", handlers.RequireAuth(jwtSecret, apptHandler.Slots))
	mux.HandleFunc("GET /v1/webhook/whatsapp/{tenantKey}", webhookHandler.Verify)
	mux.HandleFunc("POST /v1/webhook/whatsapp/{tenantKey}", webhookHandler.Receive)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB := config.Int("REDIS_DB", 0)
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	requestTimeout := time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", tzName, "slot_minutes", slotMinutes)
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
