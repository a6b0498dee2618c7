package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/asarvarbek/tgshop-backend/internal/auth"
	"github.com/asarvarbek/tgshop-backend/internal/catalog"
	"github.com/asarvarbek/tgshop-backend/internal/config"
	"github.com/asarvarbek/tgshop-backend/internal/image"
	"github.com/asarvarbek/tgshop-backend/internal/messaging"
	"github.com/asarvarbek/tgshop-backend/internal/orders"
	"github.com/asarvarbek/tgshop-backend/internal/store"
	"github.com/asarvarbek/tgshop-backend/internal/telegram"
	"github.com/asarvarbek/tgshop-backend/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if cfg.BotToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN environment variable is required")
		os.Exit(1)
	}
	adminChatID, err := strconv.ParseInt(cfg.AdminChatID, 10, 64)
	if err != nil {
		logger.Error("ADMIN_CHAT_ID must be a numeric chat id", "value", cfg.AdminChatID)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "tgshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("tgshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	st, err := store.Open(store.Paths{
		DataDir: cfg.DataDir,
		Menu:    cfg.MenuFile,
		Orders:  cfg.OrdersFile,
		Uploads: cfg.UploadsFile,
	}, logger)
	if err != nil {
		logger.Error("failed to open data store", "error", err)
		os.Exit(1)
	}

	bot, err := telegram.NewClient(cfg.BotToken, adminChatID, logger)
	if err != nil {
		logger.Error("failed to start telegram client", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers)
		defer func() { _ = producer.Close() }()
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	authmw := auth.New(cfg.AdminIDs(), logger)
	catalogHandler := catalog.NewHandler(st, bot, image.NewURLChecker(httpClient), cfg.MaxUploadBytes, logger)
	ordersHandler := orders.NewHandler(st, bot, producer, logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	route("GET /menu", catalogHandler.HandleList)
	route("POST /admin/products", authmw.CheckAdmin(catalogHandler.HandleCreate))
	route("PUT /admin/products/{id}", authmw.CheckAdmin(catalogHandler.HandleUpdate))
	route("DELETE /admin/products/{id}", authmw.CheckAdmin(catalogHandler.HandleDelete))
	route("POST /orders", ordersHandler.HandleCreate)
	route("GET /admin/orders", authmw.CheckAdmin(ordersHandler.HandleList))
	route("GET /admin/orders/{id}", authmw.CheckAdmin(ordersHandler.HandleGet))
	route("PUT /admin/orders/{id}/status", authmw.CheckAdmin(ordersHandler.HandleUpdateStatus))
	route("POST /admin/verify", authmw.CheckUser(authmw.HandleVerify))
	mux.Handle("GET /metrics", metricsHandler)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := otelhttp.NewHandler(
		corsMiddleware.Handler(withRequestLog(logger, mux)),
		"tgshop",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()

	listener := telegram.NewListener(bot, st, cfg.AdminIDs(), cfg.WebAppURL, logger)
	go func() {
		if err := listener.Run(listenerCtx); err != nil && listenerCtx.Err() == nil {
			logger.Error("telegram listener stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	stopListener()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// withRequestLog tags every request with an id and logs it on the way in.
func withRequestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		logger.Info("request", "request_id", requestID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
