package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/app"
	"github.com/arielskeren/Auraesthetics-sub002/internal/calendar"
	"github.com/arielskeren/Auraesthetics-sub002/internal/clock"
	"github.com/arielskeren/Auraesthetics-sub002/internal/config"
	"github.com/arielskeren/Auraesthetics-sub002/internal/gateway"
	"github.com/arielskeren/Auraesthetics-sub002/internal/mailer"
	"github.com/arielskeren/Auraesthetics-sub002/internal/notify"
	"github.com/arielskeren/Auraesthetics-sub002/internal/scheduling"
	"github.com/arielskeren/Auraesthetics-sub002/internal/storage/postgres"
	transporthttp "github.com/arielskeren/Auraesthetics-sub002/internal/transport/http"
	"github.com/arielskeren/Auraesthetics-sub002/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	loadEnvFile(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	ledger := postgres.NewLedger(pool)
	clk := clock.NewSystem()

	var (
		gw    gateway.Gateway
		omise *gateway.OmiseGateway
	)
	switch cfg.Processor {
	case "omise":
		omise, err = gateway.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey)
		if err != nil {
			logger.Fatalf("omise client: %v", err)
		}
		gw = omise
	case "stripe":
		if cfg.StripeSecretKey == "" {
			logger.Fatalf("STRIPE_SECRET_KEY is required for the stripe processor")
		}
		gw = gateway.NewStripe(cfg.StripeSecretKey)
	default:
		logger.Fatalf("unknown payment processor %q", cfg.Processor)
	}

	sched := scheduling.New(cfg.SchedulingBaseURL, cfg.SchedulingAPIKey)

	var cal app.CalendarAPI
	if cfg.CalendarBaseURL != "" {
		cal = calendar.New(cfg.CalendarBaseURL, cfg.CalendarAPIKey)
	}

	var pub app.EventPublisher
	var publisher *notify.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = notify.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			logger.Fatalf("rabbitmq publisher: %v", err)
		}
		defer publisher.Close()
		pub = publisher
	}

	sideEffects := app.NewSideEffects(ledger, cal, sched, pub, clk)
	finalizeSvc := app.NewFinalizeService(ledger, gw, sched, sideEffects, clk)
	refundSvc := app.NewRefundService(ledger, gw, sched, sideEffects, clk)
	webhookSvc := app.NewWebhookService(ledger, finalizeSvc, sched, cal, clk)
	bookingSvc := app.NewBookingService(ledger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if cfg.RabbitURL != "" && cfg.MailBaseURL != "" {
		mail := mailer.New(cfg.MailBaseURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailFromName)
		worker := notify.NewWorker(mail, ledger, uuid.NewString)
		if err := worker.Connect(cfg.RabbitURL, cfg.RabbitExchange, "booking-notify"); err != nil {
			logger.Fatalf("rabbitmq worker: %v", err)
		}
		defer worker.Close()
		go func() {
			if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("notify worker stopped: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/bookings/", transporthttp.HandleBookings(bookingSvc, refundSvc, refundSvc))
	switch cfg.Processor {
	case "stripe":
		mux.Handle("/webhooks/stripe", transporthttp.HandleStripeWebhook(webhookSvc, cfg.StripeWebhookSecret))
	case "omise":
		mux.Handle("/webhooks/omise", transporthttp.HandleOmiseWebhook(webhookSvc, omise))
	}
	mux.Handle("/", transporthttp.NotFoundHandler())

	corsOrigins := parseCSV(cfg.CORSOrigins)
	handler := transporthttp.RequestLogger(transporthttp.CORS(corsOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Infof("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func loadEnvFile(logger *logrus.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Warnf("failed to locate .env: %v", err)
		return
	}
	if path == "" {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warnf("failed to open %s: %v", path, err)
		return
	}
	if err := parseEnvFile(logger, file); err != nil {
		logger.Warnf("failed to load %s: %v", path, err)
	} else {
		logger.Infof("loaded env from %s", path)
	}
	_ = file.Close()
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *logrus.Logger, file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		value = trimQuotes(value)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Warnf("failed to set %s from env file", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
