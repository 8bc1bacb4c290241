package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arijit65/marriage-app-sub001/internal/cache"
	"github.com/Arijit65/marriage-app-sub001/internal/config"
	"github.com/Arijit65/marriage-app-sub001/internal/database"
	"github.com/Arijit65/marriage-app-sub001/internal/gateway"
	"github.com/Arijit65/marriage-app-sub001/internal/handlers"
	"github.com/Arijit65/marriage-app-sub001/internal/middleware"
	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/service"
	"github.com/Arijit65/marriage-app-sub001/internal/worker"
)

var db *database.DB
var redisClient *cache.Redis

type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Timestamp string `json:"timestamp"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := db.Ping(); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := redisClient.Ping(); err != nil {
		redisStatus = "disconnected"
	}

	response := HealthResponse{
		Status:    "healthy",
		Database:  dbStatus,
		Redis:     redisStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// logNotifier and logEntitlementSink stand in for the notification and
// account services, which consume these events elsewhere in the
// platform. Both are idempotent from the dispatcher's point of view.
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, topic, payload string) error {
	log.Printf("Notify %s: %s", topic, payload)
	return nil
}

type logEntitlementSink struct{}

func (logEntitlementSink) Activate(ctx context.Context, subject models.SubjectRef, planID *string) error {
	plan := "default"
	if planID != nil {
		plan = *planID
	}
	log.Printf("Activate plan %s for %s", plan, subject)
	return nil
}

func main() {
	var err error
	cfg := config.Load()

	// Connect to database
	db, err = database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	err = db.RunMigrations("internal/database/migrations")
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Connect to Redis
	redisClient, err = cache.NewRedis(cfg.RedisAddr())
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Wire services
	gw := gateway.NewRazorpayClient(cfg.GatewayBaseURL, cfg.GatewayKeyID,
		cfg.GatewayKeySecret, cfg.GatewayTimeout, cfg.GatewayMaxRetries)
	proposalSvc := service.NewProposalService(db, cfg.ProposalTTL)
	paymentSvc := service.NewPaymentService(db, gw)

	proposalHandler := handlers.NewProposalHandler(proposalSvc)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	sweeper := worker.NewSweeper(proposalSvc, cfg.SweepInterval)
	dispatcher := worker.NewDispatcher(db, db, logEntitlementSink{}, logNotifier{},
		cfg.OutboxInterval, cfg.PaymentAbandonWindow)
	go sweeper.Run(workerCtx)
	go dispatcher.Run(workerCtx)

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler)

	mux.HandleFunc("/proposals", proposalHandler.Collection)
	mux.HandleFunc("/proposals/", proposalHandler.Item)

	mux.HandleFunc("/payments/subscribe", paymentHandler.Subscribe)
	mux.HandleFunc("/payments/verify", paymentHandler.Verify)
	mux.HandleFunc("/payments/orders/", paymentHandler.GetOrder)
	mux.HandleFunc("/payments/", paymentHandler.Item)

	// Apply middleware. The gateway callback is exempt from the
	// idempotency layer: Razorpay sends no Idempotency-Key and
	// VerifyCallback replays are no-ops at the service layer.
	handler := middleware.RateLimiter(redisClient, cfg.RateLimit, cfg.RateLimitWindow)(
		middleware.Idempotency(redisClient, "/payments/verify")(mux),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		log.Println("Available endpoints:")
		log.Println("  GET  /health")
		log.Println("  POST /proposals")
		log.Println("  GET  /proposals?member={id}")
		log.Println("  GET  /proposals/{id}")
		log.Println("  PUT  /proposals/{id}/respond")
		log.Println("  PUT  /proposals/{id}/withdraw")
		log.Println("  POST /payments/subscribe")
		log.Println("  POST /payments/verify")
		log.Println("  POST /payments/{id}/cancel")
		log.Println("  GET  /payments/orders/{id}")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown: stop scheduling worker batches, then drain the
	// server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
