package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"github.com/xiaot623/orderdesk/internal/adapter/calendar"
	"github.com/xiaot623/orderdesk/internal/adapter/gmail"
	"github.com/xiaot623/orderdesk/internal/adapter/googleauth"
	"github.com/xiaot623/orderdesk/internal/adapter/llm"
	"github.com/xiaot623/orderdesk/internal/config"
	"github.com/xiaot623/orderdesk/internal/metrics"
	store "github.com/xiaot623/orderdesk/internal/repository"
	"github.com/xiaot623/orderdesk/internal/service"
	"github.com/xiaot623/orderdesk/internal/tools"
	server "github.com/xiaot623/orderdesk/internal/transport/http"
	"github.com/xiaot623/orderdesk/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting orderdesk...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM URL: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)
	log.Printf("Calendar: %s, order senders: %v", cfg.CalendarID, cfg.OrderSenders)
	log.Printf("Log level: %s", cfg.LogLevel)

	ctx := context.Background()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize Google gateways
	clientOpts, err := googleClientOptions(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Google credentials: %v", err)
	}

	mailbox, err := gmail.NewGateway(ctx, clientOpts)
	if err != nil {
		log.Fatalf("Failed to initialize Gmail gateway: %v", err)
	}
	cal, err := calendar.NewGateway(ctx, clientOpts, calendar.WithCalendarID(cfg.CalendarID))
	if err != nil {
		log.Fatalf("Failed to initialize Calendar gateway: %v", err)
	}

	// Initialize tools
	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid service options: %v", err)
	}
	registry, err := tools.NewRegistry(tools.OrderTools(mailbox, cal, tools.Options{
		OrderSenders:   cfg.OrderSenders,
		Location:       opts.Location,
		DuplicateGuard: cfg.DuplicateGuard,
		Timeout:        cfg.ToolTimeout,
	})...)
	if err != nil {
		log.Fatalf("Failed to initialize tool registry: %v", err)
	}

	// Initialize oracle
	oracle := llm.NewOracle(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.Temperature, cfg.OracleTimeout)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	m := metrics.New()
	svc := service.New(db, oracle, registry, policyEngine, m, opts)
	if err := svc.RecoverInterrupted(ctx); err != nil {
		log.Fatalf("Failed to recover interrupted runs: %v", err)
	}

	e := server.NewServer(svc, m, cfg.APIJWTSecret)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orderdesk...")

	// Graceful shutdown. In-flight runs end with the server's contexts.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("orderdesk stopped")
}

// googleClientOptions authenticates the Gmail and Calendar clients. In mock
// mode no credentials are read; provider calls then fail and the tools
// report them as unavailable.
func googleClientOptions(ctx context.Context, cfg *config.Config) ([]option.ClientOption, error) {
	if os.Getenv(llm.EnvGogoMode) == llm.ModeMock {
		log.Println("GOGO_MODE=MOCK detected, Google gateways run without credentials")
		return []option.ClientOption{option.WithoutAuthentication()}, nil
	}
	httpClient, err := googleauth.NewHTTPClient(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithHTTPClient(httpClient)}, nil
}
