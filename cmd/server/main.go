package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/x8080x2/CLS0-sub000/internal/bot"
	"github.com/x8080x2/CLS0-sub000/internal/client"
	"github.com/x8080x2/CLS0-sub000/internal/config"
	"github.com/x8080x2/CLS0-sub000/internal/db"
	"github.com/x8080x2/CLS0-sub000/internal/http"
	"github.com/x8080x2/CLS0-sub000/internal/repository"
	"github.com/x8080x2/CLS0-sub000/internal/rotation"
	"github.com/x8080x2/CLS0-sub000/internal/service"
)

func main() {
	log.Println("Starting domain provisioner...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	pool, err := db.NewPool(cfg.Database.DSN(), cfg.Database.Schema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	depositRepo := repository.NewDepositRepository(pool)
	provisionRepo := repository.NewProvisionRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// Initialize clients
	whmClient := client.NewWHMClient(
		cfg.Hosting.Host,
		cfg.Hosting.Username,
		cfg.Hosting.APIToken,
		cfg.Hosting.InsecureTLS,
	)
	rotator := rotation.New(cfg.Edge.Credentials)

	// Initialize services
	hosting := service.NewHostingProvisioner(whmClient, cfg.Hosting.Package)
	deployer := service.NewDeployer(whmClient, cfg.Provision.SlotCount)
	edge := service.NewEdgeConfigurator(rotator)
	provisionService := service.NewProvisionService(hosting, deployer, edge, provisionRepo, logRepo)
	billingService := service.NewBillingService(userRepo, depositRepo, cfg.Provision.Cost, cfg.Provision.DailyLimit)

	// Initialize HTTP server
	handler := http.NewHandler(
		provisionService,
		billingService,
		deployer,
		whmClient,
		provisionRepo,
		logRepo,
		cfg.Provision.DefaultRedirectURL,
	)
	server := http.NewServer(cfg, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Telegram bot if configured
	if cfg.Bot.Token != "" {
		tgBot, err := bot.New(cfg.Bot.Token, cfg.Bot.AdminChatID, provisionService, billingService, provisionRepo)
		if err != nil {
			log.Fatalf("Failed to start bot: %v", err)
		}
		go tgBot.Run(ctx)
	} else {
		log.Println("[main] BOT_TOKEN not set, Telegram front end disabled")
	}

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	log.Println("Server exited")
}
