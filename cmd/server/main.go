package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go-pharmacy-pos/internal/ai"
	"go-pharmacy-pos/internal/auth"
	"go-pharmacy-pos/internal/catalog"
	"go-pharmacy-pos/internal/config"
	"go-pharmacy-pos/internal/dashboard"
	"go-pharmacy-pos/internal/database"
	"go-pharmacy-pos/internal/handlers"
	"go-pharmacy-pos/internal/inventory"
	"go-pharmacy-pos/internal/logging"
	"go-pharmacy-pos/internal/middleware"
	"go-pharmacy-pos/internal/orders"
	"go-pharmacy-pos/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(log, database.Options{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		return err
	}
	taxRate, err := cfg.TaxRate()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	if err != nil {
		return err
	}
	staff := auth.NewStaff(
		auth.Account{Username: cfg.Auth.AdminUsername, PasswordHash: cfg.Auth.AdminPasswordHash, Role: auth.RoleAdmin},
		auth.Account{Username: cfg.Auth.CashierUsername, PasswordHash: cfg.Auth.CashierPasswordHash, Role: auth.RoleCashier},
	)
	if staff.Len() == 0 {
		log.Warn("no staff accounts configured, login is disabled")
	}

	terminal := utils.TerminalID(cfg.Sales.TerminalID)
	log.Info("terminal identified", "terminal_id", terminal)

	products := catalog.New(db, log)
	ledger := inventory.New(db, log)
	stats := dashboard.New(db, ledger, loc, log)

	deps := handlers.Deps{
		Catalog:   products,
		Ledger:    ledger,
		Orders:    orders.New(db, ledger, log, terminal),
		Dashboard: stats,
		Staff:     staff,
		Tokens:    tokens,
		TaxRate:   taxRate,
		Location:  loc,
		Log:       log,
	}
	if cfg.AI.GeminiAPIKey != "" {
		agent, err := ai.NewAgent(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model, ai.NewTools(products, ledger, stats, loc), log)
		if err != nil {
			return err
		}
		defer agent.Close()
		deps.Assistant = agent
	} else {
		log.Info("GEMINI_API_KEY not set, assistant disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handlers.HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.New(deps).Routes(r)

	// React build
	r.Static("/assets", "./web/assets")
	r.StaticFile("/vite.svg", "./web/vite.svg")
	r.NoRoute(func(c *gin.Context) {
		c.File("./web/index.html")
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.HTTP.Addr, "base_url", cfg.HTTP.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
