package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jthomaz/cartwise/internal/database"
	"github.com/jthomaz/cartwise/internal/logging"
	"github.com/jthomaz/cartwise/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CARTWISE_LOG_LEVEL"))

	port := os.Getenv("CARTWISE_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CARTWISE_DB_PATH")
	if dbPath == "" {
		dbPath = "cartwise.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("cartwise starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
