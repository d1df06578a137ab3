package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"task-manager/internal/api"
	"task-manager/internal/config"
	"task-manager/internal/db"
	"task-manager/pkg/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	store, closeStore, err := db.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("connect %s: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	// Ensure tables exist
	if err := store.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure tasks table: %v", err)
	}

	tasks, err := task.NewService(store)
	if err != nil {
		log.Fatalf("task service: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.New(tasks, cfg),
	}

	go func() {
		log.Printf("task-manager listening on %s (store=%s, env=%s)", cfg.Addr(), cfg.StoreDriver, cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if errors.Is(err, syscall.EADDRINUSE) {
				log.Fatalf("listen: port %s is already in use; set PORT to another value", cfg.HTTPPort)
			}
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	sig := <-stop
	log.Printf("received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
		return
	}
	log.Printf("shut down gracefully")
}
