package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/config"
	"github.com/scythe504/spyroom-backend/internal/server"
	"github.com/scythe504/spyroom-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	catalogs, err := catalog.Default()
	if err != nil {
		log.Fatalf("Failed to load location catalogs: %v", err)
	}
	texts, err := catalog.English()
	if err != nil {
		log.Fatalf("Failed to load strings: %v", err)
	}

	srv := server.NewServer(st, catalogs, texts, server.Options{
		Addr:         ":" + cfg.Port,
		PublicURL:    cfg.PublicURL,
		PollInterval: cfg.PollInterval,
		Debug:        cfg.Debug,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Received shutdown signal")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Println("Using in-memory room store")
		return store.NewMemoryStore(), nil
	}

	dsn := cfg.DB.DSN()
	if cfg.RunMigrations {
		if err := store.Migrate(dsn); err != nil {
			return nil, err
		}
	}
	return store.NewPostgres(ctx, dsn, cfg.OffsetInterval)
}
