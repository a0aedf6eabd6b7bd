package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/database"
	"github.com/FacundoTogliefoso/transaction-log/internal/handler"
	"github.com/FacundoTogliefoso/transaction-log/internal/router"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.Log.File != "" {
		if err := ensureDir(filepath.Dir(cfg.Log.File)); err != nil {
			log.Fatalf("create log dir: %v", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		out := io.MultiWriter(os.Stdout, f)
		log.SetOutput(out)
		gin.DefaultWriter = out
		gin.DefaultErrorWriter = io.MultiWriter(os.Stderr, f)
	}

	// amounts go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	if cfg.Admin.BootstrapOnStart {
		_, created, err := handler.EnsureSuperuser(context.Background(), store.NewUsers(db), cfg.Admin)
		if err != nil {
			log.Fatalf("bootstrap superuser: %v", err)
		}
		if created {
			log.Printf("created superuser %s", cfg.Admin.Username)
		}
	}

	r, err := router.SetupRouter(cfg, db)
	if err != nil {
		log.Fatalf("setup router: %v", err)
	}
	log.Printf("deposit mode: %s", cfg.Ingest.DepositMode)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
