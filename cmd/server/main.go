package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avdoshkin/smile-crm/internal/config"
	"github.com/avdoshkin/smile-crm/internal/cookies"
	"github.com/avdoshkin/smile-crm/internal/events"
	"github.com/avdoshkin/smile-crm/internal/httpserver"
	"github.com/avdoshkin/smile-crm/internal/logging"
	authmw "github.com/avdoshkin/smile-crm/internal/middleware/auth"
	"github.com/avdoshkin/smile-crm/internal/middleware/loggingmw"
	"github.com/avdoshkin/smile-crm/internal/service"
	"github.com/avdoshkin/smile-crm/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := config.InitDB(context.Background(), cfg)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	codec := &tokens.Codec{
		Secret:    []byte(cfg.SecretKey),
		Algorithm: cfg.Algorithm,
		AccessTTL: cfg.AccessTTL(),
	}
	issuer := &tokens.Issuer{Codec: codec, RefreshTTL: cfg.RefreshTTL()}
	transport := &cookies.Transport{}

	producer := events.NewProducer(cfg.KafkaBrokers, events.Topic)

	svc := &service.AuthService{DB: db, Issuer: issuer}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Cookies: transport, Producer: producer},
		Gate:        &authmw.Gate{Codec: codec, Cookies: transport},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
