package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch-gateway/config"
	"dispatch-gateway/core"
	"dispatch-gateway/handlers/auth"
	"dispatch-gateway/handlers/websocket"
	"dispatch-gateway/hub"
	"dispatch-gateway/metrics"
	"dispatch-gateway/server"
	"dispatch-gateway/stores"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const shutdownTimeout = 10 * time.Second

func waitForShutdown(srv *http.Server, ioo *socketio.Server, h *hub.Hub, store core.DocumentStore) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ioo.Close(nil)
	h.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := store.Close(ctx); err != nil {
		logrus.WithError(err).Error("Failed to close datastore")
	}
	logrus.Info("Server stopped")
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	ctx := context.Background()
	store, err := stores.Open(ctx, cfg.Storage)
	if err != nil {
		logrus.WithField("storageType", cfg.Storage.Type).Fatalf("Datastore unavailable: %v", err)
	}

	m := metrics.New()
	h := hub.New(cfg.SocketBufferSize, m)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler := auth.NewHandler(ctx, cfg.Auth, tokens)
	ioo := websocket.SetupSocketIO(cfg.SocketCORSOrigin, h)

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(server.Deps{
			Config:    cfg,
			Store:     store,
			Validator: tokens,
			Auth:      authHandler.Routes(),
			Stats:     h,
			Socket:    ioo.ServeHandler(nil),
			Metrics:   m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":        srv.Addr,
		"api":         cfg.APIPrefix(),
		"environment": cfg.Environment,
	}).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, ioo, h, store)
}
