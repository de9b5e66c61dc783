// Package main is the XavLink realtime gateway entry point.
//
// Wire-up order: config, database, hub, services, handlers, middleware,
// router, CORS, HTTP server, graceful shutdown. No globals; everything is
// constructed here and connected through interfaces.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/xavlink/realtime/config"
	"github.com/xavlink/realtime/database"
	"github.com/xavlink/realtime/handlers"
	"github.com/xavlink/realtime/middleware"
	"github.com/xavlink/realtime/pkg/ratelimit"
	"github.com/xavlink/realtime/repository"
	"github.com/xavlink/realtime/services"
	"github.com/xavlink/realtime/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] xavlink realtime gateway starting...")

	// ─── Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d heartbeat=%s)", cfg.Server.Port, cfg.Realtime.HeartbeatInterval)

	// ─── Database ───
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}
	db, err := database.New(cfg.Database.Path, migrations)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── Repository layer ───
	readStateRepo := repository.NewSQLiteReadStateRepo(db.Conn)
	deliveryLogRepo := repository.NewSQLiteDeliveryLogRepo(db.Conn)

	// ─── WebSocket hub ───
	hub := ws.NewHub()

	limiter := ratelimit.NewEventRateLimiter(
		cfg.Realtime.EventRateLimit,
		cfg.Realtime.EventRateWindow,
		cfg.Realtime.EventRateWindow,
	)
	defer limiter.Close()

	typing := ws.NewTypingRegistry(hub, cfg.Realtime.TypingExpiry)
	defer typing.Close()

	// ─── Service layer ───
	authService := services.NewAuthService(cfg.JWT.Secret)
	presenceService := services.NewPresenceService(hub)
	unreadService := services.NewUnreadService(readStateRepo, deliveryLogRepo, hub)
	publishService := services.NewPublishService(hub, deliveryLogRepo, unreadService)

	// Hub callbacks bridge transport events into the service layer without
	// the ws package depending on services.
	hub.OnUserFirstConnect(presenceService.UserConnected)
	hub.OnUserFullyDisconnected(func(userID string) {
		presenceService.UserDisconnected(userID)
		typing.UserDisconnected(userID)
		limiter.Reset(userID)
	})
	hub.OnClientAnnouncedOnline(presenceService.UserAnnounced)
	hub.OnClientTyping(func(_ *ws.Client, data ws.TypingData) {
		typing.Started(data)
	})
	hub.OnClientStoppedTyping(func(_ *ws.Client, data ws.StopTypingData) {
		typing.Stopped(data)
	})

	go hub.Run()

	// ─── Handler layer ───
	eventsHandler := handlers.NewEventsHandler(publishService)
	statsHandler := handlers.NewStatsHandler(hub, presenceService, deliveryLogRepo)
	unreadHandler := handlers.NewUnreadHandler(unreadService)
	wsHandler := ws.NewHandler(
		hub,
		authService,
		limiter,
		cfg.Realtime.HeartbeatInterval,
		cfg.Realtime.SendBufferSize,
		cfg.CORS.AllowedOrigins,
	)

	// ─── Middleware ───
	authMiddleware := middleware.NewAuthMiddleware(authService)
	internalMiddleware := middleware.NewInternalMiddleware(cfg.Internal.Token)

	// ─── Router ───
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"xavlink-realtime"}`)
	})

	// Reconciliation snapshot for clients.
	mux.Handle("GET /api/unreads", authMiddleware.Require(
		http.HandlerFunc(unreadHandler.Snapshot)))

	// Internal surface, REST backend only.
	mux.Handle("POST /internal/events", internalMiddleware.Require(
		http.HandlerFunc(eventsHandler.Publish)))
	mux.Handle("GET /internal/stats", internalMiddleware.Require(
		http.HandlerFunc(statsHandler.Stats)))

	// WebSocket upgrade; the JWT travels as ?token= because browsers cannot
	// set headers on the upgrade request.
	mux.HandleFunc("GET /ws", wsHandler.HandleConnection)

	// ─── CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := corsHandler.Handler(mux)

	// ─── HTTP server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── Graceful shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] gateway listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Close WebSocket connections first so clients see a clean close before
	// the HTTP listener stops accepting.
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] gateway stopped gracefully")
}
