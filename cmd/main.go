package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	httpapi "github.com/medetbek/kinotalk/internal/api/http"
	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/repository"
	"github.com/medetbek/kinotalk/internal/service"
	"github.com/medetbek/kinotalk/lib/logger/sl"
	"github.com/medetbek/kinotalk/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	roomRepo := repository.NewInMemoryRoomRepository()
	presenceRepo := repository.NewInMemoryPresenceRepository()
	callRepo := repository.NewInMemoryCallRepository()
	healthRepo := repository.NewInMemoryHealthRepository()

	roomService := service.NewRoomService(roomRepo, presenceRepo, callRepo, healthRepo, cfg.Session, log)
	chatService := service.NewChatService(roomRepo, presenceRepo, cfg.Session, log)
	callService := service.NewCallService(callRepo, roomRepo, presenceRepo, roomService, cfg.WebRTC.STUNServers, log)
	screenService := service.NewScreenShareService(roomRepo, presenceRepo, roomService, cfg.Session, log)
	playlistService := service.NewPlaylistService(roomRepo, presenceRepo, log)
	healthService := service.NewHealthService(healthRepo, cfg.Session, log)

	sessionController := httpapi.NewSessionController(
		roomService,
		chatService,
		callService,
		screenService,
		playlistService,
		healthService,
		cfg.WebRTC.STUNServers,
		cfg.HTTP.PublicURL,
		cfg.Session,
		log,
	)
	roomController := httpapi.NewRoomController(roomService)

	router := httpapi.SetupRouter(sessionController, roomController, cfg.HTTP.StaticPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go roomService.Run(ctx)
	go screenService.Run(ctx)
	go healthService.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}

	healthService.Stop()

	log.Info("stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
