package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dias221467/savings-goals/internal/config"
	"github.com/Dias221467/savings-goals/internal/database"
	"github.com/Dias221467/savings-goals/internal/handlers"
	"github.com/Dias221467/savings-goals/internal/jobs"
	"github.com/Dias221467/savings-goals/internal/repository"
	"github.com/Dias221467/savings-goals/internal/scheduler"
	"github.com/Dias221467/savings-goals/internal/services"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/Dias221467/savings-goals/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration from .env file and the environment
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	loc, err := cfg.Location()
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid timezone")
	}

	// Amounts go out as JSON numbers, like the rest of the goal document.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Database connection error")
	}
	defer database.Disconnect(context.Background(), db)

	// --- Repositories ---
	goalRepo := repository.NewGoalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db, cfg.NotificationTTL)
	activityRepo := repository.NewActivityRepository(db)

	if err := goalRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to create goal indexes")
	}

	// --- Services ---
	activityService := services.NewActivityService(activityRepo)
	notificationService := services.NewNotificationService(notificationRepo, goalRepo, loc)
	goalService := services.NewGoalService(goalRepo, notificationService, activityService, loc)
	sessions := services.NewSyncRegistry()
	sweeper := jobs.NewDeadlineSweeper(goalRepo, notificationService, loc)

	// --- Handlers ---
	goalHandler := handlers.NewGoalHandler(goalService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	activityHandler := handlers.NewActivityHandler(activityService)
	feedHandler := handlers.NewGoalFeedHandler(goalService, sessions, notificationService, cfg.JWTSecret, cfg.CorrectiveWriteTimeout, cfg.AllowedOrigins)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// The feed authenticates with ?token= since browsers cannot set headers on upgrade.
	router.HandleFunc("/ws/goals", feedHandler.GoalFeedWebSocketHandler).Methods("GET")

	protectedRoutes := router.PathPrefix("/goals").Subrouter()
	protectedRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedRoutes.HandleFunc("", goalHandler.GetGoalsHandler).Methods("GET")
	protectedRoutes.HandleFunc("", goalHandler.CreateGoalHandler).Methods("POST")
	protectedRoutes.HandleFunc("/{id}", goalHandler.UpdateGoalHandler).Methods("PATCH")
	protectedRoutes.HandleFunc("/{id}", goalHandler.DeleteGoalHandler).Methods("DELETE")
	protectedRoutes.HandleFunc("/{id}/archive", goalHandler.ArchiveGoalHandler).Methods("POST")
	protectedRoutes.HandleFunc("/{id}/unarchive", goalHandler.UnarchiveGoalHandler).Methods("POST")

	protectedNotificationRoutes := router.PathPrefix("/notifications").Subrouter()
	protectedNotificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedNotificationRoutes.HandleFunc("", notificationHandler.GetUserNotificationsHandler).Methods("GET")
	protectedNotificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("PATCH")

	protectedActivityRoutes := router.PathPrefix("/activities").Subrouter()
	protectedActivityRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedActivityRoutes.HandleFunc("", activityHandler.GetActivitiesHandler).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cronRunner, err := scheduler.New(loc, scheduler.Schedules{
		Refresh: cfg.RefreshSchedule,
		Sweep:   cfg.SweepSchedule,
		DueSoon: cfg.DueSoonSchedule,
		Cleanup: cfg.CleanupSchedule,
	}, scheduler.Jobs{
		Sessions:      sessions,
		Sweeper:       sweeper,
		Notifications: notificationService,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid schedule")
	}
	cronRunner.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.WithField("port", cfg.Port).Info("Server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down")

		<-cronRunner.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Error("Server stopped with error")
	}
}
