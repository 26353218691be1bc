// Package server wires the application together: it builds the board
// clients from configuration, assembles the service and handlers, and owns
// the HTTP server's lifecycle.
//
// This is the composition root — every dependency is created and connected
// here, and each layer receives only what it needs: the service gets
// repository interfaces, handlers get the service, routes get handlers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talmor/giftdesk/internal/auth"
	"github.com/talmor/giftdesk/internal/catalog"
	"github.com/talmor/giftdesk/internal/config"
	"github.com/talmor/giftdesk/internal/handler"
	"github.com/talmor/giftdesk/internal/middleware"
	"github.com/talmor/giftdesk/internal/repository"
	"github.com/talmor/giftdesk/internal/repository/monday"
	"github.com/talmor/giftdesk/internal/service"
)

type Server struct {
	router  *chi.Mux
	cfg     config.Config
	logger  *slog.Logger
	catalog *catalog.Catalog
}

// New assembles the full dependency chain:
//
//	config → monday.Client → lookups/boards → ClaimService → handlers → routes
//
// The eligibility boards get cached lookups (their membership is stable);
// the claims board never does.
func New(cfg config.Config, cat *catalog.Catalog, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		catalog: cat,
	}

	client := monday.NewClient(monday.Config{
		URL:      cfg.APIURL,
		APIKey:   cfg.APIKey,
		Retries:  cfg.Retry.Retries,
		MinDelay: cfg.Retry.MinDelay,
		MaxDelay: cfg.Retry.MaxDelay,
		Jitter:   cfg.Retry.Jitter,
		Timeout:  cfg.Retry.Timeout,
	}, logger)

	// Eligibility boards: the user list, plus the survey board when set.
	eligibility := []repository.Membership{
		monday.NewMembershipBoard("users",
			monday.NewCachedLookup(client, cfg.Users.ID, cfg.Users.UserIDCol, 0, nil, logger)),
	}
	if cfg.Survey.Configured() {
		eligibility = append(eligibility, monday.NewMembershipBoard("survey",
			monday.NewCachedLookup(client, cfg.Survey.ID, cfg.Survey.UserIDCol, 0, nil, logger)))
	}

	claims := monday.NewClaimsBoard(client,
		cfg.Claims.ID, cfg.Claims.UserIDCol, cfg.Claims.GiftTitleCol, cfg.Claims.UserNameCol, logger)

	inventory := monday.NewInventory(client,
		cfg.Inventory.ID, cfg.Inventory.GiftIDCol, cfg.Inventory.StockCol, logger)
	if !inventory.Configured() {
		logger.Warn("no inventory board configured — falling back to static stock minus claim counts")
	}

	var directory repository.Directory
	if cfg.Users.UserNameCol != "" {
		directory = monday.NewUserDirectory(client, cfg.Users.ID, cfg.Users.UserIDCol, cfg.Users.UserNameCol)
	}

	svc := service.NewClaimService(cat, eligibility, claims, inventory, directory, logger)

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		t, err := auth.NewTokenService(cfg.JWTSecret, 0)
		if err != nil {
			return nil, fmt.Errorf("setting up auth: %w", err)
		}
		tokens = t
	} else {
		logger.Warn("JWT_SECRET not set — claim submissions accept the user id from the request body")
	}

	s.setupRoutes(svc, tokens)
	return s, nil
}

func (s *Server) setupRoutes(svc *service.ClaimService, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.Handler())

	h := handler.NewClaimsHandler(svc, tokens, s.logger)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/eligibility", h.HandleEligibility)
		r.Post("/verify", h.HandleVerify)
		r.Get("/gifts", h.HandleListGifts)

		if tokens != nil {
			r.With(auth.RequireVerified(tokens)).Post("/claims", h.HandleSubmit)
		} else {
			r.Post("/claims", h.HandleSubmit)
		}
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully, giving in-flight claim submissions time to finish their
// compensation paths.
func (s *Server) Start() error {
	defer s.catalog.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // submissions may sit through several backoff cycles
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.Bool("inventoryBoard", s.cfg.Inventory.Configured()),
			slog.Bool("authEnabled", s.cfg.JWTSecret != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
