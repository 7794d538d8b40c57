package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
	"github.com/finvault/papertrader/internal/modules/portfolio"
)

// LedgerService is the ledger surface the HTTP layer consumes
type LedgerService interface {
	Buy(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error)
	Sell(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error)
	History(accountID int64, limit int) ([]domain.Transaction, error)
}

// PortfolioService values accounts
type PortfolioService interface {
	Snapshot(ctx context.Context, accountID int64) (portfolio.Snapshot, error)
}

// QuoteService resolves symbol prices
type QuoteService interface {
	Lookup(ctx context.Context, symbol string, allowStale bool) (domain.Quote, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	Log       zerolog.Logger
	Ledger    LedgerService
	Portfolio PortfolioService
	Quotes    QuoteService
	DevMode   bool
}

// Server represents the HTTP server. Authentication lives in front of
// it; requests arrive carrying an already-resolved account id.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	ledger    LedgerService
	portfolio PortfolioService
	quotes    QuoteService
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		ledger:    cfg.Ledger,
		portfolio: cfg.Portfolio,
		quotes:    cfg.Quotes,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Account-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/quote/{symbol}", s.handleQuote)
		r.Post("/buy", s.handleBuy)
		r.Post("/sell", s.handleSell)
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/history", s.handleHistory)
	})
}

// loggingMiddleware logs every request with its duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the mux, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}
