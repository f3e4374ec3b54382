// Package api serves the control and monitoring HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ermakus/freqtrade/internal/domain"
	"github.com/ermakus/freqtrade/internal/observability"
	"github.com/ermakus/freqtrade/internal/orchestrator"
	"github.com/ermakus/freqtrade/internal/performance"
	"github.com/ermakus/freqtrade/internal/storage"
)

// Controller queues run state commands.
type Controller interface {
	Start() error
	Stop() error
}

// StatusSource reports the bot status.
type StatusSource interface {
	Snapshot() orchestrator.Status
}

// ProfitSource computes performance figures.
type ProfitSource interface {
	Profit(ctx context.Context) (performance.Summary, error)
	Daily(ctx context.Context) ([]performance.Day, error)
}

// HealthSource reports loop liveness.
type HealthSource interface {
	Healthy() bool
	Last() time.Time
}

// Options configures the Server.
type Options struct {
	Controller     Controller
	Status         StatusSource
	Trades         storage.TradeStore
	Profit         ProfitSource
	Health         HealthSource
	Stream         http.Handler // websocket notification stream, optional
	JWTSecret      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server is the HTTP control surface.
type Server struct {
	controller Controller
	status     StatusSource
	trades     storage.TradeStore
	profit     ProfitSource
	health     HealthSource
	stream     http.Handler
	secret     string
	origins    []string
	logger     *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		controller: opts.Controller,
		status:     opts.Status,
		trades:     opts.Trades,
		profit:     opts.Profit,
		health:     opts.Health,
		stream:     opts.Stream,
		secret:     opts.JWTSecret,
		origins:    opts.AllowedOrigins,
		logger:     logger.Named("api"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.Handler())

	r.Route("/api/v1", func(pr chi.Router) {
		pr.Use(s.requireToken)
		pr.Get("/status", s.handleStatus)
		pr.Post("/start", s.handleStart)
		pr.Post("/stop", s.handleStop)
		pr.Get("/trades", s.handleTrades)
		pr.Get("/profit", s.handleProfit)
		pr.Get("/daily", s.handleDaily)
		if s.stream != nil {
			pr.Handle("/ws", s.stream)
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type healthResponse struct {
	Healthy       bool      `json:"healthy"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Healthy: true})
		return
	}
	resp := healthResponse{Healthy: s.health.Healthy(), LastHeartbeat: s.health.Last()}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

type commandResponse struct {
	Accepted string `json:"accepted"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "start", s.controller.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "stop", s.controller.Stop)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, name string, submit func() error) {
	if err := submit(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.logger.Info("command queued", zap.String("command", name), zap.String("subject", subject(r.Context())))
	writeJSON(w, http.StatusAccepted, commandResponse{Accepted: name})
}

type tradeView struct {
	ID           string          `json:"id"`
	Pair         string          `json:"pair"`
	Exchange     string          `json:"exchange"`
	Amount       decimal.Decimal `json:"amount"`
	StakeAmount  decimal.Decimal `json:"stake_amount"`
	OpenRate     decimal.Decimal `json:"open_rate"`
	OpenDate     time.Time       `json:"open_date"`
	PendingOrder string          `json:"pending_order,omitempty"`
}

func newTradeView(t *domain.TradeRecord) tradeView {
	return tradeView{
		ID:           t.ID,
		Pair:         t.Pair,
		Exchange:     t.Exchange,
		Amount:       t.Amount,
		StakeAmount:  t.StakeAmount,
		OpenRate:     t.OpenRate,
		OpenDate:     t.OpenDate,
		PendingOrder: t.PendingOrderID(),
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	open, err := s.trades.GetOpen(r.Context())
	if err != nil {
		s.logger.Error("query open trades", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]tradeView, 0, len(open))
	for _, t := range open {
		views = append(views, newTradeView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleProfit(w http.ResponseWriter, r *http.Request) {
	summary, err := s.profit.Profit(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	days, err := s.profit.Daily(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type subjectKey struct{}

func withSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func subject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
