// Package server exposes the platform over HTTP: account and wallet
// endpoints, the trading and gifting operations, payment initiation,
// provider webhooks and the interaction feed.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/interactions"
	"github.com/boomsapp/boomsd/internal/payments"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
	"github.com/boomsapp/boomsd/internal/webhook"
)

// Per-route request rates, per client IP per minute.
const (
	depositRate    = 5
	withdrawalRate = 3
	validationRate = 10
	webhookRate    = 60
	statsRate      = 30
)

// Deps carries everything the HTTP layer calls into.
type Deps struct {
	DB         relationaldb.RepositoryManager
	Runner     *pipeline.Runner
	Recorder   *interactions.Recorder
	Reconciler *webhook.Reconciler
	Providers  *payments.Registry
	Auth       *Auth

	// Events serves the websocket endpoint; nil disables it.
	Events http.Handler

	Environment string
	Logger      *log.Logger
	Now         func() time.Time
}

// Server is the HTTP front of the platform.
type Server struct {
	db         relationaldb.RepositoryManager
	runner     *pipeline.Runner
	recorder   *interactions.Recorder
	reconciler *webhook.Reconciler
	providers  *payments.Registry
	auth       *Auth

	environment string
	logger      *log.Logger
	now         func() time.Time

	mux *http.ServeMux

	depositGate    *rateGate
	withdrawalGate *rateGate
	validationGate *rateGate
	webhookGate    *rateGate
	statsGate      *rateGate
}

// NewServer wires the routes over the given dependencies.
func NewServer(deps Deps) *Server {
	s := &Server{
		db:          deps.DB,
		runner:      deps.Runner,
		recorder:    deps.Recorder,
		reconciler:  deps.Reconciler,
		providers:   deps.Providers,
		auth:        deps.Auth,
		environment: deps.Environment,
		logger:      deps.Logger,
		now:         deps.Now,
		mux:         http.NewServeMux(),

		depositGate:    newRateGate(depositRate),
		withdrawalGate: newRateGate(withdrawalRate),
		validationGate: newRateGate(validationRate),
		webhookGate:    newRateGate(webhookRate),
		statsGate:      newRateGate(statsRate),
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes(deps.Events)
	return s
}

func (s *Server) routes(events http.Handler) {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", limited(s.statsGate, s.handleStats))

	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)

	s.mux.HandleFunc("GET /wallet/balance", s.authed(s.handleVirtualBalance))
	s.mux.HandleFunc("GET /wallet/cash-balance", s.authed(s.handleCashBalance))
	s.mux.HandleFunc("GET /wallet/dual-balance", s.authed(s.handleDualBalance))
	s.mux.HandleFunc("GET /wallet/transactions", s.authed(s.handleWalletTransactions))

	s.mux.HandleFunc("GET /booms", s.handleListBooms)
	s.mux.HandleFunc("GET /booms/{id}", s.handleGetBoom)

	s.mux.HandleFunc("POST /purchase/bom", s.authed(s.handlePurchase))
	s.mux.HandleFunc("POST /market/buy", s.authed(s.handleMarketBuy))
	s.mux.HandleFunc("POST /market/sell", s.authed(s.handleMarketSell))
	s.mux.HandleFunc("POST /transfer/bom", s.authed(s.handleTransfer))

	s.mux.HandleFunc("POST /gift/send", s.authed(s.handleGiftSend))
	s.mux.HandleFunc("POST /gift/accept", s.authed(s.handleGiftAccept))
	s.mux.HandleFunc("POST /gift/decline", s.authed(s.handleGiftDecline))
	s.mux.HandleFunc("GET /gift/inbox", s.authed(s.handleGiftInbox))

	s.mux.HandleFunc("POST /withdrawal/bom/validate",
		limited(s.validationGate, s.authed(s.handleWithdrawalValidate)))
	s.mux.HandleFunc("POST /withdrawal/bom/execute",
		limited(s.withdrawalGate, s.authed(s.handleWithdrawalExecute)))

	s.mux.HandleFunc("POST /payments/deposit/initiate",
		limited(s.depositGate, s.authed(s.handleDepositInitiate)))
	s.mux.HandleFunc("POST /payments/{provider}/webhook",
		limited(s.webhookGate, s.handleWebhook))

	s.mux.HandleFunc("POST /interactions/", s.authed(s.handleInteraction))

	s.mux.HandleFunc("GET /admin/treasury", s.authed(s.handleAdminTreasury))

	if events != nil {
		s.mux.Handle("GET /ws", events)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// authed verifies the access token and passes the claims through.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, *Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.FromRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, claims)
	}
}
