// Package api exposes the pricing engine over HTTP. Handlers are thin:
// they decode a request, call the corresponding engine operation, map the
// error taxonomy onto status codes, and broadcast price-moving events to
// WebSocket subscribers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hibrida/pricing-engine/internal/engine"
	"github.com/hibrida/pricing-engine/internal/metrics"
	"github.com/hibrida/pricing-engine/internal/model"
)

// Server wires the engine to the HTTP surface.
// Pass nil for hub if WebSocket broadcasting is not needed.
type Server struct {
	engine *engine.Engine
	hub    *WSHub
}

// NewServer creates an API server around an engine.
func NewServer(e *engine.Engine, hub *WSHub) *Server {
	return &Server{engine: e, hub: hub}
}

// Routes mounts every endpoint on a fresh router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Get("/markets", s.handleListMarkets)
	r.Post("/markets", s.handleCreateMarket)
	r.Get("/markets/{marketID}", s.handleGetMarket)
	r.Get("/markets/{marketID}/price", s.handleGetPrice)
	r.Get("/markets/{marketID}/history", s.handleHistory)
	r.Post("/markets/{marketID}/resolve", s.handleResolve)

	r.Post("/trade", s.handleTrade)

	r.Post("/accounts/connect", s.handleConnect)
	r.Get("/portfolio/{accountID}", s.handlePortfolio)

	r.Get("/pool", s.handlePool)
	r.Post("/pool/deposit", s.handleDeposit)
	r.Post("/pool/withdraw", s.handleWithdraw)

	return r
}

// --- Request/Response types ---

// ConnectRequest is the JSON body for POST /accounts/connect.
type ConnectRequest struct {
	AccountID string `json:"account_id"`
}

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	AccountID string          `json:"account_id"`
	MarketID  string          `json:"market_id"`
	Side      string          `json:"side"`  // "YES" or "NO"
	Stake     decimal.Decimal `json:"stake"` // gross, fee included
}

// CreateMarketRequest is the JSON body for POST /markets.
type CreateMarketRequest struct {
	Question       string  `json:"question"`
	Category       string  `json:"category"`
	ResolutionDate string  `json:"resolution_date"`
	InitialProb    float64 `json:"initial_prob"` // percent in (0,100); invalid → 50
}

// ResolveRequest is the JSON body for POST /markets/{marketID}/resolve.
type ResolveRequest struct {
	Outcome string `json:"outcome"` // "YES" or "NO"
}

// DepositRequest is the JSON body for POST /pool/deposit.
type DepositRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// WithdrawRequest is the JSON body for POST /pool/withdraw.
type WithdrawRequest struct {
	AccountID string `json:"account_id"`
}

// DepositResponse reports the LP shares minted for a deposit.
type DepositResponse struct {
	SharesMinted decimal.Decimal `json:"shares_minted"`
	Pool         engine.PoolView `json:"pool"`
}

// WithdrawResponse reports the capital paid out for a full withdrawal.
type WithdrawResponse struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Pool       engine.PoolView `json:"pool"`
}

// --- Handlers ---

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := s.engine.Connect(r.Context(), req.AccountID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.engine.ListMarkets()

	// Optional filter by ?category=.
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]engine.MarketView, 0, len(markets))
		for _, m := range markets {
			if m.Category == category {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.engine.GetMarket(chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	market, err := s.engine.GetMarket(chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{
		"yes": market.PriceYes,
		"no":  market.PriceNo,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.History(chi.URLParam(r, "marketID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := s.engine.CreateMarket(r.Context(), req.Question, req.Category, req.ResolutionDate, req.InitialProb)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.refreshGauges()
	s.broadcast(Event{
		Type:     "market_created",
		MarketID: market.ID,
		PriceYes: market.PriceYes.String(),
		PriceNo:  market.PriceNo.String(),
	})
	writeJSON(w, http.StatusCreated, market)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	result, err := s.engine.Trade(r.Context(), req.AccountID, req.MarketID, req.Side, req.Stake)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.TradesTotal.WithLabelValues(req.Side).Inc()
	metrics.TradeLatency.WithLabelValues(req.Side).Observe(time.Since(start).Seconds())
	s.refreshGauges()

	s.broadcast(Event{
		Type:     "trade_executed",
		MarketID: req.MarketID,
		Side:     req.Side,
		PriceYes: result.PriceYes.String(),
		PriceNo:  result.PriceNo.String(),
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.engine.Resolve(r.Context(), chi.URLParam(r, "marketID"), req.Outcome)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.MarketsResolved.WithLabelValues(req.Outcome).Inc()
	s.refreshGauges()

	priceYes := "0"
	if req.Outcome == model.SideYes {
		priceYes = "1"
	}
	s.broadcast(Event{
		Type:     "market_resolved",
		MarketID: result.MarketID,
		Outcome:  result.Outcome,
		PriceYes: priceYes,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.engine.Portfolio(chi.URLParam(r, "accountID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Pool(r.URL.Query().Get("account")))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	minted, err := s.engine.Deposit(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.LPOperationsTotal.WithLabelValues("deposit").Inc()
	s.refreshGauges()

	view := s.engine.Pool(req.AccountID)
	s.broadcast(Event{
		Type:           "pool_changed",
		TotalLiquidity: view.TotalLiquidity.String(),
		TotalShares:    view.TotalShares.String(),
	})
	writeJSON(w, http.StatusOK, DepositResponse{SharesMinted: minted, Pool: view})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := s.engine.Withdraw(r.Context(), req.AccountID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.LPOperationsTotal.WithLabelValues("withdraw").Inc()
	s.refreshGauges()

	view := s.engine.Pool(req.AccountID)
	s.broadcast(Event{
		Type:           "pool_changed",
		TotalLiquidity: view.TotalLiquidity.String(),
		TotalShares:    view.TotalShares.String(),
	})
	writeJSON(w, http.StatusOK, WithdrawResponse{AmountPaid: amount, Pool: view})
}

// --- Helpers ---

func (s *Server) broadcast(ev Event) {
	if s.hub != nil {
		s.hub.Broadcast(ev)
	}
}

// refreshGauges recomputes the state-shaped gauges after a mutation.
func (s *Server) refreshGauges() {
	open := 0
	for _, m := range s.engine.ListMarkets() {
		if m.Status == model.StatusOpen {
			open++
		}
	}
	metrics.OpenMarkets.Set(float64(open))
	metrics.PoolLiquidity.Set(s.engine.Pool("").TotalLiquidity.InexactFloat64())
}

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps the engine error taxonomy onto HTTP status codes:
// validation → 400, unknown ids → 404, wrong lifecycle phase → 409,
// insufficient funds → 402.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch engine.KindOf(err) {
	case engine.KindValidation:
		status = http.StatusBadRequest
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindState:
		status = http.StatusConflict
	case engine.KindInsufficientFunds:
		status = http.StatusPaymentRequired
	}
	writeError(w, status, err.Error())
}
