// Package server exposes the read-only query API over aggregation and
// classification state.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"token-sentry/internal/aggregate"
	"token-sentry/internal/domain"
	"token-sentry/internal/storage"
	"token-sentry/internal/wallets"
)

const defaultTopWalletMin = 2

// Options names the state the server reads.
type Options struct {
	Tokens          storage.TokenStore
	Classifications storage.ClassificationStore
	Aggregator      *aggregate.Aggregator
	Index           *wallets.Index
	Logger          *log.Logger
}

// Server serves the query API.
type Server struct {
	opts   Options
	logger *log.Logger
	mux    *http.ServeMux
}

// New creates the query server and registers its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{opts: opts, logger: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/bundles", s.handleBundles)
	s.mux.HandleFunc("/wallets/top", s.handleTopWallets)
	s.mux.HandleFunc("/classifications", s.handleClassifications)

	return s
}

// Handler returns the route handler, for mounting and for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type bundleResponse struct {
	Mint      string          `json:"mint"`
	Slot      int64           `json:"slot"`
	BuyTotal  decimal.Decimal `json:"buy_total"`
	SellTotal decimal.Decimal `json:"sell_total"`
	Net       decimal.Decimal `json:"net"`
	Outcome   string          `json:"outcome"`
	Trades    int             `json:"trades"`
}

func toBundleResponse(b *domain.Bundle) bundleResponse {
	return bundleResponse{
		Mint:      b.Mint,
		Slot:      b.Slot,
		BuyTotal:  b.BuyTotal,
		SellTotal: b.SellTotal,
		Net:       b.Net(),
		Outcome:   b.Outcome(),
		Trades:    b.TradeCount,
	}
}

// handleBundles serves GET /bundles?mint=&slot= and
// GET /bundles?mint=&min_amount=.
func (s *Server) handleBundles(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		httpError(w, http.StatusBadRequest, "mint parameter required")
		return
	}

	if _, err := s.opts.Tokens.GetByMint(r.Context(), mint); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "unknown token")
			return
		}
		s.logger.Printf("server: token lookup failed for %s: %v", mint, err)
		httpError(w, http.StatusInternalServerError, "token lookup failed")
		return
	}

	if slotStr := r.URL.Query().Get("slot"); slotStr != "" {
		slot, err := strconv.ParseInt(slotStr, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid slot")
			return
		}
		b, ok := s.opts.Aggregator.BundleSummary(mint, slot)
		if !ok {
			httpError(w, http.StatusNotFound, "no bundle for slot")
			return
		}
		writeJSON(w, toBundleResponse(b))
		return
	}

	minTotal := decimal.Zero
	if minStr := r.URL.Query().Get("min_amount"); minStr != "" {
		var err error
		minTotal, err = decimal.NewFromString(minStr)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid min_amount")
			return
		}
	}

	bundles := s.opts.Aggregator.TokenBundles(mint, minTotal)
	out := make([]bundleResponse, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, toBundleResponse(b))
	}
	writeJSON(w, out)
}

type walletResponse struct {
	Wallet        string `json:"wallet"`
	TotalTrades   int    `json:"total_trades"`
	SniperWindows int    `json:"sniper_windows"`
	TokensSniped  int    `json:"tokens_sniped"`
	CopycatTokens int    `json:"copycat_tokens"`
	LastSeen      int64  `json:"last_seen"`
}

// handleTopWallets serves GET /wallets/top?min=.
func (s *Server) handleTopWallets(w http.ResponseWriter, r *http.Request) {
	min := defaultTopWalletMin
	if minStr := r.URL.Query().Get("min"); minStr != "" {
		n, err := strconv.Atoi(minStr)
		if err != nil || n < 1 {
			httpError(w, http.StatusBadRequest, "invalid min")
			return
		}
		min = n
	}

	out := make([]walletResponse, 0)
	for _, a := range s.opts.Index.TopRepeatWallets(min) {
		out = append(out, walletResponse{
			Wallet:        a.Wallet,
			TotalTrades:   a.TotalTrades,
			SniperWindows: a.SniperWindows,
			TokensSniped:  a.TokensSniped,
			CopycatTokens: a.CopycatTokens,
			LastSeen:      a.LastSeen,
		})
	}
	writeJSON(w, out)
}

type classificationResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Mint      string          `json:"mint,omitempty"`
	Wallet    string          `json:"wallet,omitempty"`
	WindowSeq int64           `json:"window_seq,omitempty"`
	Slot      int64           `json:"slot,omitempty"`
	RelMint   string          `json:"rel_mint,omitempty"`
	Metric    decimal.Decimal `json:"metric"`
	Timestamp int64           `json:"timestamp"`
}

// handleClassifications serves GET /classifications?mint= and
// GET /classifications?kind=.
func (s *Server) handleClassifications(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	kind := r.URL.Query().Get("kind")

	var (
		records []*domain.Classification
		err     error
	)
	switch {
	case mint != "":
		records, err = s.opts.Classifications.GetByMint(r.Context(), mint)
	case kind != "":
		records, err = s.opts.Classifications.GetByKind(r.Context(), domain.Kind(kind))
	default:
		httpError(w, http.StatusBadRequest, "mint or kind parameter required")
		return
	}
	if err != nil {
		s.logger.Printf("server: classification query failed: %v", err)
		httpError(w, http.StatusInternalServerError, "query failed")
		return
	}

	out := make([]classificationResponse, 0, len(records))
	for _, c := range records {
		out = append(out, classificationResponse{
			ID:        c.ID,
			Kind:      string(c.Kind),
			Mint:      c.Mint,
			Wallet:    c.Wallet,
			WindowSeq: c.WindowSeq,
			Slot:      c.Slot,
			RelMint:   c.RelMint,
			Metric:    c.Metric,
			Timestamp: c.Timestamp,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
