package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/basislabs/basisd/pkg/chain"
	"github.com/basislabs/basisd/pkg/coin"
)

// Server handles the REST API and websocket connections. Writes go
// through the mempool and are applied at the next block; reads go
// through the producer's lock for a consistent view.
type Server struct {
	producer *chain.Producer
	mempool  *chain.Mempool
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

func NewServer(producer *chain.Producer, mempool *chain.Mempool, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		producer: producer,
		mempool:  mempool,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// State queries
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")
	api.HandleFunc("/supply", s.handleGetSupply).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/bids", s.handleGetBids).Methods("GET")
	api.HandleFunc("/bonds", s.handleGetBonds).Methods("GET")
	api.HandleFunc("/shares", s.handleGetShares).Methods("GET")

	// Transaction submission
	api.HandleFunc("/transfers", s.handleSubmitTx("transfer")).Methods("POST")
	api.HandleFunc("/bids", s.handleSubmitTx("bid")).Methods("POST")
	api.HandleFunc("/bids/cancel", s.handleSubmitTx("cancel")).Methods("POST")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves HTTP on addr.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api server starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// BroadcastEvent streams an engine event to the websocket subscribers.
func (s *Server) BroadcastEvent(height uint64, ev coin.Event) {
	s.hub.Broadcast(EventMessage{
		Type:   "event",
		Height: height,
		Event:  ev,
	})
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	var out StatusInfo
	s.producer.View(func(e *coin.Engine) {
		height := s.producer.Height()
		hash := e.StateHash(height)
		out = StatusInfo{
			Height:      height,
			Initialized: e.Initialized(),
			CoinSupply:  e.CoinSupply(),
			BidCount:    len(e.Bids()),
			BondCount:   len(e.Bonds()),
			MempoolSize: s.mempool.Len(),
			AppHash:     fmt.Sprintf("0x%x", hash),
		}
	})
	respondJSON(w, out)
}

func (s *Server) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	var supply uint64
	s.producer.View(func(e *coin.Engine) { supply = e.CoinSupply() })
	respondJSON(w, map[string]uint64{"coinSupply": supply})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)

	var balance uint64
	s.producer.View(func(e *coin.Engine) { balance = e.Balance(addr) })
	respondJSON(w, AccountInfo{Address: addr.Hex(), Balance: balance})
}

func (s *Server) handleGetBids(w http.ResponseWriter, r *http.Request) {
	var bids []coin.Bid
	s.producer.View(func(e *coin.Engine) { bids = e.Bids() })

	out := make([]BidInfo, len(bids))
	for i, b := range bids {
		out[i] = BidInfo{
			Account:    b.Account.Hex(),
			PriceParts: b.Price.Parts(),
			Quantity:   b.Quantity,
			Payment:    b.Payment(),
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBonds(w http.ResponseWriter, r *http.Request) {
	var bonds []coin.Bond
	s.producer.View(func(e *coin.Engine) { bonds = e.Bonds() })

	out := make([]BondInfo, len(bonds))
	for i, b := range bonds {
		out[i] = BondInfo{
			Account:    b.Account.Hex(),
			Payout:     b.Payout,
			Expiration: b.Expiration,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetShares(w http.ResponseWriter, r *http.Request) {
	var shares []coin.Shareholding
	s.producer.View(func(e *coin.Engine) { shares = e.Shares() })

	out := make([]ShareInfo, len(shares))
	for i, sh := range shares {
		out[i] = ShareInfo{Account: sh.Account.Hex(), Shares: sh.Shares}
	}
	respondJSON(w, out)
}

// handleSubmitTx validates the envelope type and queues the raw tx for
// the next block.
func (s *Server) handleSubmitTx(wantType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON transaction", err.Error())
			return
		}
		if envelope.Type != wantType {
			respondError(w, http.StatusBadRequest, "invalid transaction type",
				fmt.Sprintf("expected type=%s", wantType))
			return
		}

		s.mempool.PushRaw(body)
		s.log.Infow("tx submitted", "type", envelope.Type, "bytes", len(body))
		respondJSON(w, SubmitTxResponse{Status: "queued"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
