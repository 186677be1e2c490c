// Package api exposes the Orchestrator's client-facing surface: a small
// JSON HTTP API over swaps plus a per-swap WebSocket event stream.
package api

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-labs/resolverd/internal/store"
	"github.com/meridian-labs/resolverd/pkg/logging"
)

// Server is the HTTP/WebSocket front door onto the Swap Store.
type Server struct {
	store *store.Store
	log   *logging.Logger
	wsHub *WSHub

	server   *http.Server
	listener net.Listener
}

// NewServer builds a Server against s. Clients never see swaps this server
// didn't come from, so there is exactly one Store dependency.
func NewServer(s *store.Store, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		store: s,
		log:   log.Component("api"),
	}
}

// WSHub returns the event hub, so engines elsewhere in the process can
// Broadcast swap events as they happen.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Start binds addr and begins serving. Returns once the listener is up;
// request handling happens on a background goroutine.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.wsHub = NewWSHub(s.log)
	go s.wsHub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /swaps", s.createSwap)
	mux.HandleFunc("GET /swaps", s.listSwaps)
	mux.HandleFunc("GET /swaps/{id}", s.getSwap)
	mux.HandleFunc("DELETE /swaps/{id}", s.cancelSwap)
	mux.HandleFunc("GET /swaps/{id}/events", s.handleWS)

	s.server = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server error", "err", err)
		}
	}()

	s.log.Info("api server started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the HTTP server, giving in-flight requests a
// few seconds to finish.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// createSwapRequest mirrors the public create-swap body. The preimage is
// never accepted from a client: this server generates it, so the protocol
// stays preimage-hiding end to end.
type createSwapRequest struct {
	UserAddress        string  `json:"userAddress"`
	BeneficiaryAddress string  `json:"beneficiaryAddress,omitempty"`
	SourceChain        string  `json:"sourceChain"`
	SourceToken        string  `json:"sourceToken"`
	SourceAmount       string  `json:"sourceAmount"`
	TargetChain        string  `json:"targetChain"`
	TargetToken        string  `json:"targetToken"`
	ExpectedAmount     string  `json:"expectedAmount"`
	SlippageTolerance  float64 `json:"slippageTolerance"`
	ExpirationTime     int64   `json:"expirationTime"`
}

type createSwapResponse struct {
	ID        string    `json:"id"`
	HashLock  string    `json:"hashLock"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) createSwap(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	beneficiary := req.BeneficiaryAddress
	if beneficiary == "" {
		beneficiary = req.UserAddress
	}

	var preimage [32]byte
	if _, err := rand.Read(preimage[:]); err != nil {
		writeError(w, http.StatusInternalServerError, "could not generate preimage")
		return
	}
	hashLock := sha256.Sum256(preimage[:])

	draft := store.Draft{
		UserAddress:        req.UserAddress,
		BeneficiaryAddress: beneficiary,
		SourceChain:        req.SourceChain,
		SourceToken:        req.SourceToken,
		SourceAmount:       req.SourceAmount,
		TargetChain:        req.TargetChain,
		TargetToken:        req.TargetToken,
		ExpectedAmount:     req.ExpectedAmount,
		SlippageTolerance:  req.SlippageTolerance,
		Preimage:           preimage,
		HashLock:           hashLock,
		ExpirationTime:     req.ExpirationTime,
	}

	swap, err := s.store.CreateSwap(r.Context(), draft)
	if err != nil {
		if errors.Is(err, store.ErrInvalidDraft) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "could not create swap")
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(swap.ID, store.EventInitiated, swapToInfo(swap))
	}

	writeJSON(w, http.StatusCreated, createSwapResponse{
		ID:        swap.ID,
		HashLock:  hexEncode(swap.HashLock[:]),
		Status:    string(swap.Status),
		CreatedAt: swap.CreatedAt,
	})
}

type swapWithOperations struct {
	swapInfo
	Operations []operationInfo `json:"operations"`
}

func (s *Server) getSwap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	swap, err := s.store.GetSwap(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSwapNotFound) {
			writeError(w, http.StatusNotFound, "swap not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not fetch swap")
		return
	}

	ops, err := s.store.ListOperationsForSwap(r.Context(), id, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not fetch operations")
		return
	}

	resp := swapWithOperations{swapInfo: swapToInfo(swap)}
	for _, op := range ops {
		resp.Operations = append(resp.Operations, operationToInfo(op))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSwaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		Status:      store.Status(q.Get("status")),
		UserAddress: q.Get("userAddress"),
		SourceChain: q.Get("sourceChain"),
		TargetChain: q.Get("targetChain"),
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	swaps, err := s.store.ListSwaps(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list swaps")
		return
	}

	out := make([]swapInfo, 0, len(swaps))
	for _, swap := range swaps {
		out = append(out, swapToInfo(swap))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelSwap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	callerAddress := r.URL.Query().Get("userAddress")

	swap, err := s.store.GetSwap(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrSwapNotFound) {
			writeError(w, http.StatusNotFound, "swap not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not fetch swap")
		return
	}
	if swap.Status != store.StatusPending {
		writeError(w, http.StatusConflict, "swap is no longer cancellable")
		return
	}
	if callerAddress == "" || callerAddress != swap.UserAddress {
		writeError(w, http.StatusForbidden, "only the originator may cancel this swap")
		return
	}

	cancelled := store.StatusCancelled
	updated, err := s.store.UpdateSwapAndAppendEvent(r.Context(), id, store.Patch{Status: &cancelled}, store.SwapEvent{Type: store.EventCancelled})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not cancel swap")
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(updated.ID, store.EventCancelled, swapToInfo(updated))
	}
	writeJSON(w, http.StatusOK, swapToInfo(updated))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// corsMiddleware allows any origin, matching a browser-facing client that
// may be served from a different host than the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return "0x" + string(out)
}
