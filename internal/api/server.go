// Package api exposes the vault system over HTTP for demo tooling. Callers
// name the acting account in each request; there is no signature check, so
// the server must only be reachable by trusted tooling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/deploy"
	"github.com/vault-experiment/custody/internal/protocol"
)

// DefaultReceiptLimit caps GET /receipts when no limit is given.
const DefaultReceiptLimit = 50

// Server handles HTTP requests for a deployed vault system
type Server struct {
	sys        *deploy.System
	router     *mux.Router
	httpServer *http.Server
}

func NewServer(sys *deploy.System) *Server {
	s := &Server{
		sys:    sys,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the HTTP router for testing
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	// Queries
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.HandleFunc("/vault", s.handleVault).Methods("GET")
	s.router.HandleFunc("/balance/{address}", s.handleBalance).Methods("GET")
	s.router.HandleFunc("/manager/{address}", s.handleManager).Methods("GET")
	s.router.HandleFunc("/withdraw/{id:[0-9]+}", s.handleGetWithdraw).Methods("GET")
	s.router.HandleFunc("/receipt/{id}", s.handleReceipt).Methods("GET")
	s.router.HandleFunc("/receipts", s.handleReceipts).Methods("GET")
	s.router.HandleFunc("/preview/deposit/{assets}", s.handlePreviewDeposit).Methods("GET")
	s.router.HandleFunc("/preview/redeem/{shares}", s.handlePreviewRedeem).Methods("GET")

	// Asset and share token
	s.router.HandleFunc("/asset/approve", s.handleAssetApprove).Methods("POST")
	s.router.HandleFunc("/asset/mint", s.handleAssetMint).Methods("POST")
	s.router.HandleFunc("/shares/approve", s.handleSharesApprove).Methods("POST")
	s.router.HandleFunc("/shares/transfer", s.handleSharesTransfer).Methods("POST")

	// Queue
	s.router.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	s.router.HandleFunc("/withdraw/request", s.handleRequestWithdraw).Methods("POST")
	s.router.HandleFunc("/withdraw/cancel", s.handleCancelWithdraw).Methods("POST")
	s.router.HandleFunc("/withdraw/claim", s.handleClaimWithdraw).Methods("POST")

	// Privilege chain
	s.router.HandleFunc("/manager/call", s.handleManagerCall).Methods("POST")
	s.router.HandleFunc("/authority/manager", s.handleSetManager).Methods("POST")
	s.router.HandleFunc("/registry/authority", s.handleSetAuthority).Methods("POST")
	s.router.HandleFunc("/registry/sync", s.handleSync).Methods("POST")
	s.router.HandleFunc("/vault/teller", s.handleSetTeller).Methods("POST")
}

// Start listens on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Vault API starting", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a running server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an operation failure to an HTTP status.
func statusFor(kind protocol.Kind) int {
	switch kind {
	case protocol.KindInvalidAddress, protocol.KindZeroAmount, protocol.KindNoAssetsAvailable, protocol.KindOverflow:
		return http.StatusBadRequest
	case protocol.KindUnauthorized, protocol.KindRequestNotOwner:
		return http.StatusForbidden
	case protocol.KindInsufficientBalance, protocol.KindInsufficientAllowance,
		protocol.KindRequestAlreadyHandled, protocol.KindRequestNotMatured, protocol.KindReentrancyDetected:
		return http.StatusConflict
	case protocol.KindExternalCallFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeTx(w http.ResponseWriter, receipt *chain.Receipt, err error) {
	resp := protocol.TxResponse{TxID: receipt.ID, Status: "success", Result: receipt.Result}
	if err != nil {
		resp.Status = "failed"
		resp.Error = err.Error()
		resp.Kind = protocol.KindOf(err)
		resp.Result = nil
		writeJSON(w, statusFor(resp.Kind), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseAddress accepts any hex address, zero included; contracts decide
// whether zero is acceptable.
func parseAddress(w http.ResponseWriter, field, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		http.Error(w, fmt.Sprintf("invalid %s address %q", field, s), http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(w http.ResponseWriter, field, s string) (*uint256.Int, bool) {
	if s == "" {
		return new(uint256.Int), true
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid %s amount %q", field, s), http.StatusBadRequest)
		return nil, false
	}
	return v, true
}

func (s *Server) now() uint64 {
	return s.sys.Chain.Now()
}
