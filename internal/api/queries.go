package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var info map[string]interface{}
	s.sys.Chain.Read(func() {
		info = map[string]interface{}{
			"height":     s.sys.State.Height(),
			"state_root": s.sys.State.Root(),
			"time":       s.now(),
			"owner":      s.sys.Owner,
		}
	})
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	var resp map[string]interface{}
	s.sys.Chain.Read(func() {
		v := s.sys.Vault
		resp = map[string]interface{}{
			"vault":                  v.Address(),
			"owner":                  v.Owner(),
			"teller":                 v.Teller(),
			"asset":                  s.sys.Asset.Address(),
			"asset_symbol":           s.sys.Asset.Symbol(),
			"share_symbol":           v.Symbol(),
			"registry":               s.sys.Registry.Address(),
			"authority":              s.sys.Registry.Authority(),
			"queue":                  s.sys.Queue.Address(),
			"total_assets":           v.TotalAssets().Dec(),
			"total_supply":           v.TotalSupply().Dec(),
			"native_balance":         s.sys.State.Balance(v.Address()).Dec(),
			"next_request_id":        s.sys.Queue.NextRequestID(),
			"withdraw_delay_seconds": uint64(s.sys.Queue.WithdrawDelay().Seconds()),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, "account", mux.Vars(r)["address"])
	if !ok {
		return
	}
	var resp map[string]string
	s.sys.Chain.Read(func() {
		resp = map[string]string{
			"address": addr.Hex(),
			"asset":   s.sys.Asset.BalanceOf(addr).Dec(),
			"shares":  s.sys.Vault.BalanceOf(addr).Dec(),
			"native":  s.sys.State.Balance(addr).Dec(),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManager(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, "manager", mux.Vars(r)["address"])
	if !ok {
		return
	}
	var resp map[string]interface{}
	s.sys.Chain.Read(func() {
		cached, known := s.sys.Registry.CachedManager(addr)
		resp = map[string]interface{}{
			"address":    addr,
			"authorized": s.sys.Registry.IsAuthorizedManager(addr),
			"cached":     cached,
			"synced":     known,
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}
	var (
		resp  interface{}
		found bool
	)
	s.sys.Chain.Read(func() {
		req, ok := s.sys.Queue.Request(id)
		if ok {
			resp = req.View(s.now())
			found = true
		}
	})
	if !found {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt := s.sys.Chain.Receipt(mux.Vars(r)["id"])
	if receipt == nil {
		http.Error(w, "receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	limit := DefaultReceiptLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.sys.Chain.Receipts(limit))
}

func (s *Server) handlePreviewDeposit(w http.ResponseWriter, r *http.Request) {
	s.preview(w, mux.Vars(r)["assets"], "shares", s.sys.Queue.PreviewDeposit)
}

func (s *Server) handlePreviewRedeem(w http.ResponseWriter, r *http.Request) {
	s.preview(w, mux.Vars(r)["shares"], "assets", s.sys.Queue.PreviewRedeem)
}

func (s *Server) preview(w http.ResponseWriter, in, out string, fn func(*uint256.Int) (*uint256.Int, error)) {
	amount, ok := parseAmount(w, "preview", in)
	if !ok {
		return
	}
	var (
		result *uint256.Int
		err    error
	)
	s.sys.Chain.Read(func() {
		result, err = fn(amount)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{out: result.Dec()})
}
