package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vault-experiment/custody/internal/protocol"
)

func (s *Server) handleAssetApprove(w http.ResponseWriter, r *http.Request) {
	var req protocol.ApproveRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	spender, ok := parseAddress(w, "spender", req.Spender)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "asset.approve", func() (interface{}, error) {
		return nil, s.sys.Asset.Approve(from, spender, amount)
	})
	writeTx(w, receipt, err)
}

// handleAssetMint is the faucet for demo tooling; only the asset owner may
// mint.
func (s *Server) handleAssetMint(w http.ResponseWriter, r *http.Request) {
	var req protocol.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	to, ok := parseAddress(w, "to", req.To)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "asset.mint", func() (interface{}, error) {
		return nil, s.sys.Asset.Mint(from, to, amount)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSharesApprove(w http.ResponseWriter, r *http.Request) {
	var req protocol.ApproveRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	spender, ok := parseAddress(w, "spender", req.Spender)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "shares.approve", func() (interface{}, error) {
		return nil, s.sys.Vault.Approve(from, spender, amount)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSharesTransfer(w http.ResponseWriter, r *http.Request) {
	var req protocol.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	to, ok := parseAddress(w, "to", req.To)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "shares.transfer", func() (interface{}, error) {
		return nil, s.sys.Vault.Transfer(from, to, amount)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req protocol.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	receiver := from
	if req.Receiver != "" {
		if receiver, ok = parseAddress(w, "receiver", req.Receiver); !ok {
			return
		}
	}
	assets, ok := parseAmount(w, "assets", req.Assets)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "deposit", func() (interface{}, error) {
		shares, err := s.sys.Queue.Deposit(from, assets, receiver)
		if err != nil {
			return nil, err
		}
		return map[string]string{"shares": shares.Dec()}, nil
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleRequestWithdraw(w http.ResponseWriter, r *http.Request) {
	var req protocol.WithdrawRequestBody
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	shares, ok := parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "requestWithdraw", func() (interface{}, error) {
		id, err := s.sys.Queue.RequestWithdraw(from, shares)
		if err != nil {
			return nil, err
		}
		return map[string]uint64{"request_id": id}, nil
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleCancelWithdraw(w http.ResponseWriter, r *http.Request) {
	var req protocol.CancelRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "cancelWithdraw", func() (interface{}, error) {
		return nil, s.sys.Queue.CancelWithdraw(from, req.RequestID)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleClaimWithdraw(w http.ResponseWriter, r *http.Request) {
	var req protocol.ClaimRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	receiver := from
	if req.Receiver != "" {
		if receiver, ok = parseAddress(w, "receiver", req.Receiver); !ok {
			return
		}
	}

	receipt, err := s.sys.Chain.Execute(from, "claimWithdraw", func() (interface{}, error) {
		assets, err := s.sys.Queue.ClaimWithdraw(from, req.RequestID, receiver)
		if err != nil {
			return nil, err
		}
		return map[string]string{"assets": assets.Dec()}, nil
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleManagerCall(w http.ResponseWriter, r *http.Request) {
	var req protocol.ManagerCallRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	target, ok := parseAddress(w, "target", req.Target)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "value", req.Value)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "managerCall", func() (interface{}, error) {
		ret, err := s.sys.Vault.ManagerCall(from, target, value, req.Data)
		if err != nil {
			return nil, err
		}
		return map[string]hexutil.Bytes{"result": ret}, nil
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetManagerRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	manager, ok := parseAddress(w, "manager", req.Manager)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "setManager", func() (interface{}, error) {
		return nil, s.sys.Authority.SetManager(from, manager, req.Allowed)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSetAuthority(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetAddressRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, "address", req.Address)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "setAuthority", func() (interface{}, error) {
		return nil, s.sys.Registry.SetAuthority(from, addr)
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req protocol.SyncRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	managers := make([]common.Address, 0, len(req.Managers))
	for _, m := range req.Managers {
		addr, ok := parseAddress(w, "manager", m)
		if !ok {
			return
		}
		managers = append(managers, addr)
	}

	receipt, err := s.sys.Chain.Execute(from, "syncManagers", func() (interface{}, error) {
		allowed := s.sys.Registry.SyncManagers(managers)
		out := make(map[string]bool, len(managers))
		for i, m := range managers {
			out[m.Hex()] = allowed[i]
		}
		return out, nil
	})
	writeTx(w, receipt, err)
}

func (s *Server) handleSetTeller(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetAddressRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := parseAddress(w, "from", req.From)
	if !ok {
		return
	}
	teller, ok := parseAddress(w, "address", req.Address)
	if !ok {
		return
	}

	receipt, err := s.sys.Chain.Execute(from, "setTeller", func() (interface{}, error) {
		return nil, s.sys.Vault.SetTeller(from, teller)
	})
	writeTx(w, receipt, err)
}
