package authority

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

var (
	authAddr = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	manager  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newTestAuthority(t *testing.T) (*Authority, *chain.State) {
	t.Helper()
	s, err := chain.NewMemoryState()
	if err != nil {
		t.Fatalf("Failed to create state: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	a := New(s, authAddr)
	if err := a.Init(owner); err != nil {
		t.Fatalf("Failed to init authority: %v", err)
	}
	return a, s
}

func TestAuthority_SetManager(t *testing.T) {
	a, _ := newTestAuthority(t)
	if a.IsAuthorizedManager(manager) {
		t.Fatal("Manager authorized before being set")
	}

	steps := []bool{true, true, false}
	for i, allowed := range steps {
		if err := a.SetManager(owner, manager, allowed); err != nil {
			t.Fatalf("Step %d: SetManager(%v) failed: %v", i, allowed, err)
		}
		if got := a.IsAuthorizedManager(manager); got != allowed {
			t.Errorf("Step %d: expected authorized=%v, got %v", i, allowed, got)
		}
	}
}

func TestAuthority_OnlyOwner(t *testing.T) {
	a, _ := newTestAuthority(t)

	err := a.SetManager(manager, manager, true)
	if !errors.Is(err, protocol.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if a.IsAuthorizedManager(manager) {
		t.Error("Rejected call still changed the manager flag")
	}
}

func TestAuthority_TransferOwnership(t *testing.T) {
	a, _ := newTestAuthority(t)
	newOwner := common.HexToAddress("0x00000000000000000000000000000000000000f1")

	if err := a.TransferOwnership(owner, newOwner); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if a.Owner() != newOwner {
		t.Fatalf("Expected owner %s, got %s", newOwner.Hex(), a.Owner().Hex())
	}
	if err := a.SetManager(owner, manager, true); !errors.Is(err, protocol.ErrUnauthorized) {
		t.Errorf("Old owner: expected ErrUnauthorized, got %v", err)
	}
	if err := a.SetManager(newOwner, manager, true); err != nil {
		t.Errorf("New owner: SetManager failed: %v", err)
	}
}

func TestAuthority_ManagerSetEvent(t *testing.T) {
	a, s := newTestAuthority(t)
	if err := a.SetManager(owner, manager, true); err != nil {
		t.Fatalf("SetManager failed: %v", err)
	}

	logs := s.TxLogs(common.Hash{})
	if len(logs) == 0 {
		t.Fatal("No logs emitted")
	}
	ev, ok := protocol.DecodeLog(logs[len(logs)-1])
	if !ok {
		t.Fatal("Failed to decode last log")
	}
	if ev.Name != protocol.EventManagerSet {
		t.Fatalf("Expected event %s, got %s", protocol.EventManagerSet, ev.Name)
	}

	var body protocol.ManagerSetEvent
	if err := ev.Decode(&body); err != nil {
		t.Fatalf("Failed to decode event body: %v", err)
	}
	if body.Manager != manager || !body.Allowed {
		t.Errorf("Unexpected event body: %+v", body)
	}
}
