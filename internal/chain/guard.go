package chain

import "github.com/vault-experiment/custody/internal/protocol"

// Guard rejects re-entry into a contract's guarded operations while one of
// them is running.
type Guard struct {
	busy string
}

// Enter marks op as running. It fails with ReentrancyDetected when another
// guarded operation has not exited yet.
func (g *Guard) Enter(op string) error {
	if g.busy != "" {
		return protocol.Failf(protocol.KindReentrancyDetected, op, "%s in progress", g.busy)
	}
	g.busy = op
	return nil
}

// Exit clears the running operation.
func (g *Guard) Exit() {
	g.busy = ""
}

// Busy reports whether a guarded operation is running.
func (g *Guard) Busy() bool {
	return g.busy != ""
}
