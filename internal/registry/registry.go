// Package registry relays manager authorization from the vault to whichever
// Authority is currently configured.
package registry

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/protocol"
)

// SyncCacheBytes bounds the advisory manager cache.
const SyncCacheBytes = 32 * 1024 * 1024

// ManagerAuthority answers whether an account is a manager.
type ManagerAuthority interface {
	IsAuthorizedManager(account common.Address) bool
}

var (
	slotOwner     = chain.Slot(0)
	slotAuthority = chain.Slot(1)
)

// Registry forwards every authorization query to the current Authority. It
// also keeps a snapshot of manager answers for dashboards; that snapshot is
// never used to authorize anything.
type Registry struct {
	store     chain.Storage
	owner     chain.Ownable
	directory *chain.Directory
	synced    *fastcache.Cache
}

// New binds a Registry to the contract at addr. Authorities are resolved
// through directory.
func New(state *chain.State, addr common.Address, directory *chain.Directory) *Registry {
	store := state.Storage(addr)
	return &Registry{
		store:     store,
		owner:     chain.NewOwnable(store, slotOwner),
		directory: directory,
		synced:    fastcache.New(SyncCacheBytes),
	}
}

// Init deploys the registry under owner, pointing at authority.
func (r *Registry) Init(owner, authority common.Address) error {
	r.store.State().CreateContract(r.store.Address())
	if err := r.owner.Init(owner); err != nil {
		return err
	}
	return r.setAuthority(authority)
}

func (r *Registry) Address() common.Address {
	return r.store.Address()
}

func (r *Registry) Owner() common.Address {
	return r.owner.Owner()
}

// Authority returns the address of the Authority currently consulted.
func (r *Registry) Authority() common.Address {
	return r.store.AddressAt(slotAuthority)
}

// IsAuthorizedManager asks the current Authority about account. Nothing is
// cached: a revocation is visible to the very next query.
func (r *Registry) IsAuthorizedManager(account common.Address) bool {
	auth, ok := r.directory.Lookup(r.Authority()).(ManagerAuthority)
	if !ok {
		return false
	}
	return auth.IsAuthorizedManager(account)
}

// SetAuthority switches the Authority consulted by IsAuthorizedManager.
func (r *Registry) SetAuthority(caller, authority common.Address) error {
	if err := r.owner.RequireOwner(caller, "setAuthority"); err != nil {
		return err
	}
	return r.setAuthority(authority)
}

func (r *Registry) setAuthority(authority common.Address) error {
	if authority == (common.Address{}) {
		return protocol.Fail(protocol.KindInvalidAddress, "setAuthority")
	}
	target := r.directory.Lookup(authority)
	// Registries only relay; chaining them could loop back here.
	if _, relay := target.(*Registry); relay || authority == r.Address() {
		return protocol.Failf(protocol.KindInvalidAddress, "setAuthority", "%s is a registry, not an authority", authority.Hex())
	}
	if _, ok := target.(ManagerAuthority); !ok {
		return protocol.Failf(protocol.KindInvalidAddress, "setAuthority", "%s is not an authority", authority.Hex())
	}
	prev := r.Authority()
	r.store.SetAddress(slotAuthority, authority)
	r.store.Emit(protocol.EventAuthorityUpdated, []common.Hash{chain.AddressTopic(authority)},
		protocol.AuthorityUpdatedEvent{Previous: prev, Authority: authority})
	log.Info("Registry authority updated", "registry", r.Address(), "previous", prev, "authority", authority)
	return nil
}

// SyncManager copies the current answer for account into the advisory cache
// and returns it.
func (r *Registry) SyncManager(account common.Address) bool {
	allowed := r.IsAuthorizedManager(account)
	flag := []byte{0}
	if allowed {
		flag[0] = 1
	}
	r.synced.Set(account.Bytes(), flag)
	r.store.Emit(protocol.EventManagerSynced, []common.Hash{chain.AddressTopic(account)},
		protocol.ManagerSyncedEvent{Manager: account, Allowed: allowed})
	return allowed
}

// SyncManagers runs SyncManager over accounts.
func (r *Registry) SyncManagers(accounts []common.Address) []bool {
	out := make([]bool, len(accounts))
	for i, account := range accounts {
		out[i] = r.SyncManager(account)
	}
	return out
}

// CachedManager returns the last synced answer for account. known is false
// when account was never synced. The answer may be stale.
func (r *Registry) CachedManager(account common.Address) (allowed, known bool) {
	v, ok := r.synced.HasGet(nil, account.Bytes())
	if !ok || len(v) != 1 {
		return false, false
	}
	return v[0] == 1, true
}

// TransferOwnership hands control of the registry to newOwner.
func (r *Registry) TransferOwnership(caller, newOwner common.Address) error {
	return r.owner.TransferOwnership(caller, newOwner)
}

// Close releases the advisory cache.
func (r *Registry) Close() {
	r.synced.Reset()
}
