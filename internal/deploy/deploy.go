// Package deploy assembles the vault system: one world state, the asset
// token, the authority, the registry, the vault and its withdrawal queue.
package deploy

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/vault-experiment/custody/config"
	"github.com/vault-experiment/custody/internal/authority"
	"github.com/vault-experiment/custody/internal/chain"
	"github.com/vault-experiment/custody/internal/queue"
	"github.com/vault-experiment/custody/internal/registry"
	"github.com/vault-experiment/custody/internal/token"
	"github.com/vault-experiment/custody/internal/vault"
)

// Contracts are deployed at CreateAddress(owner, nonce) in this order.
const (
	nonceAsset uint64 = iota
	nonceAuthority
	nonceRegistry
	nonceVault
	nonceQueue
)

// System is a deployed vault system.
type System struct {
	Chain     *chain.Chain
	State     *chain.State
	Directory *chain.Directory
	Asset     *token.Token
	Authority *authority.Authority
	Registry  *registry.Registry
	Vault     *vault.Vault
	Queue     *queue.Queue
	Owner     common.Address
}

// New opens the state described by cfg and binds the contracts. A fresh
// state is initialised by a genesis transaction; an existing one is reused
// as is.
func New(cfg *config.Config, clk clock.Clock) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	state, err := chain.NewState(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	owner := cfg.OwnerAddress()
	at := func(nonce uint64) common.Address { return crypto.CreateAddress(owner, nonce) }

	dir := chain.NewDirectory(state)
	asset := token.New(state, at(nonceAsset), token.Metadata{
		Name:     cfg.Asset.Name,
		Symbol:   cfg.Asset.Symbol,
		Decimals: cfg.Asset.Decimals,
	})
	auth := authority.New(state, at(nonceAuthority))
	reg := registry.New(state, at(nonceRegistry), dir)
	v := vault.New(state, at(nonceVault), asset, reg, dir, token.Metadata{
		Name:     cfg.Share.Name,
		Symbol:   cfg.Share.Symbol,
		Decimals: cfg.Share.Decimals,
	})
	q := queue.New(state, at(nonceQueue), v, asset, clk, cfg.WithdrawDelay())

	dir.Register(asset.Address(), asset)
	dir.Register(auth.Address(), auth)
	dir.Register(reg.Address(), reg)
	dir.Register(v.Address(), v)
	dir.Register(q.Address(), q)

	sys := &System{
		Chain:     chain.NewChain(state, clk),
		State:     state,
		Directory: dir,
		Asset:     asset,
		Authority: auth,
		Registry:  reg,
		Vault:     v,
		Queue:     q,
		Owner:     owner,
	}

	if !state.Fresh() {
		if !state.Exists(v.Address()) {
			sys.Close()
			return nil, fmt.Errorf("existing state has no vault at %s; owner changed?", v.Address().Hex())
		}
		log.Info("Reattached to existing state", "height", state.Height(), "vault", v.Address())
		return sys, nil
	}

	if _, err := sys.Chain.Execute(owner, "genesis", func() (interface{}, error) {
		return nil, sys.genesis(cfg)
	}); err != nil {
		sys.Close()
		return nil, fmt.Errorf("genesis failed: %w", err)
	}
	log.Info("Vault system deployed", "owner", owner, "asset", asset.Address(), "authority", auth.Address(),
		"registry", reg.Address(), "vault", v.Address(), "queue", q.Address())
	return sys, nil
}

func (s *System) genesis(cfg *config.Config) error {
	if err := s.Asset.Init(s.Owner); err != nil {
		return err
	}
	if err := s.Authority.Init(s.Owner); err != nil {
		return err
	}
	if err := s.Registry.Init(s.Owner, s.Authority.Address()); err != nil {
		return err
	}
	if err := s.Vault.Init(s.Owner); err != nil {
		return err
	}
	s.Queue.Init()
	if err := s.Vault.SetTeller(s.Owner, s.Queue.Address()); err != nil {
		return err
	}

	for _, m := range cfg.Managers {
		if err := s.Authority.SetManager(s.Owner, common.HexToAddress(m), true); err != nil {
			return err
		}
	}

	for _, alloc := range cfg.Genesis {
		addr := common.HexToAddress(alloc.Address)
		assets, err := config.ParseAmount(alloc.Asset)
		if err != nil {
			return err
		}
		if !assets.IsZero() {
			if err := s.Asset.Mint(s.Owner, addr, assets); err != nil {
				return err
			}
		}
		native, err := config.ParseAmount(alloc.Native)
		if err != nil {
			return err
		}
		if !native.IsZero() {
			s.State.Credit(addr, native)
		}
	}

	vaultNative, err := config.ParseAmount(cfg.VaultNative)
	if err != nil {
		return err
	}
	if !vaultNative.IsZero() {
		s.State.Credit(s.Vault.Address(), vaultNative)
	}
	return nil
}

// Close releases the registry cache and the state.
func (s *System) Close() error {
	s.Registry.Close()
	return s.Chain.Close()
}
