package state

import (
	"fmt"
	"math/big"

	"crumarket/core/types"
	"crumarket/native/cruclub"
	"crumarket/native/referral"
	"crumarket/native/sales"
)

// Manager is the in-memory ledger backing every native engine: accounts,
// the role directory, participant registries, the wrapper asset ledger,
// sale records with their collection index, referral records, CruClub
// bookkeeping and the consumed-hash replay guard.
//
// Mutations append undo entries to a journal so engines can snapshot at
// the top of an operation and revert the whole call on any failure.
// Batches and multi-leg transfers share one failure domain, like a
// transaction rollback.
type Manager struct {
	accounts map[[20]byte]*types.Account

	roleMembers map[string]map[[20]byte]bool
	roleAddrs   map[string][20]byte

	whitelist   map[[20]byte]bool
	memberships map[[20]byte]uint8
	brandOwners map[uint64][20]byte
	paused      map[string]bool

	assetOwners map[uint64][20]byte
	assetData   map[uint64]assetRecord

	salesByID         map[uint64]*sales.Sale
	salesByCollection map[string][]uint64
	nextSaleID        uint64

	referrals    map[[20]byte]*referral.Referral
	codeOwners   map[string][20]byte
	firstUsePaid map[[20]byte]bool

	clubRate        *big.Int
	clubTotalShares *big.Int
	clubReserved    *big.Int
	clubUnstakes    map[[20]byte]*cruclub.UnstakeRequest

	consumedHashes map[[32]byte]bool

	journal []func()
}

type assetRecord struct {
	CollectionKey string
	BrandID       uint64
}

// NewManager returns an empty ledger.
func NewManager() *Manager {
	return &Manager{
		accounts:          make(map[[20]byte]*types.Account),
		roleMembers:       make(map[string]map[[20]byte]bool),
		roleAddrs:         make(map[string][20]byte),
		whitelist:         make(map[[20]byte]bool),
		memberships:       make(map[[20]byte]uint8),
		brandOwners:       make(map[uint64][20]byte),
		paused:            make(map[string]bool),
		assetOwners:       make(map[uint64][20]byte),
		assetData:         make(map[uint64]assetRecord),
		salesByID:         make(map[uint64]*sales.Sale),
		salesByCollection: make(map[string][]uint64),
		nextSaleID:        1,
		referrals:         make(map[[20]byte]*referral.Referral),
		codeOwners:        make(map[string][20]byte),
		firstUsePaid:      make(map[[20]byte]bool),
		clubTotalShares:   big.NewInt(0),
		clubReserved:      big.NewInt(0),
		clubUnstakes:      make(map[[20]byte]*cruclub.UnstakeRequest),
		consumedHashes:    make(map[[32]byte]bool),
	}
}

func (m *Manager) record(undo func()) {
	m.journal = append(m.journal, undo)
}

// Snapshot marks the current journal position.
func (m *Manager) Snapshot() int { return len(m.journal) }

// RevertToSnapshot unwinds every mutation recorded since the snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		m.journal[i]()
	}
	m.journal = m.journal[:id]
}

// Commit discards the undo journal, making all prior mutations final.
// Callers invoke it after a top-level operation succeeds.
func (m *Manager) Commit() { m.journal = m.journal[:0] }

func cloneAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return nil
	}
	clone := &types.Account{Nonce: acc.Nonce}
	if acc.BalanceCRU != nil {
		clone.BalanceCRU = new(big.Int).Set(acc.BalanceCRU)
	}
	if acc.BalanceUSD != nil {
		clone.BalanceUSD = new(big.Int).Set(acc.BalanceUSD)
	}
	if acc.BalanceXCRU != nil {
		clone.BalanceXCRU = new(big.Int).Set(acc.BalanceXCRU)
	}
	return clone
}

func toAddr(b []byte) ([20]byte, error) {
	var addr [20]byte
	if len(b) != 20 {
		return addr, fmt.Errorf("state: address must be 20 bytes, got %d", len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// GetAccount returns a copy of the stored account, or a zeroed account for
// unknown addresses.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	key, err := toAddr(addr)
	if err != nil {
		return nil, err
	}
	if acc, ok := m.accounts[key]; ok {
		return cloneAccount(acc), nil
	}
	return &types.Account{BalanceCRU: big.NewInt(0), BalanceUSD: big.NewInt(0), BalanceXCRU: big.NewInt(0)}, nil
}

// PutAccount stores a copy of the account and journals the prior value.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	key, err := toAddr(addr)
	if err != nil {
		return err
	}
	prev, existed := m.accounts[key]
	m.record(func() {
		if existed {
			m.accounts[key] = prev
		} else {
			delete(m.accounts, key)
		}
	})
	m.accounts[key] = cloneAccount(account)
	return nil
}

// HashConsumed reports whether an authorization hash has been spent.
func (m *Manager) HashConsumed(hash [32]byte) bool { return m.consumedHashes[hash] }

// MarkHashConsumed permanently spends an authorization hash.
func (m *Manager) MarkHashConsumed(hash [32]byte) error {
	if m.consumedHashes[hash] {
		return nil
	}
	m.record(func() { delete(m.consumedHashes, hash) })
	m.consumedHashes[hash] = true
	return nil
}
