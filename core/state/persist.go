package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"crumarket/core/types"
	"crumarket/native/cruclub"
	"crumarket/native/referral"
	"crumarket/native/sales"
	"crumarket/storage"
)

var stateRootKey = []byte("state/root")

type persistedState struct {
	Accounts     map[string]*types.Account          `json:"accounts"`
	RoleMembers  map[string][]string                `json:"roleMembers"`
	RoleAddrs    map[string]string                  `json:"roleAddrs"`
	Whitelist    []string                           `json:"whitelist"`
	Memberships  map[string]uint8                   `json:"memberships"`
	BrandOwners  map[uint64]string                  `json:"brandOwners"`
	Paused       map[string]bool                    `json:"paused"`
	AssetOwners  map[uint64]string                  `json:"assetOwners"`
	AssetData    map[uint64]assetRecord             `json:"assetData"`
	Sales        map[uint64]*sales.Sale             `json:"sales"`
	NextSaleID   uint64                             `json:"nextSaleId"`
	Referrals    map[string]*referral.Referral      `json:"referrals"`
	FirstUsePaid []string                           `json:"firstUsePaid"`
	ClubRate     *big.Int                           `json:"clubRate,omitempty"`
	ClubShares   *big.Int                           `json:"clubShares"`
	ClubReserved *big.Int                           `json:"clubReserved"`
	Unstakes     map[string]*cruclub.UnstakeRequest `json:"unstakes"`
	Hashes       []string                           `json:"consumedHashes"`
}

func encodeAddr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

func decodeAddr(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 20 {
		return addr, fmt.Errorf("state: malformed address key %q", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

// Persist writes the full ledger as one JSON record. The journal is not
// persisted; callers commit before persisting.
func (m *Manager) Persist(db storage.Database) error {
	snap := persistedState{
		Accounts:     make(map[string]*types.Account, len(m.accounts)),
		RoleMembers:  make(map[string][]string, len(m.roleMembers)),
		RoleAddrs:    make(map[string]string, len(m.roleAddrs)),
		Memberships:  make(map[string]uint8, len(m.memberships)),
		BrandOwners:  make(map[uint64]string, len(m.brandOwners)),
		Paused:       m.paused,
		AssetOwners:  make(map[uint64]string, len(m.assetOwners)),
		AssetData:    m.assetData,
		Sales:        m.salesByID,
		NextSaleID:   m.nextSaleID,
		Referrals:    make(map[string]*referral.Referral, len(m.referrals)),
		ClubRate:     m.clubRate,
		ClubShares:   m.clubTotalShares,
		ClubReserved: m.clubReserved,
		Unstakes:     make(map[string]*cruclub.UnstakeRequest, len(m.clubUnstakes)),
	}
	for addr, acc := range m.accounts {
		snap.Accounts[encodeAddr(addr)] = acc
	}
	for role, members := range m.roleMembers {
		for addr := range members {
			snap.RoleMembers[role] = append(snap.RoleMembers[role], encodeAddr(addr))
		}
	}
	for role, addr := range m.roleAddrs {
		snap.RoleAddrs[role] = encodeAddr(addr)
	}
	for addr := range m.whitelist {
		snap.Whitelist = append(snap.Whitelist, encodeAddr(addr))
	}
	for addr, tier := range m.memberships {
		snap.Memberships[encodeAddr(addr)] = tier
	}
	for id, owner := range m.brandOwners {
		snap.BrandOwners[id] = encodeAddr(owner)
	}
	for id, owner := range m.assetOwners {
		snap.AssetOwners[id] = encodeAddr(owner)
	}
	for addr, rec := range m.referrals {
		snap.Referrals[encodeAddr(addr)] = rec
	}
	for addr := range m.firstUsePaid {
		snap.FirstUsePaid = append(snap.FirstUsePaid, encodeAddr(addr))
	}
	for addr, req := range m.clubUnstakes {
		snap.Unstakes[encodeAddr(addr)] = req
	}
	for hash := range m.consumedHashes {
		snap.Hashes = append(snap.Hashes, hex.EncodeToString(hash[:]))
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: encode snapshot: %w", err)
	}
	return db.Put(stateRootKey, raw)
}

// LoadManager restores a ledger persisted with Persist. A missing record
// yields a fresh empty manager.
func LoadManager(db storage.Database) (*Manager, error) {
	raw, err := db.Get(stateRootKey)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return NewManager(), nil
		}
		return nil, err
	}
	var snap persistedState
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("state: decode snapshot: %w", err)
	}
	m := NewManager()
	for key, acc := range snap.Accounts {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.accounts[addr] = cloneAccount(acc)
	}
	for role, members := range snap.RoleMembers {
		set := make(map[[20]byte]bool, len(members))
		for _, key := range members {
			addr, err := decodeAddr(key)
			if err != nil {
				return nil, err
			}
			set[addr] = true
		}
		m.roleMembers[role] = set
	}
	for role, key := range snap.RoleAddrs {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.roleAddrs[role] = addr
	}
	for _, key := range snap.Whitelist {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.whitelist[addr] = true
	}
	for key, tier := range snap.Memberships {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.memberships[addr] = tier
	}
	for id, key := range snap.BrandOwners {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.brandOwners[id] = addr
	}
	if snap.Paused != nil {
		m.paused = snap.Paused
	}
	for id, key := range snap.AssetOwners {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.assetOwners[id] = addr
	}
	if snap.AssetData != nil {
		m.assetData = snap.AssetData
	}
	for id, sale := range snap.Sales {
		m.salesByID[id] = sale.Clone()
		m.salesByCollection[sale.CollectionKey] = append(m.salesByCollection[sale.CollectionKey], id)
	}
	if snap.NextSaleID > 0 {
		m.nextSaleID = snap.NextSaleID
	}
	for key, rec := range snap.Referrals {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.referrals[addr] = cloneReferral(rec)
		m.codeOwners[rec.Code] = addr
	}
	for _, key := range snap.FirstUsePaid {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.firstUsePaid[addr] = true
	}
	if snap.ClubRate != nil {
		m.clubRate = new(big.Int).Set(snap.ClubRate)
	}
	if snap.ClubShares != nil {
		m.clubTotalShares = new(big.Int).Set(snap.ClubShares)
	}
	if snap.ClubReserved != nil {
		m.clubReserved = new(big.Int).Set(snap.ClubReserved)
	}
	for key, req := range snap.Unstakes {
		addr, err := decodeAddr(key)
		if err != nil {
			return nil, err
		}
		m.clubUnstakes[addr] = req.Clone()
	}
	for _, encoded := range snap.Hashes {
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("state: malformed consumed hash %q", encoded)
		}
		var hash [32]byte
		copy(hash[:], raw)
		m.consumedHashes[hash] = true
	}
	return m, nil
}
