package state

import (
	"fmt"

	"crumarket/native/common"
)

// Role directory. Service roles resolve to one address via RoleAddress;
// operational roles may carry several members.

// GrantRole adds addr to the role's member set.
func (m *Manager) GrantRole(role string, addr [20]byte) {
	members, ok := m.roleMembers[role]
	if !ok {
		members = make(map[[20]byte]bool)
		m.roleMembers[role] = members
	}
	if members[addr] {
		return
	}
	m.record(func() { delete(members, addr) })
	members[addr] = true
}

// RevokeRole removes addr from the role's member set.
func (m *Manager) RevokeRole(role string, addr [20]byte) {
	members, ok := m.roleMembers[role]
	if !ok || !members[addr] {
		return
	}
	m.record(func() { members[addr] = true })
	delete(members, addr)
}

// SetRoleAddress binds the service account resolved by RoleAddress and
// grants the role to it.
func (m *Manager) SetRoleAddress(role string, addr [20]byte) {
	prev, existed := m.roleAddrs[role]
	m.record(func() {
		if existed {
			m.roleAddrs[role] = prev
		} else {
			delete(m.roleAddrs, role)
		}
	})
	m.roleAddrs[role] = addr
	m.GrantRole(role, addr)
}

// HasRole reports role membership.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	return m.roleMembers[role][addr]
}

// HasDelegateRole reports whether addr may drive engine-to-engine calls.
// Engine module addresses and sales relayers are registered here.
func (m *Manager) HasDelegateRole(addr [20]byte) bool {
	return m.roleMembers[common.RoleSales][addr] || m.roleMembers["delegate"][addr]
}

// HasPaymentRole reports whether addr may submit payment operations on
// behalf of signing principals.
func (m *Manager) HasPaymentRole(addr [20]byte) bool {
	return m.roleMembers[common.RolePayments][addr] || m.HasDelegateRole(addr)
}

// RoleAddress resolves the service account registered under the role.
func (m *Manager) RoleAddress(role string) ([20]byte, error) {
	addr, ok := m.roleAddrs[role]
	if !ok {
		return [20]byte{}, fmt.Errorf("state: no address bound for role %q", role)
	}
	return addr, nil
}

// SetWhitelisted toggles marketplace participation for addr.
func (m *Manager) SetWhitelisted(addr [20]byte, allowed bool) {
	prev, existed := m.whitelist[addr]
	m.record(func() {
		if existed {
			m.whitelist[addr] = prev
		} else {
			delete(m.whitelist, addr)
		}
	})
	if allowed {
		m.whitelist[addr] = true
	} else {
		delete(m.whitelist, addr)
	}
}

// IsWhitelisted reports marketplace participation.
func (m *Manager) IsWhitelisted(addr [20]byte) bool { return m.whitelist[addr] }

// SetMembership records the membership tier of addr. Tier 0 is the highest.
func (m *Manager) SetMembership(addr [20]byte, tier uint8) {
	prev, existed := m.memberships[addr]
	m.record(func() {
		if existed {
			m.memberships[addr] = prev
		} else {
			delete(m.memberships, addr)
		}
	})
	m.memberships[addr] = tier
}

// MembershipOf returns the tier of addr, defaulting to 0.
func (m *Manager) MembershipOf(addr [20]byte) uint8 { return m.memberships[addr] }

// SetBrandOwner binds the payout address for a brand.
func (m *Manager) SetBrandOwner(brandID uint64, owner [20]byte) {
	prev, existed := m.brandOwners[brandID]
	m.record(func() {
		if existed {
			m.brandOwners[brandID] = prev
		} else {
			delete(m.brandOwners, brandID)
		}
	})
	m.brandOwners[brandID] = owner
}

// BrandOwner resolves the payout address for a brand.
func (m *Manager) BrandOwner(brandID uint64) ([20]byte, bool) {
	owner, ok := m.brandOwners[brandID]
	return owner, ok
}

// SetPaused toggles the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) {
	prev, existed := m.paused[module]
	m.record(func() {
		if existed {
			m.paused[module] = prev
		} else {
			delete(m.paused, module)
		}
	})
	m.paused[module] = paused
}

// IsPaused reports the pause flag for a module.
func (m *Manager) IsPaused(module string) bool { return m.paused[module] }

// RegisterAsset mints a wrapper record: owner plus classification data.
func (m *Manager) RegisterAsset(assetID uint64, owner [20]byte, data common.AssetData) {
	prevOwner, hadOwner := m.assetOwners[assetID]
	prevData, hadData := m.assetData[assetID]
	m.record(func() {
		if hadOwner {
			m.assetOwners[assetID] = prevOwner
		} else {
			delete(m.assetOwners, assetID)
		}
		if hadData {
			m.assetData[assetID] = prevData
		} else {
			delete(m.assetData, assetID)
		}
	})
	m.assetOwners[assetID] = owner
	m.assetData[assetID] = assetRecord{CollectionKey: data.CollectionKey, BrandID: data.BrandID}
}

// OwnerOf returns the current owner of the wrapper asset.
func (m *Manager) OwnerOf(assetID uint64) ([20]byte, error) {
	owner, ok := m.assetOwners[assetID]
	if !ok {
		return [20]byte{}, common.ErrAssetNotFound
	}
	return owner, nil
}

// DataOf returns the classification data of the wrapper asset.
func (m *Manager) DataOf(assetID uint64) (common.AssetData, error) {
	rec, ok := m.assetData[assetID]
	if !ok {
		return common.AssetData{}, common.ErrAssetNotFound
	}
	return common.AssetData{CollectionKey: rec.CollectionKey, BrandID: rec.BrandID}, nil
}

// PrivilegedTransfer moves the asset without owner approval. The caller
// must hold the current owner; engines invoke this only from delegated
// custody paths.
func (m *Manager) PrivilegedTransfer(from, to [20]byte, assetID uint64) error {
	owner, ok := m.assetOwners[assetID]
	if !ok {
		return common.ErrAssetNotFound
	}
	if owner != from {
		return fmt.Errorf("state: asset %d not held by transferor", assetID)
	}
	m.record(func() { m.assetOwners[assetID] = from })
	m.assetOwners[assetID] = to
	return nil
}
