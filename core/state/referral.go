package state

import (
	"fmt"

	"crumarket/native/referral"
)

func cloneReferral(rec *referral.Referral) *referral.Referral {
	if rec == nil {
		return nil
	}
	clone := *rec
	return &clone
}

// ReferralGet returns a copy of the referral record owned by addr.
func (m *Manager) ReferralGet(owner [20]byte) (*referral.Referral, bool) {
	rec, ok := m.referrals[owner]
	if !ok {
		return nil, false
	}
	return cloneReferral(rec), true
}

// ReferralPut stores a copy of the record and keeps the code index in
// lockstep. Codes are never reassigned across owners.
func (m *Manager) ReferralPut(rec *referral.Referral) error {
	if rec == nil {
		return fmt.Errorf("state: nil referral")
	}
	if rec.Code == "" {
		return fmt.Errorf("state: referral without code")
	}
	if owner, taken := m.codeOwners[rec.Code]; taken && owner != rec.Owner {
		return fmt.Errorf("state: referral code %q bound to another owner", rec.Code)
	}
	prev, existed := m.referrals[rec.Owner]
	m.record(func() {
		if existed {
			m.referrals[rec.Owner] = prev
		} else {
			delete(m.referrals, rec.Owner)
		}
	})
	m.referrals[rec.Owner] = cloneReferral(rec)
	if _, bound := m.codeOwners[rec.Code]; !bound {
		code := rec.Code
		m.record(func() { delete(m.codeOwners, code) })
		m.codeOwners[code] = rec.Owner
	}
	return nil
}

// ReferralOwnerByCode resolves a code to the owning account.
func (m *Manager) ReferralOwnerByCode(code string) ([20]byte, bool) {
	owner, ok := m.codeOwners[code]
	return owner, ok
}

// ReferralFirstUsePaid reports whether the account's one-time referred
// reward has already been paid out.
func (m *Manager) ReferralFirstUsePaid(account [20]byte) bool {
	return m.firstUsePaid[account]
}

// MarkReferralFirstUsePaid permanently records the first-use payout.
func (m *Manager) MarkReferralFirstUsePaid(account [20]byte) error {
	if m.firstUsePaid[account] {
		return nil
	}
	m.record(func() { delete(m.firstUsePaid, account) })
	m.firstUsePaid[account] = true
	return nil
}
