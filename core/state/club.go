package state

import (
	"fmt"
	"math/big"

	"crumarket/native/cruclub"
)

// ClubRate returns the stored redemption rate, if one has been computed.
func (m *Manager) ClubRate() (*big.Int, bool) {
	if m.clubRate == nil {
		return nil, false
	}
	return new(big.Int).Set(m.clubRate), true
}

// SetClubRate stores the redemption rate.
func (m *Manager) SetClubRate(rate *big.Int) error {
	if rate == nil {
		return fmt.Errorf("state: nil club rate")
	}
	prev := m.clubRate
	m.record(func() { m.clubRate = prev })
	m.clubRate = new(big.Int).Set(rate)
	return nil
}

// ClubTotalShares returns the outstanding XCRU share supply.
func (m *Manager) ClubTotalShares() *big.Int {
	return new(big.Int).Set(m.clubTotalShares)
}

// SetClubTotalShares stores the outstanding XCRU share supply.
func (m *Manager) SetClubTotalShares(total *big.Int) error {
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("state: invalid club share supply")
	}
	prev := m.clubTotalShares
	m.record(func() { m.clubTotalShares = prev })
	m.clubTotalShares = new(big.Int).Set(total)
	return nil
}

// ClubReserved returns the CRU earmarked for pending withdrawals.
func (m *Manager) ClubReserved() *big.Int {
	return new(big.Int).Set(m.clubReserved)
}

// SetClubReserved stores the CRU earmarked for pending withdrawals.
func (m *Manager) SetClubReserved(total *big.Int) error {
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("state: invalid club reserve")
	}
	prev := m.clubReserved
	m.record(func() { m.clubReserved = prev })
	m.clubReserved = new(big.Int).Set(total)
	return nil
}

// ClubUnstakeGet returns a copy of the pending withdrawal request.
func (m *Manager) ClubUnstakeGet(addr [20]byte) (*cruclub.UnstakeRequest, bool) {
	req, ok := m.clubUnstakes[addr]
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

// ClubUnstakePut stores a copy of the pending withdrawal request.
func (m *Manager) ClubUnstakePut(addr [20]byte, req *cruclub.UnstakeRequest) error {
	if req == nil {
		return fmt.Errorf("state: nil unstake request")
	}
	prev, existed := m.clubUnstakes[addr]
	m.record(func() {
		if existed {
			m.clubUnstakes[addr] = prev
		} else {
			delete(m.clubUnstakes, addr)
		}
	})
	m.clubUnstakes[addr] = req.Clone()
	return nil
}

// ClubUnstakeRemove deletes the pending withdrawal request.
func (m *Manager) ClubUnstakeRemove(addr [20]byte) error {
	prev, existed := m.clubUnstakes[addr]
	if !existed {
		return nil
	}
	m.record(func() { m.clubUnstakes[addr] = prev })
	delete(m.clubUnstakes, addr)
	return nil
}
