package cruclub

import (
	"fmt"
	"math/big"
	"time"

	"crumarket/core/events"
	"crumarket/core/types"
	nativecommon "crumarket/native/common"
)

const moduleName = "cruclub"

type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	ClubRate() (*big.Int, bool)
	SetClubRate(rate *big.Int) error
	ClubTotalShares() *big.Int
	SetClubTotalShares(total *big.Int) error
	ClubReserved() *big.Int
	SetClubReserved(total *big.Int) error
	ClubUnstakeGet(addr [20]byte) (*UnstakeRequest, bool)
	ClubUnstakePut(addr [20]byte, req *UnstakeRequest) error
	ClubUnstakeRemove(addr [20]byte) error
	Snapshot() int
	RevertToSnapshot(id int)
}

type clubEvent struct {
	evt *types.Event
}

func (e clubEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e clubEvent) Event() *types.Event { return e.evt }

// Engine converts CRU into XCRU membership shares at the protocol
// redemption rate, with delayed withdrawal. The rate only moves when the
// admin airdrops yield into the vault, so share value is monotonic absent
// adversarial admin action.
type Engine struct {
	state        engineState
	access       nativecommon.AccessDirectory
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	nowFn        func() int64
	unstakeDelay int64
	locked       bool
}

// NewEngine creates a staking vault engine with the default unstake delay.
func NewEngine(access nativecommon.AccessDirectory) *Engine {
	return &Engine{
		access:       access,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		unstakeDelay: DefaultUnstakeDelaySeconds,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause switchboard checked on every mutating call.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetUnstakeDelay configures the claim cooldown. Admin only.
func (e *Engine) SetUnstakeDelay(caller [20]byte, seconds int64) error {
	if e.access == nil || !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if seconds < 0 {
		return ErrZeroAmount
	}
	e.unstakeDelay = seconds
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(clubEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) enter() error {
	if e.locked {
		return ErrReentrantCall
	}
	e.locked = true
	return nil
}

func (e *Engine) exit() { e.locked = false }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceCRU: big.NewInt(0), BalanceUSD: big.NewInt(0), BalanceXCRU: big.NewInt(0)}
	}
	if acc.BalanceCRU == nil {
		acc.BalanceCRU = big.NewInt(0)
	}
	if acc.BalanceUSD == nil {
		acc.BalanceUSD = big.NewInt(0)
	}
	if acc.BalanceXCRU == nil {
		acc.BalanceXCRU = big.NewInt(0)
	}
	return acc
}

func (e *Engine) vault() ([20]byte, error) {
	if e.access == nil {
		return [20]byte{}, ErrUnauthorized
	}
	return e.access.RoleAddress(nativecommon.RoleClubVault)
}

func (e *Engine) transferCRU(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.BalanceCRU.Cmp(amt) < 0 {
		return fmt.Errorf("cruclub: insufficient balance: need %s, have %s", amt, fromAcc.BalanceCRU)
	}
	fromAcc.BalanceCRU = new(big.Int).Sub(fromAcc.BalanceCRU, amt)
	toAcc.BalanceCRU = new(big.Int).Add(toAcc.BalanceCRU, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// Rate returns the current redemption rate, defaulting to 1:1 before the
// first update.
func (e *Engine) Rate() *big.Int {
	if e == nil || e.state == nil {
		return cloneBigInt(RatePrecision)
	}
	if rate, ok := e.state.ClubRate(); ok && rate != nil && rate.Sign() > 0 {
		return cloneBigInt(rate)
	}
	return cloneBigInt(RatePrecision)
}

// StakingSupply is the CRU backing outstanding shares: the vault balance
// minus the amounts reserved for pending unstakes.
func (e *Engine) StakingSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	vault, err := e.vault()
	if err != nil {
		return nil, err
	}
	acc, err := e.state.GetAccount(vault[:])
	if err != nil {
		return nil, err
	}
	acc = ensureAccount(acc)
	return new(big.Int).Sub(acc.BalanceCRU, e.state.ClubReserved()), nil
}

// Stake pulls CRU from the staker and mints shares at the current rate.
func (e *Engine) Stake(staker [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	rate := e.Rate()
	shares := new(big.Int).Mul(amt, RatePrecision)
	shares.Quo(shares, rate)
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}
	vault, err := e.vault()
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	if err := e.transferCRU(staker, vault, amt); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	acc, err := e.state.GetAccount(staker[:])
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	acc = ensureAccount(acc)
	acc.BalanceXCRU = new(big.Int).Add(acc.BalanceXCRU, shares)
	if err := e.state.PutAccount(staker[:], acc); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.SetClubTotalShares(new(big.Int).Add(e.state.ClubTotalShares(), shares)); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newStakedEvent(staker, amt, shares, rate))
	return shares, nil
}

// Unstake burns shares immediately and books the underlying CRU into a
// delayed withdrawal request. Unclaimed amounts from a previous request
// fold into the new one and the delay restarts.
func (e *Engine) Unstake(staker [20]byte, shareAmount *big.Int) (*UnstakeRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	shares := cloneBigInt(shareAmount)
	if shares.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	acc, err := e.state.GetAccount(staker[:])
	if err != nil {
		return nil, err
	}
	acc = ensureAccount(acc)
	if acc.BalanceXCRU.Cmp(shares) < 0 {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientShares, shares, acc.BalanceXCRU)
	}
	rate := e.Rate()
	underlying := new(big.Int).Mul(shares, rate)
	underlying.Quo(underlying, RatePrecision)
	if underlying.Sign() == 0 {
		return nil, ErrZeroUnderlying
	}

	now := e.now()
	snap := e.state.Snapshot()
	acc.BalanceXCRU = new(big.Int).Sub(acc.BalanceXCRU, shares)
	if err := e.state.PutAccount(staker[:], acc); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.SetClubTotalShares(new(big.Int).Sub(e.state.ClubTotalShares(), shares)); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.SetClubReserved(new(big.Int).Add(e.state.ClubReserved(), underlying)); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	req := &UnstakeRequest{Amount: underlying, Start: now, End: now + e.unstakeDelay}
	if prev, ok := e.state.ClubUnstakeGet(staker); ok && prev != nil && prev.Amount != nil {
		req.Amount = new(big.Int).Add(req.Amount, prev.Amount)
	}
	if err := e.state.ClubUnstakePut(staker, req); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newUnstakedEvent(staker, shares, req))
	return req.Clone(), nil
}

// Claim pays out a matured unstake request and clears it.
func (e *Engine) Claim(staker [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	req, ok := e.state.ClubUnstakeGet(staker)
	if !ok || req == nil || req.Amount == nil || req.Amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	now := e.now()
	if now < req.End {
		return nil, fmt.Errorf("%w: claimable at %d, now %d", ErrStillLocked, req.End, now)
	}
	vault, err := e.vault()
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(req.Amount)

	snap := e.state.Snapshot()
	if err := e.state.ClubUnstakeRemove(staker); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.SetClubReserved(new(big.Int).Sub(e.state.ClubReserved(), amount)); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.transferCRU(vault, staker, amount); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newClaimedEvent(staker, amount))
	return amount, nil
}

// Airdrop pulls yield into the vault from an admin account and recomputes
// the redemption rate, increasing the value of outstanding shares.
func (e *Engine) Airdrop(caller [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if e.access == nil || !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrZeroAmount
	}
	vault, err := e.vault()
	if err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if err := e.transferCRU(caller, vault, amt); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	rate, err := e.recomputeRate()
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(newAirdroppedEvent(caller, amt, rate))
	return nil
}

// UpdateRedemptionRate recomputes the rate from the current vault holdings.
// Admin only; Airdrop triggers the same computation implicitly.
func (e *Engine) UpdateRedemptionRate(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.access == nil || !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return nil, ErrUnauthorized
	}
	snap := e.state.Snapshot()
	rate, err := e.recomputeRate()
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return rate, nil
}

func (e *Engine) recomputeRate() (*big.Int, error) {
	supply, err := e.StakingSupply()
	if err != nil {
		return nil, err
	}
	shares := e.state.ClubTotalShares()
	if shares == nil || shares.Sign() == 0 {
		return nil, ErrZeroShareSupply
	}
	rate := new(big.Int).Mul(supply, RatePrecision)
	rate.Quo(rate, shares)
	if rate.Sign() == 0 {
		return nil, ErrZeroRate
	}
	if err := e.state.SetClubRate(rate); err != nil {
		return nil, err
	}
	e.emit(newRateUpdatedEvent(rate, supply, shares))
	return cloneBigInt(rate), nil
}

// PendingUnstake returns the outstanding request for an account.
func (e *Engine) PendingUnstake(staker [20]byte) (*UnstakeRequest, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	req, ok := e.state.ClubUnstakeGet(staker)
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}
