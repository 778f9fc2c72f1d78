package payments

import (
	"errors"
	"fmt"
	"math/big"

	"crumarket/core/events"
	"crumarket/core/types"
	nativecommon "crumarket/native/common"
)

const moduleName = "payments"

var errNilAccess = errors.New("payments: access directory not configured")

type engineState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	Snapshot() int
	RevertToSnapshot(id int)
}

type paymentsEvent struct {
	evt *types.Event
}

func (e paymentsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e paymentsEvent) Event() *types.Event { return e.evt }

// Engine computes and atomically executes the multi-leg value transfers
// behind every marketplace operation. It holds only configuration; sale
// state lives in the listing engine.
type Engine struct {
	state       engineState
	access      nativecommon.AccessDirectory
	members     nativecommon.MembershipRegistry
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	config      FeeConfig
	serviceFees map[Operation]*big.Int
	discounts   map[uint8]uint32
	locked      bool
}

// NewEngine creates a fee engine with a no-op emitter and an empty fee
// table. Configuration arrives through the admin setters.
func NewEngine(access nativecommon.AccessDirectory, members nativecommon.MembershipRegistry) *Engine {
	return &Engine{
		access:      access,
		members:     members,
		emitter:     events.NoopEmitter{},
		serviceFees: make(map[Operation]*big.Int),
		discounts:   make(map[uint8]uint32),
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

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(paymentsEvent{evt: evt})
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
	if e.access == nil {
		return errNilAccess
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

func balanceFor(acc *types.Account, currency string) *big.Int {
	switch currency {
	case CurrencyCRU:
		return acc.BalanceCRU
	case CurrencyUSD:
		return acc.BalanceUSD
	case CurrencyXCRU:
		return acc.BalanceXCRU
	default:
		return nil
	}
}

func setBalance(acc *types.Account, currency string, amount *big.Int) {
	switch currency {
	case CurrencyCRU:
		acc.BalanceCRU = amount
	case CurrencyUSD:
		acc.BalanceUSD = amount
	case CurrencyXCRU:
		acc.BalanceXCRU = amount
	}
}

// Transfer moves amount of currency between two accounts. A zero amount is
// a no-op. Callable by other native engines through their own gating; the
// public fee operations route through it for every leg.
func (e *Engine) Transfer(from, to [20]byte, currency string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer", ErrZeroAmount)
	}
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return err
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
	fromBal := balanceFor(fromAcc, normalized)
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("%w: need %s %s, have %s", ErrInsufficientBalance, amt, normalized, fromBal)
	}
	setBalance(fromAcc, normalized, new(big.Int).Sub(fromBal, amt))
	setBalance(toAcc, normalized, new(big.Int).Add(balanceFor(toAcc, normalized), amt))
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func permilleShare(amount *big.Int, permille uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(permille)))
	return share.Quo(share, big.NewInt(PermilleDenominator))
}

func percentShare(amount *big.Int, pct uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return share.Quo(share, big.NewInt(PercentDenominator))
}

func (e *Engine) tierOf(addr [20]byte) uint8 {
	if e == nil || e.members == nil {
		return 0
	}
	return e.members.MembershipOf(addr)
}

func (e *Engine) discountFor(tier uint8) uint32 {
	if e == nil || e.discounts == nil {
		return 0
	}
	return e.discounts[tier]
}

func (e *Engine) serviceFee(op Operation) (*big.Int, error) {
	fee, ok := e.serviceFees[op]
	if !ok || fee == nil || fee.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceFeeUnset, op)
	}
	return cloneBigInt(fee), nil
}

// payerFor resolves the debited account for a currency: the signing wallet
// for on-chain tokens, the protocol fiat proxy for the fiat sentinel.
func (e *Engine) payerFor(wallet [20]byte, currency string) ([20]byte, error) {
	if currency != CurrencyUSD {
		return wallet, nil
	}
	return e.access.RoleAddress(nativecommon.RoleFiatProxy)
}

// SplitSaleFees computes the full fee decomposition for a sale and executes
// every transfer leg atomically: seller proceeds, treasury, brand and
// staking-pool shares, plus the flat BUY service fee (and the fiat
// surcharge when paying in the fiat sentinel). Any failing leg reverts the
// whole split.
func (e *Engine) SplitSaleFees(caller [20]byte, currency string, seller [20]byte, price *big.Int, buyer [20]byte, brandOwner [20]byte) (*SaleFeeBreakdown, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if !e.access.HasDelegateRole(caller) {
		return nil, ErrUnauthorized
	}
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if normalized == CurrencyXCRU {
		return nil, fmt.Errorf("%w: sales cannot settle in %s", ErrUnsupportedCurrency, CurrencyXCRU)
	}
	if seller == ([20]byte{}) || buyer == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	amount := cloneBigInt(price)
	if amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	buyFee := new(big.Int).Sub(permilleShare(amount, e.config.BuyPermille), permilleShare(amount, e.discountFor(e.tierOf(buyer))))
	if buyFee.Sign() < 0 {
		buyFee = big.NewInt(0)
	}
	sellFee := new(big.Int).Sub(permilleShare(amount, e.config.SellPermille), permilleShare(amount, e.discountFor(e.tierOf(seller))))
	if sellFee.Sign() < 0 {
		sellFee = big.NewInt(0)
	}
	combined := new(big.Int).Add(buyFee, sellFee)
	cap := percentShare(amount, e.config.MaxFeeCapPct)
	if combined.Cmp(cap) > 0 {
		return nil, fmt.Errorf("%w: %s against cap %s", ErrExcessiveFees, combined, cap)
	}

	treasuryShare := percentShare(combined, e.config.TreasuryPct)
	brandShare := percentShare(combined, e.config.BrandPct)
	// The staking pool absorbs the truncation remainder so the three legs
	// always sum to the combined fee.
	stakingShare := new(big.Int).Sub(combined, new(big.Int).Add(treasuryShare, brandShare))

	fee, err := e.serviceFee(OpBuy)
	if err != nil {
		return nil, err
	}
	surcharge := big.NewInt(0)
	if normalized == CurrencyUSD {
		surcharge = percentShare(new(big.Int).Add(fee, buyFee), e.config.FiatFeePct)
	}

	treasuryAddr, err := e.access.RoleAddress(nativecommon.RoleTreasury)
	if err != nil {
		return nil, err
	}
	serviceAddr, err := e.access.RoleAddress(nativecommon.RoleService)
	if err != nil {
		return nil, err
	}
	stakingAddr, err := e.access.RoleAddress(nativecommon.RoleStakingPool)
	if err != nil {
		return nil, err
	}
	brandAddr := brandOwner
	if brandAddr == ([20]byte{}) {
		brandAddr, err = e.access.RoleAddress(nativecommon.RoleBrandVault)
		if err != nil {
			return nil, err
		}
	}
	payer, err := e.payerFor(buyer, normalized)
	if err != nil {
		return nil, err
	}

	proceeds := new(big.Int).Sub(amount, combined)
	breakdown := &SaleFeeBreakdown{
		Price:          amount,
		BuyFee:         buyFee,
		SellFee:        sellFee,
		TreasuryShare:  treasuryShare,
		BrandShare:     brandShare,
		StakingShare:   stakingShare,
		ServiceFee:     fee,
		FiatSurcharge:  surcharge,
		SellerProceeds: proceeds,
	}

	snap := e.state.Snapshot()
	legs := []struct {
		to     [20]byte
		amount *big.Int
	}{
		{seller, proceeds},
		{treasuryAddr, treasuryShare},
		{brandAddr, brandShare},
		{stakingAddr, stakingShare},
		{serviceAddr, new(big.Int).Add(fee, surcharge)},
	}
	for _, leg := range legs {
		if err := e.Transfer(payer, leg.to, normalized, leg.amount); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
	}
	e.emit(newFeeSplitEvent(normalized, seller, buyer, breakdown))
	return breakdown, nil
}

// SplitServiceFee charges the flat fee configured for the operation tag,
// applying the fiat surcharge when paying in the fiat sentinel. A zero
// configured fee means the operation is unconfigured and fails.
func (e *Engine) SplitServiceFee(caller [20]byte, op Operation, wallet [20]byte, currency string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if !e.access.HasDelegateRole(caller) && !e.access.HasPaymentRole(caller) {
		return nil, ErrUnauthorized
	}
	if wallet == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	fee, err := e.serviceFee(op)
	if err != nil {
		return nil, err
	}
	total := cloneBigInt(fee)
	if normalized == CurrencyUSD {
		total.Add(total, percentShare(fee, e.config.FiatFeePct))
	}
	serviceAddr, err := e.access.RoleAddress(nativecommon.RoleService)
	if err != nil {
		return nil, err
	}
	payer, err := e.payerFor(wallet, normalized)
	if err != nil {
		return nil, err
	}
	snap := e.state.Snapshot()
	if err := e.Transfer(payer, serviceAddr, normalized, total); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newServiceFeeEvent(op, normalized, wallet, total))
	return total, nil
}

// DistributeRewards pays referral rewards in CRU out of the swap treasury.
// A zero referrer or amount is an explicit no-op. The referred account is
// paid whenever it is non-zero; the referrer only when payReferrer is set.
func (e *Engine) DistributeRewards(caller [20]byte, referrer, referral [20]byte, amount *big.Int, payReferrer bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.access.HasDelegateRole(caller) {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if referrer == ([20]byte{}) || amt.Sign() == 0 {
		return nil
	}
	swapAddr, err := e.access.RoleAddress(nativecommon.RoleSwapTreasury)
	if err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if payReferrer {
		if err := e.Transfer(swapAddr, referrer, CurrencyCRU, amt); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	if referral != ([20]byte{}) {
		if err := e.Transfer(swapAddr, referral, CurrencyCRU, amt); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	e.emit(newRewardsEvent(referrer, referral, amt, payReferrer))
	return nil
}

// FeaturedPayment charges the promoted-listing fee for a sale.
func (e *Engine) FeaturedPayment(caller [20]byte, wallet [20]byte, currency string, saleID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if !e.access.HasPaymentRole(caller) {
		return nil, ErrUnauthorized
	}
	if wallet == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	normalized, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	fee, err := e.serviceFee(OpFeatured)
	if err != nil {
		return nil, err
	}
	total := cloneBigInt(fee)
	if normalized == CurrencyUSD {
		total.Add(total, percentShare(fee, e.config.FiatFeePct))
	}
	serviceAddr, err := e.access.RoleAddress(nativecommon.RoleService)
	if err != nil {
		return nil, err
	}
	payer, err := e.payerFor(wallet, normalized)
	if err != nil {
		return nil, err
	}
	snap := e.state.Snapshot()
	if err := e.Transfer(payer, serviceAddr, normalized, total); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newFeaturedEvent(normalized, wallet, saleID, total))
	return total, nil
}

// Convert swaps between the fiat ledger and CRU at the configured fixed
// multiplier. Both legs settle through the swap treasury and succeed or
// fail together.
func (e *Engine) Convert(caller [20]byte, wallet [20]byte, amount *big.Int, toCRU bool) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if !e.access.HasPaymentRole(caller) {
		return nil, ErrUnauthorized
	}
	if wallet == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if e.config.CRUPerUSD == 0 {
		return nil, ErrZeroConversionRate
	}
	rate := new(big.Int).SetUint64(e.config.CRUPerUSD)
	swapAddr, err := e.access.RoleAddress(nativecommon.RoleSwapTreasury)
	if err != nil {
		return nil, err
	}
	var out *big.Int
	var inCurrency, outCurrency string
	if toCRU {
		out = new(big.Int).Mul(amt, rate)
		inCurrency, outCurrency = CurrencyUSD, CurrencyCRU
	} else {
		out = new(big.Int).Quo(amt, rate)
		inCurrency, outCurrency = CurrencyCRU, CurrencyUSD
	}
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: converted amount is zero", ErrZeroAmount)
	}
	snap := e.state.Snapshot()
	if err := e.Transfer(wallet, swapAddr, inCurrency, amt); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.Transfer(swapAddr, wallet, outCurrency, out); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	e.emit(newConvertedEvent(wallet, amt, out, toCRU))
	return out, nil
}

// SetFeeConfig replaces the active percentage configuration after
// validation. Admin only; a rejected update leaves the prior configuration
// active.
func (e *Engine) SetFeeConfig(caller [20]byte, cfg FeeConfig) error {
	if e == nil || e.access == nil {
		return errNilAccess
	}
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.config = cfg
	return nil
}

// SetServiceFee configures the flat fee for an operation tag. Admin only.
func (e *Engine) SetServiceFee(caller [20]byte, op Operation, amount *big.Int) error {
	if e == nil || e.access == nil {
		return errNilAccess
	}
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrZeroAmount
	}
	e.serviceFees[op] = amt
	return nil
}

// SetDiscount configures a membership tier's buy/sell fee discount in
// permille. Admin only.
func (e *Engine) SetDiscount(caller [20]byte, tier uint8, permille uint32) error {
	if e == nil || e.access == nil {
		return errNilAccess
	}
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if permille > PermilleDenominator {
		return ErrDiscountRange
	}
	e.discounts[tier] = permille
	return nil
}

// FeeConfigView returns a copy of the active fee configuration.
func (e *Engine) FeeConfigView() FeeConfig { return e.config }

// ServiceFeeView returns the configured flat fee for an operation, or zero.
func (e *Engine) ServiceFeeView(op Operation) *big.Int {
	if fee, ok := e.serviceFees[op]; ok {
		return cloneBigInt(fee)
	}
	return big.NewInt(0)
}

// DiscountView returns the configured discount for a membership tier.
func (e *Engine) DiscountView(tier uint8) uint32 { return e.discountFor(tier) }
