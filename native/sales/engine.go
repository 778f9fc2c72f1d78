package sales

import (
	"fmt"
	"math/big"
	"time"

	"crumarket/core/events"
	"crumarket/core/types"
	nativecommon "crumarket/native/common"
	"crumarket/native/payments"
	"crumarket/native/referral"
)

const moduleName = "sales"

type engineState interface {
	SaleGet(id uint64) (*Sale, bool)
	SalePut(*Sale) error
	SaleRemove(id uint64) error
	SalesByCollection(key string) []uint64
	NextSaleID() (uint64, error)
	Snapshot() int
	RevertToSnapshot(id int)
}

type salesEvent struct {
	evt *types.Event
}

func (e salesEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e salesEvent) Event() *types.Event { return e.evt }

// Engine owns the sale listing lifecycle: create, buy, withdraw and renew,
// the weekly scheduling policy and the per-tier purchase priority windows.
// Assets under listing live in the sales vault custody account.
type Engine struct {
	state     engineState
	access    nativecommon.AccessDirectory
	whitelist nativecommon.WhitelistRegistry
	members   nativecommon.MembershipRegistry
	assets    nativecommon.AssetLedger
	brands    nativecommon.BrandRegistry
	payments  *payments.Engine
	referral  *referral.Engine
	auth      *nativecommon.Authorizer
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	nowFn     func() int64

	schedule       ScheduleConfig
	rewardPermille uint32
	moduleAddr     [20]byte
	locked         bool
}

// NewEngine wires the listing engine with its collaborators. The fee and
// referral engines are the concrete native engines; the registries are
// narrow external interfaces.
func NewEngine(access nativecommon.AccessDirectory, whitelist nativecommon.WhitelistRegistry, members nativecommon.MembershipRegistry, assets nativecommon.AssetLedger, brands nativecommon.BrandRegistry, pay *payments.Engine, ref *referral.Engine) *Engine {
	return &Engine{
		access:    access,
		whitelist: whitelist,
		members:   members,
		assets:    assets,
		brands:    brands,
		payments:  pay,
		referral:  ref,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		schedule:  NewScheduleConfig(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuthorizer wires the signature verifier with its replay guard.
func (e *Engine) SetAuthorizer(auth *nativecommon.Authorizer) { e.auth = auth }

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

// SetModuleAddress registers the address this engine identifies as when
// calling into the fee and referral engines.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.moduleAddr = addr }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(salesEvent{evt: evt})
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
	if e.auth == nil {
		return ErrNilAuthorizer
	}
	if e.payments == nil {
		return ErrNilPayments
	}
	if e.assets == nil {
		return ErrNilAssets
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) whitelisted(addr [20]byte) bool {
	return e.whitelist != nil && e.whitelist.IsWhitelisted(addr)
}

func (e *Engine) tierOf(addr [20]byte) uint8 {
	if e.members == nil {
		return 0
	}
	return e.members.MembershipOf(addr)
}

func (e *Engine) custody() ([20]byte, error) {
	return e.access.RoleAddress(nativecommon.RoleSalesVault)
}

// List creates one sale per asset in the batch. Each asset must be owned
// by the seller; the opening time follows the weekly schedule policy plus
// the collection's delay class, and the asset moves into vault custody.
// The whole batch shares one failure domain.
func (e *Engine) List(caller [20]byte, seller [20]byte, hash [32]byte, sig []byte, currency string, items []ListItem) ([]*Sale, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if !e.access.HasRole(nativecommon.RoleSales, caller) {
		return nil, ErrUnauthorized
	}
	if !e.whitelisted(seller) {
		return nil, ErrNotWhitelisted
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	custody, err := e.custody()
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	// Consume the hash before any custody transfer or fee leg; a reentered
	// call replaying the same signature fails immediately.
	if err := e.auth.Authorize(seller, hash, sig); err != nil {
		return nil, err
	}

	now := e.now()
	created := make([]*Sale, 0, len(items))
	totalFees := big.NewInt(0)
	for _, item := range items {
		assetID := item.AssetID
		owner, err := e.assets.OwnerOf(assetID)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		if owner != seller {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("%w: asset %d", ErrNotAssetOwner, assetID)
		}
		price := item.Price
		if price == nil || price.Sign() <= 0 {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("%w: asset %d", ErrZeroPrice, assetID)
		}
		data, err := e.assets.DataOf(assetID)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		duration, ok := e.schedule.Durations[data.CollectionKey]
		if !ok || duration <= 0 {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("%w: collection %s", ErrScheduleNotConfigured, data.CollectionKey)
		}
		start := NextScheduleDay(e.schedule.ScheduleDay, now) + e.schedule.Delays[data.CollectionKey]
		id, err := e.state.NextSaleID()
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		sale := &Sale{
			ID:            id,
			AssetID:       assetID,
			Seller:        seller,
			CollectionKey: data.CollectionKey,
			BrandID:       data.BrandID,
			Price:         new(big.Int).Set(price),
			Start:         start,
			End:           start + duration,
			Duration:      duration,
		}
		if err := e.state.SalePut(sale); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		if err := e.assets.PrivilegedTransfer(seller, custody, assetID); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		fee, err := e.payments.SplitServiceFee(e.moduleAddr, payments.OpList, seller, currency)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
		totalFees.Add(totalFees, fee)
		created = append(created, sale.Clone())
	}
	e.emit(newListedEvent(seller, currency, created, totalFees))
	return created, nil
}

// Buy settles a batch of purchases: window and whitelist checks, the tier
// priority gate, the full fee split, referral reward routing and custody
// transfer to the buyer. Any failing item aborts the whole batch.
func (e *Engine) Buy(caller [20]byte, buyer [20]byte, hash [32]byte, sig []byte, currency string, saleIDs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.access.HasRole(nativecommon.RoleSales, caller) {
		return ErrUnauthorized
	}
	if !e.whitelisted(buyer) {
		return ErrNotWhitelisted
	}
	if len(saleIDs) == 0 {
		return ErrEmptyBatch
	}
	custody, err := e.custody()
	if err != nil {
		return err
	}

	snap := e.state.Snapshot()
	if err := e.auth.Authorize(buyer, hash, sig); err != nil {
		return err
	}

	now := e.now()
	priority := e.schedule.Priorities[e.tierOf(buyer)]
	totalFees := big.NewInt(0)
	sellers := make([][20]byte, 0, len(saleIDs))
	for _, id := range saleIDs {
		sale, ok := e.state.SaleGet(id)
		if !ok {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: %d", ErrSaleNotFound, id)
		}
		if now > sale.End {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: sale %d ended at %d", ErrSaleExpired, id, sale.End)
		}
		if !e.whitelisted(sale.Seller) {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: sale %d", ErrSellerNotWhitelisted, id)
		}
		if now < sale.Start+priority {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: sale %d opens at %d", ErrSaleNotStarted, id, sale.Start+priority)
		}
		brandOwner := [20]byte{}
		if e.brands != nil {
			if owner, ok := e.brands.BrandOwner(sale.BrandID); ok {
				brandOwner = owner
			}
		}
		breakdown, err := e.payments.SplitSaleFees(e.moduleAddr, currency, sale.Seller, sale.Price, buyer, brandOwner)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		totalFees.Add(totalFees, breakdown.TotalFees())
		totalFees.Add(totalFees, breakdown.ServiceFee)
		if e.referral != nil && e.rewardPermille > 0 {
			reward := new(big.Int).Mul(sale.Price, big.NewInt(int64(e.rewardPermille)))
			reward.Quo(reward, big.NewInt(payments.PermilleDenominator))
			if err := e.referral.Use(e.moduleAddr, buyer, reward); err != nil {
				e.state.RevertToSnapshot(snap)
				return err
			}
		}
		if err := e.assets.PrivilegedTransfer(custody, buyer, sale.AssetID); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		if err := e.state.SaleRemove(id); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		sellers = append(sellers, sale.Seller)
	}
	e.emit(newSoldEvent(buyer, currency, saleIDs, sellers, totalFees))
	return nil
}

// Withdraw returns listed assets to their seller and delists them.
func (e *Engine) Withdraw(caller [20]byte, seller [20]byte, hash [32]byte, sig []byte, currency string, saleIDs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.access.HasRole(nativecommon.RoleSales, caller) {
		return ErrUnauthorized
	}
	if !e.whitelisted(seller) {
		return ErrNotWhitelisted
	}
	if len(saleIDs) == 0 {
		return ErrEmptyBatch
	}
	custody, err := e.custody()
	if err != nil {
		return err
	}

	snap := e.state.Snapshot()
	if err := e.auth.Authorize(seller, hash, sig); err != nil {
		return err
	}

	totalFees := big.NewInt(0)
	for _, id := range saleIDs {
		sale, ok := e.state.SaleGet(id)
		if !ok {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: %d", ErrSaleNotFound, id)
		}
		if sale.Seller != seller {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: sale %d", ErrNotSeller, id)
		}
		fee, err := e.payments.SplitServiceFee(e.moduleAddr, payments.OpWithdraw, seller, currency)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		totalFees.Add(totalFees, fee)
		if err := e.assets.PrivilegedTransfer(custody, seller, sale.AssetID); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		if err := e.state.SaleRemove(id); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	e.emit(newWithdrawnEvent(seller, currency, saleIDs, totalFees))
	return nil
}

// Renew extends listings by their originally cached duration, counted from
// now rather than from the previous end.
func (e *Engine) Renew(caller [20]byte, seller [20]byte, hash [32]byte, sig []byte, currency string, saleIDs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.access.HasRole(nativecommon.RoleSales, caller) {
		return ErrUnauthorized
	}
	if !e.whitelisted(seller) {
		return ErrNotWhitelisted
	}
	if len(saleIDs) == 0 {
		return ErrEmptyBatch
	}

	snap := e.state.Snapshot()
	if err := e.auth.Authorize(seller, hash, sig); err != nil {
		return err
	}

	now := e.now()
	totalFees := big.NewInt(0)
	renewed := make([]*Sale, 0, len(saleIDs))
	for _, id := range saleIDs {
		sale, ok := e.state.SaleGet(id)
		if !ok {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: %d", ErrSaleNotFound, id)
		}
		if sale.Seller != seller {
			e.state.RevertToSnapshot(snap)
			return fmt.Errorf("%w: sale %d", ErrNotSeller, id)
		}
		fee, err := e.payments.SplitServiceFee(e.moduleAddr, payments.OpRenew, seller, currency)
		if err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		totalFees.Add(totalFees, fee)
		sale.End = now + sale.Duration
		if err := e.state.SalePut(sale); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
		renewed = append(renewed, sale.Clone())
	}
	e.emit(newRenewedEvent(seller, currency, renewed, totalFees))
	return nil
}

// SetScheduleDay sets the weekly anchor weekday, 0 disabling weekly
// batching. Admin only.
func (e *Engine) SetScheduleDay(caller [20]byte, day uint8) error {
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if day >= 7 {
		return fmt.Errorf("%w: %d", ErrScheduleDayRange, day)
	}
	e.schedule.ScheduleDay = day
	return nil
}

// SetDelay configures a collection's purchasable-start offset. Admin only.
func (e *Engine) SetDelay(caller [20]byte, collection string, seconds int64) error {
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	e.schedule.Delays[collection] = seconds
	return nil
}

// SetDuration configures a collection's listing lifetime. Admin only.
func (e *Engine) SetDuration(caller [20]byte, collection string, seconds int64) error {
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	e.schedule.Durations[collection] = seconds
	return nil
}

// SetPriority configures a membership tier's purchase wait. Admin only.
func (e *Engine) SetPriority(caller [20]byte, tier uint8, seconds int64) error {
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	e.schedule.Priorities[tier] = seconds
	return nil
}

// SetReferralRewardPermille configures the share of the sale price routed
// as referral reward on each purchase. Admin only.
func (e *Engine) SetReferralRewardPermille(caller [20]byte, permille uint32) error {
	if !e.access.HasRole(nativecommon.RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if permille > payments.PermilleDenominator {
		return ErrRewardRange
	}
	e.rewardPermille = permille
	return nil
}

// SaleByID returns a copy of the stored sale.
func (e *Engine) SaleByID(id uint64) (*Sale, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	sale, ok := e.state.SaleGet(id)
	if !ok {
		return nil, false
	}
	return sale.Clone(), true
}

// SalesByCollection returns the ids listed under a collection key.
func (e *Engine) SalesByCollection(key string) []uint64 {
	if e == nil || e.state == nil {
		return nil
	}
	return e.state.SalesByCollection(key)
}

// ScheduleView returns a copy of the active schedule policy.
func (e *Engine) ScheduleView() ScheduleConfig {
	out := NewScheduleConfig()
	out.ScheduleDay = e.schedule.ScheduleDay
	for k, v := range e.schedule.Delays {
		out.Delays[k] = v
	}
	for k, v := range e.schedule.Durations {
		out.Durations[k] = v
	}
	for k, v := range e.schedule.Priorities {
		out.Priorities[k] = v
	}
	return out
}
