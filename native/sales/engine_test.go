package sales

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"crumarket/core/events"
	"crumarket/core/types"
	nativecommon "crumarket/native/common"
	"crumarket/native/payments"
	"crumarket/native/referral"
)

const baseNow = int64(1_700_000_000)

type mockState struct {
	sales        map[uint64]*Sale
	byCollection map[string][]uint64
	nextID       uint64
	accounts     map[[20]byte]*types.Account
	hashes       map[[32]byte]bool
	assetOwners  map[uint64][20]byte
	assetData    map[uint64]nativecommon.AssetData
	referrals    map[[20]byte]*referral.Referral
	codes        map[string][20]byte
	firstUse     map[[20]byte]bool
	snaps        []*mockState
}

func newMockState() *mockState {
	return &mockState{
		sales:        make(map[uint64]*Sale),
		byCollection: make(map[string][]uint64),
		nextID:       1,
		accounts:     make(map[[20]byte]*types.Account),
		hashes:       make(map[[32]byte]bool),
		assetOwners:  make(map[uint64][20]byte),
		assetData:    make(map[uint64]nativecommon.AssetData),
		referrals:    make(map[[20]byte]*referral.Referral),
		codes:        make(map[string][20]byte),
		firstUse:     make(map[[20]byte]bool),
	}
}

func (m *mockState) copy() *mockState {
	out := newMockState()
	out.nextID = m.nextID
	for k, v := range m.sales {
		out.sales[k] = v.Clone()
	}
	for k, v := range m.byCollection {
		out.byCollection[k] = append([]uint64(nil), v...)
	}
	for k, v := range m.accounts {
		clone := *v
		clone.BalanceCRU = new(big.Int).Set(v.BalanceCRU)
		clone.BalanceUSD = new(big.Int).Set(v.BalanceUSD)
		clone.BalanceXCRU = new(big.Int).Set(v.BalanceXCRU)
		out.accounts[k] = &clone
	}
	for k, v := range m.hashes {
		out.hashes[k] = v
	}
	for k, v := range m.assetOwners {
		out.assetOwners[k] = v
	}
	for k, v := range m.assetData {
		out.assetData[k] = v
	}
	for k, v := range m.referrals {
		out.referrals[k] = v.Clone()
	}
	for k, v := range m.codes {
		out.codes[k] = v
	}
	for k, v := range m.firstUse {
		out.firstUse[k] = v
	}
	return out
}

func (m *mockState) restore(src *mockState) {
	m.sales = src.sales
	m.byCollection = src.byCollection
	m.nextID = src.nextID
	m.accounts = src.accounts
	m.hashes = src.hashes
	m.assetOwners = src.assetOwners
	m.assetData = src.assetData
	m.referrals = src.referrals
	m.codes = src.codes
	m.firstUse = src.firstUse
}

func (m *mockState) Snapshot() int {
	m.snaps = append(m.snaps, m.copy())
	return len(m.snaps) - 1
}

func (m *mockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snaps) {
		return
	}
	m.restore(m.snaps[id])
	m.snaps = m.snaps[:id]
}

func (m *mockState) SaleGet(id uint64) (*Sale, bool) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, false
	}
	return sale.Clone(), true
}

func (m *mockState) SalePut(sale *Sale) error {
	if _, ok := m.sales[sale.ID]; !ok {
		m.byCollection[sale.CollectionKey] = append(m.byCollection[sale.CollectionKey], sale.ID)
	}
	m.sales[sale.ID] = sale.Clone()
	return nil
}

func (m *mockState) SaleRemove(id uint64) error {
	sale, ok := m.sales[id]
	if !ok {
		return errors.New("mock: sale not found")
	}
	delete(m.sales, id)
	ids := m.byCollection[sale.CollectionKey]
	for i, candidate := range ids {
		if candidate == id {
			m.byCollection[sale.CollectionKey] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockState) SalesByCollection(key string) []uint64 {
	return append([]uint64(nil), m.byCollection[key]...)
}

func (m *mockState) NextSaleID() (uint64, error) {
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var k [20]byte
	copy(k[:], addr)
	if acc, ok := m.accounts[k]; ok {
		clone := *acc
		clone.BalanceCRU = new(big.Int).Set(acc.BalanceCRU)
		clone.BalanceUSD = new(big.Int).Set(acc.BalanceUSD)
		clone.BalanceXCRU = new(big.Int).Set(acc.BalanceXCRU)
		return &clone, nil
	}
	return &types.Account{BalanceCRU: big.NewInt(0), BalanceUSD: big.NewInt(0), BalanceXCRU: big.NewInt(0)}, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var k [20]byte
	copy(k[:], addr)
	clone := *account
	clone.BalanceCRU = new(big.Int).Set(account.BalanceCRU)
	clone.BalanceUSD = new(big.Int).Set(account.BalanceUSD)
	clone.BalanceXCRU = new(big.Int).Set(account.BalanceXCRU)
	m.accounts[k] = &clone
	return nil
}

func (m *mockState) HashConsumed(hash [32]byte) bool { return m.hashes[hash] }

func (m *mockState) MarkHashConsumed(hash [32]byte) error {
	m.hashes[hash] = true
	return nil
}

func (m *mockState) OwnerOf(assetID uint64) ([20]byte, error) {
	owner, ok := m.assetOwners[assetID]
	if !ok {
		return [20]byte{}, nativecommon.ErrAssetNotFound
	}
	return owner, nil
}

func (m *mockState) DataOf(assetID uint64) (nativecommon.AssetData, error) {
	data, ok := m.assetData[assetID]
	if !ok {
		return nativecommon.AssetData{}, nativecommon.ErrAssetNotFound
	}
	return data, nil
}

func (m *mockState) PrivilegedTransfer(from, to [20]byte, assetID uint64) error {
	owner, ok := m.assetOwners[assetID]
	if !ok {
		return nativecommon.ErrAssetNotFound
	}
	if owner != from {
		return errors.New("mock: transferor does not own asset")
	}
	m.assetOwners[assetID] = to
	return nil
}

func (m *mockState) ReferralGet(owner [20]byte) (*referral.Referral, bool) {
	rec, ok := m.referrals[owner]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (m *mockState) ReferralPut(rec *referral.Referral) error {
	m.referrals[rec.Owner] = rec.Clone()
	if _, ok := m.codes[rec.Code]; !ok {
		m.codes[rec.Code] = rec.Owner
	}
	return nil
}

func (m *mockState) ReferralOwnerByCode(code string) ([20]byte, bool) {
	owner, ok := m.codes[code]
	return owner, ok
}

func (m *mockState) ReferralFirstUsePaid(account [20]byte) bool { return m.firstUse[account] }

func (m *mockState) MarkReferralFirstUsePaid(account [20]byte) error {
	m.firstUse[account] = true
	return nil
}

type mockAccess struct {
	roles     map[string]map[[20]byte]bool
	addrs     map[string][20]byte
	delegates map[[20]byte]bool
}

func newMockAccess() *mockAccess {
	return &mockAccess{
		roles:     make(map[string]map[[20]byte]bool),
		addrs:     make(map[string][20]byte),
		delegates: make(map[[20]byte]bool),
	}
}

func (m *mockAccess) grant(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockAccess) HasRole(role string, addr [20]byte) bool { return m.roles[role][addr] }
func (m *mockAccess) HasDelegateRole(addr [20]byte) bool      { return m.delegates[addr] }
func (m *mockAccess) HasPaymentRole(addr [20]byte) bool       { return m.delegates[addr] }

func (m *mockAccess) RoleAddress(role string) ([20]byte, error) {
	addr, ok := m.addrs[role]
	if !ok {
		return [20]byte{}, errors.New("role not bound")
	}
	return addr, nil
}

type mockWhitelist struct {
	allowed map[[20]byte]bool
}

func (m *mockWhitelist) IsWhitelisted(addr [20]byte) bool { return m.allowed[addr] }

type mockMembers struct {
	tiers map[[20]byte]uint8
}

func (m *mockMembers) MembershipOf(addr [20]byte) uint8 { return m.tiers[addr] }

type mockBrands struct {
	owners map[uint64][20]byte
}

func (m *mockBrands) BrandOwner(brandID uint64) ([20]byte, bool) {
	owner, ok := m.owners[brandID]
	return owner, ok
}

func svc(b byte) [20]byte {
	var a [20]byte
	a[0] = 0xf0
	a[19] = b
	return a
}

type fixture struct {
	engine    *Engine
	pay       *payments.Engine
	state     *mockState
	access    *mockAccess
	whitelist *mockWhitelist
	members   *mockMembers
	now       int64

	relayer    [20]byte
	moduleAddr [20]byte
	custody    [20]byte

	sellerKey *ecdsa.PrivateKey
	seller    [20]byte
	buyerKey  *ecdsa.PrivateKey
	buyer     [20]byte
}

func signerAddr(key *ecdsa.PrivateKey) [20]byte {
	return [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey))
}

func sign(t *testing.T, key *ecdsa.PrivateKey, hash [32]byte) []byte {
	t.Helper()
	sig, err := ethcrypto.Sign(accounts.TextHash(hash[:]), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func opHash(label string) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(label))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:      newMockState(),
		access:     newMockAccess(),
		relayer:    svc(0x01),
		moduleAddr: svc(0x02),
		custody:    svc(0x03),
		now:        baseNow,
	}
	f.whitelist = &mockWhitelist{allowed: make(map[[20]byte]bool)}
	f.members = &mockMembers{tiers: make(map[[20]byte]uint8)}

	var err error
	if f.sellerKey, err = ethcrypto.GenerateKey(); err != nil {
		t.Fatalf("generate seller key: %v", err)
	}
	f.seller = signerAddr(f.sellerKey)
	if f.buyerKey, err = ethcrypto.GenerateKey(); err != nil {
		t.Fatalf("generate buyer key: %v", err)
	}
	f.buyer = signerAddr(f.buyerKey)

	admin := svc(0x04)
	f.access.grant(nativecommon.RoleAdmin, admin)
	f.access.grant(nativecommon.RoleSales, f.relayer)
	f.access.delegates[f.moduleAddr] = true
	f.access.addrs[nativecommon.RoleSalesVault] = f.custody
	f.access.addrs[nativecommon.RoleTreasury] = svc(0x05)
	f.access.addrs[nativecommon.RoleService] = svc(0x06)
	f.access.addrs[nativecommon.RoleStakingPool] = svc(0x07)
	f.access.addrs[nativecommon.RoleSwapTreasury] = svc(0x08)
	f.access.addrs[nativecommon.RoleFiatProxy] = svc(0x09)
	f.access.addrs[nativecommon.RoleBrandVault] = svc(0x0a)

	f.pay = payments.NewEngine(f.access, f.members)
	f.pay.SetState(f.state)
	feeCfg := payments.FeeConfig{
		BuyPermille:  25,
		SellPermille: 25,
		TreasuryPct:  50,
		BrandPct:     30,
		StakingPct:   20,
		MaxFeeCapPct: 10,
		FiatFeePct:   3,
		CRUPerUSD:    100,
	}
	if err := f.pay.SetFeeConfig(admin, feeCfg); err != nil {
		t.Fatalf("fee config: %v", err)
	}
	for op, fee := range map[payments.Operation]int64{
		payments.OpList:     5,
		payments.OpBuy:      5,
		payments.OpWithdraw: 5,
		payments.OpRenew:    5,
	} {
		if err := f.pay.SetServiceFee(admin, op, big.NewInt(fee)); err != nil {
			t.Fatalf("service fee %s: %v", op, err)
		}
	}

	ref := referral.NewEngine(f.access, f.pay)
	ref.SetState(f.state)
	ref.SetModuleAddress(f.moduleAddr)

	f.engine = NewEngine(f.access, f.whitelist, f.members, f.state, &mockBrands{owners: make(map[uint64][20]byte)}, f.pay, ref)
	f.engine.SetState(f.state)
	f.engine.SetAuthorizer(nativecommon.NewAuthorizer(f.state))
	f.engine.SetModuleAddress(f.moduleAddr)
	f.engine.SetNowFunc(func() int64 { return f.now })

	if err := f.engine.SetDuration(admin, "gold", 1_000); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if err := f.engine.SetPriority(admin, 1, 60); err != nil {
		t.Fatalf("set priority: %v", err)
	}

	f.whitelist.allowed[f.seller] = true
	f.whitelist.allowed[f.buyer] = true
	f.fund(f.seller, 1_000)
	f.fund(f.buyer, 50_000)
	f.registerAsset(1, f.seller, "gold", 7)
	return f
}

func (f *fixture) fund(who [20]byte, amount int64) {
	_ = f.state.PutAccount(who[:], &types.Account{
		BalanceCRU:  big.NewInt(amount),
		BalanceUSD:  big.NewInt(0),
		BalanceXCRU: big.NewInt(0),
	})
}

func (f *fixture) registerAsset(id uint64, owner [20]byte, collection string, brandID uint64) {
	f.state.assetOwners[id] = owner
	f.state.assetData[id] = nativecommon.AssetData{CollectionKey: collection, BrandID: brandID}
}

func (f *fixture) cru(t *testing.T, who [20]byte) int64 {
	t.Helper()
	acc, err := f.state.GetAccount(who[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc.BalanceCRU.Int64()
}

func (f *fixture) list(t *testing.T, label string, items []ListItem) []*Sale {
	t.Helper()
	hash := opHash(label)
	created, err := f.engine.List(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, items)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return created
}

func TestListSchedulesAndMovesToCustody(t *testing.T) {
	f := newFixture(t)
	recorder := &events.Recorder{}
	f.engine.SetEmitter(recorder)

	created := f.list(t, "list-1", []ListItem{{AssetID: 1, Price: big.NewInt(10_000)}})
	if len(created) != 1 {
		t.Fatalf("want 1 sale, got %d", len(created))
	}
	sale := created[0]
	// anchor day 0 disables weekly batching: the window opens ten minutes out
	if sale.Start != baseNow+600 {
		t.Fatalf("start: want %d, got %d", baseNow+600, sale.Start)
	}
	if sale.End != sale.Start+1_000 {
		t.Fatalf("end: want %d, got %d", sale.Start+1_000, sale.End)
	}
	owner, err := f.state.OwnerOf(1)
	if err != nil || owner != f.custody {
		t.Fatalf("asset must move to custody, owner=%x err=%v", owner, err)
	}
	if got := f.cru(t, f.seller); got != 1_000-5 {
		t.Fatalf("seller must pay the listing fee, got %d", got)
	}
	if ids := f.engine.SalesByCollection("gold"); len(ids) != 1 || ids[0] != sale.ID {
		t.Fatalf("collection index: got %v", ids)
	}
	if len(recorder.Events) != 1 || recorder.Events[0].EventType() != EventTypeSalesListed {
		t.Fatalf("expected one listed event, got %v", recorder.Events)
	}
}

func TestListRejectsReplayedSignature(t *testing.T) {
	f := newFixture(t)
	f.registerAsset(2, f.seller, "gold", 7)

	hash := opHash("list-replay")
	sig := sign(t, f.sellerKey, hash)
	if _, err := f.engine.List(f.relayer, f.seller, hash, sig, payments.CurrencyCRU, []ListItem{{AssetID: 1, Price: big.NewInt(100)}}); err != nil {
		t.Fatalf("first list: %v", err)
	}
	_, err := f.engine.List(f.relayer, f.seller, hash, sig, payments.CurrencyCRU, []ListItem{{AssetID: 2, Price: big.NewInt(100)}})
	if !errors.Is(err, nativecommon.ErrHashConsumed) {
		t.Fatalf("want ErrHashConsumed, got %v", err)
	}
}

func TestListRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)

	hash := opHash("list-forged")
	_, err := f.engine.List(f.relayer, f.seller, hash, sign(t, f.buyerKey, hash), payments.CurrencyCRU, []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	if !errors.Is(err, nativecommon.ErrSignerMismatch) {
		t.Fatalf("want ErrSignerMismatch, got %v", err)
	}
}

func TestListBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	stranger := svc(0x66)
	f.registerAsset(2, stranger, "gold", 7)
	sellerBefore := f.cru(t, f.seller)

	hash := opHash("list-batch")
	_, err := f.engine.List(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, []ListItem{
		{AssetID: 1, Price: big.NewInt(100)},
		{AssetID: 2, Price: big.NewInt(100)},
	})
	if !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("want ErrNotAssetOwner, got %v", err)
	}
	if owner, _ := f.state.OwnerOf(1); owner != f.seller {
		t.Fatalf("asset 1 custody must roll back, owner=%x", owner)
	}
	if got := f.cru(t, f.seller); got != sellerBefore {
		t.Fatalf("listing fee must roll back, got %d", got)
	}
	if len(f.engine.SalesByCollection("gold")) != 0 {
		t.Fatalf("no sale may survive a failed batch")
	}
	// the whole call failed, so the authorization hash is reusable
	if f.state.HashConsumed(hash) {
		t.Fatalf("hash must roll back with the failed batch")
	}
}

func buyHash(t *testing.T, f *fixture, label string) ([32]byte, []byte) {
	t.Helper()
	hash := opHash(label)
	return hash, sign(t, f.buyerKey, hash)
}

func TestBuySettlesAndRemovesSale(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-buy", []ListItem{{AssetID: 1, Price: big.NewInt(10_000)}})
	sale := created[0]
	f.now = sale.Start

	hash, sig := buyHash(t, f, "buy-1")
	if err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{sale.ID}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if owner, _ := f.state.OwnerOf(1); owner != f.buyer {
		t.Fatalf("asset must transfer to buyer, owner=%x", owner)
	}
	if _, ok := f.engine.SaleByID(sale.ID); ok {
		t.Fatalf("sale must be removed after purchase")
	}
	if len(f.engine.SalesByCollection("gold")) != 0 {
		t.Fatalf("collection index must drop the sold sale")
	}
	// proceeds = price minus the 0.5% combined fee
	if got := f.cru(t, f.seller); got != 1_000-5+9_500 {
		t.Fatalf("seller proceeds: want %d, got %d", 1_000-5+9_500, got)
	}
}

func TestBuyHonoursTierPriorityWindow(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-tier", []ListItem{{AssetID: 1, Price: big.NewInt(10_000)}})
	sale := created[0]
	f.members.tiers[f.buyer] = 1

	f.now = sale.Start + 30
	hash, sig := buyHash(t, f, "buy-early")
	err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{sale.ID})
	if !errors.Is(err, ErrSaleNotStarted) {
		t.Fatalf("tier 1 must wait its 60s priority, got %v", err)
	}

	f.now = sale.Start + 60
	hash, sig = buyHash(t, f, "buy-on-time")
	if err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{sale.ID}); err != nil {
		t.Fatalf("buy at window open: %v", err)
	}
}

func TestBuyRejectsExpiredSale(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-expire", []ListItem{{AssetID: 1, Price: big.NewInt(10_000)}})
	sale := created[0]

	f.now = sale.End + 1
	hash, sig := buyHash(t, f, "buy-late")
	err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{sale.ID})
	if !errors.Is(err, ErrSaleExpired) {
		t.Fatalf("want ErrSaleExpired, got %v", err)
	}

	f.now = sale.End
	hash, sig = buyHash(t, f, "buy-last-second")
	if err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{sale.ID}); err != nil {
		t.Fatalf("buy at the window end must succeed: %v", err)
	}
}

func TestBuyBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.registerAsset(2, f.seller, "gold", 7)
	created := f.list(t, "list-two", []ListItem{
		{AssetID: 1, Price: big.NewInt(10_000)},
		{AssetID: 2, Price: big.NewInt(10_000)},
	})
	f.now = created[0].Start
	buyerBefore := f.cru(t, f.buyer)

	hash, sig := buyHash(t, f, "buy-batch")
	err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{created[0].ID, created[1].ID, 999})
	if !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("want ErrSaleNotFound, got %v", err)
	}
	if got := f.cru(t, f.buyer); got != buyerBefore {
		t.Fatalf("buyer must be made whole, got %d", got)
	}
	if owner, _ := f.state.OwnerOf(1); owner != f.custody {
		t.Fatalf("custody must keep asset 1 after revert")
	}
	if len(f.engine.SalesByCollection("gold")) != 2 {
		t.Fatalf("both sales must survive the failed batch")
	}
}

func TestBuyRoutesReferralReward(t *testing.T) {
	f := newFixture(t)
	admin := svc(0x04)
	if err := f.engine.SetReferralRewardPermille(admin, 10); err != nil {
		t.Fatalf("set reward: %v", err)
	}
	// register the referrer and link the buyer
	referrer := svc(0x55)
	if _, err := f.engine.referral.Create(f.moduleAddr, referrer, "KING", ""); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	if _, err := f.engine.referral.Create(f.moduleAddr, f.buyer, "", "KING"); err != nil {
		t.Fatalf("create buyer referral: %v", err)
	}
	f.fund(f.access.addrs[nativecommon.RoleSwapTreasury], 10_000)

	created := f.list(t, "list-reward", []ListItem{{AssetID: 1, Price: big.NewInt(10_000)}})
	f.now = created[0].Start
	buyerBefore := f.cru(t, f.buyer)

	hash, sig := buyHash(t, f, "buy-reward")
	if err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{created[0].ID}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// 10 permille of the price, first use pays referrer and buyer alike
	if got := f.cru(t, referrer); got != 100 {
		t.Fatalf("referrer reward: want 100, got %d", got)
	}
	if got := f.cru(t, f.buyer); got != buyerBefore-10_000-5+100 {
		t.Fatalf("buyer balance: want %d, got %d", buyerBefore-10_000-5+100, got)
	}
}

func TestBuyRejectsUnlistedBuyer(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-wl", []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	f.now = created[0].Start
	delete(f.whitelist.allowed, f.buyer)

	hash, sig := buyHash(t, f, "buy-wl")
	err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{created[0].ID})
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("want ErrNotWhitelisted, got %v", err)
	}
}

func TestBuyRejectsDelistedSeller(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-ds", []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	f.now = created[0].Start
	delete(f.whitelist.allowed, f.seller)

	hash, sig := buyHash(t, f, "buy-ds")
	err := f.engine.Buy(f.relayer, f.buyer, hash, sig, payments.CurrencyCRU, []uint64{created[0].ID})
	if !errors.Is(err, ErrSellerNotWhitelisted) {
		t.Fatalf("want ErrSellerNotWhitelisted, got %v", err)
	}
}

func TestWithdrawReturnsAsset(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-wd", []ListItem{{AssetID: 1, Price: big.NewInt(100)}})

	hash := opHash("withdraw-1")
	if err := f.engine.Withdraw(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, []uint64{created[0].ID}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if owner, _ := f.state.OwnerOf(1); owner != f.seller {
		t.Fatalf("asset must return to seller, owner=%x", owner)
	}
	if _, ok := f.engine.SaleByID(created[0].ID); ok {
		t.Fatalf("sale must be delisted")
	}
}

func TestWithdrawRejectsForeignSale(t *testing.T) {
	f := newFixture(t)
	created := f.list(t, "list-foreign", []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	f.whitelist.allowed[f.buyer] = true

	hash := opHash("withdraw-foreign")
	err := f.engine.Withdraw(f.relayer, f.buyer, hash, sign(t, f.buyerKey, hash), payments.CurrencyCRU, []uint64{created[0].ID})
	if !errors.Is(err, ErrNotSeller) {
		t.Fatalf("want ErrNotSeller, got %v", err)
	}
}

func TestRenewExtendsByCachedDuration(t *testing.T) {
	f := newFixture(t)
	admin := svc(0x04)
	created := f.list(t, "list-renew", []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	// the policy change must not affect the already-listed sale
	if err := f.engine.SetDuration(admin, "gold", 5_000); err != nil {
		t.Fatalf("set duration: %v", err)
	}

	f.now = created[0].End + 100
	hash := opHash("renew-1")
	if err := f.engine.Renew(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, []uint64{created[0].ID}); err != nil {
		t.Fatalf("renew: %v", err)
	}
	sale, ok := f.engine.SaleByID(created[0].ID)
	if !ok {
		t.Fatalf("sale must survive renewal")
	}
	if sale.End != f.now+1_000 {
		t.Fatalf("renewed end: want %d, got %d", f.now+1_000, sale.End)
	}
}

func TestListRequiresConfiguredDuration(t *testing.T) {
	f := newFixture(t)
	f.registerAsset(3, f.seller, "unconfigured", 7)

	hash := opHash("list-nocfg")
	_, err := f.engine.List(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, []ListItem{{AssetID: 3, Price: big.NewInt(100)}})
	if !errors.Is(err, ErrScheduleNotConfigured) {
		t.Fatalf("want ErrScheduleNotConfigured, got %v", err)
	}
}

func TestEmptyBatchRejected(t *testing.T) {
	f := newFixture(t)
	hash := opHash("list-empty")
	_, err := f.engine.List(f.relayer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("want ErrEmptyBatch, got %v", err)
	}
}

func TestUnauthorizedRelayer(t *testing.T) {
	f := newFixture(t)
	hash := opHash("list-unauth")
	_, err := f.engine.List(f.buyer, f.seller, hash, sign(t, f.sellerKey, hash), payments.CurrencyCRU, []ListItem{{AssetID: 1, Price: big.NewInt(100)}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestAdminSettersGated(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetScheduleDay(f.buyer, 3); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetScheduleDay: want ErrUnauthorized, got %v", err)
	}
	admin := svc(0x04)
	if err := f.engine.SetScheduleDay(admin, 7); !errors.Is(err, ErrScheduleDayRange) {
		t.Fatalf("want ErrScheduleDayRange, got %v", err)
	}
	if err := f.engine.SetReferralRewardPermille(admin, 1_001); !errors.Is(err, ErrRewardRange) {
		t.Fatalf("want ErrRewardRange, got %v", err)
	}
}
