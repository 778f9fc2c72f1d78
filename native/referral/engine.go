package referral

import (
	"math/big"
	"strings"

	"github.com/google/uuid"

	"crumarket/core/events"
	"crumarket/core/types"
	nativecommon "crumarket/native/common"
	"crumarket/native/payments"
)

const moduleName = "referral"

type engineState interface {
	ReferralGet(owner [20]byte) (*Referral, bool)
	ReferralPut(*Referral) error
	ReferralOwnerByCode(code string) ([20]byte, bool)
	ReferralFirstUsePaid(account [20]byte) bool
	MarkReferralFirstUsePaid(account [20]byte) error
	Snapshot() int
	RevertToSnapshot(id int)
}

type referralEvent struct {
	evt *types.Event
}

func (e referralEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e referralEvent) Event() *types.Event { return e.evt }

// Engine tracks referrer/referral linkage and influencer status, and routes
// reward payments through the fee engine on each qualifying purchase.
type Engine struct {
	state    engineState
	access   nativecommon.AccessDirectory
	payments *payments.Engine
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	// module address used as the delegated caller towards the fee engine,
	// mirroring the contract address the rewards treasury trusts.
	moduleAddr [20]byte
}

// NewEngine creates a referral engine bound to the fee engine used for
// reward distribution.
func NewEngine(access nativecommon.AccessDirectory, pay *payments.Engine) *Engine {
	return &Engine{
		access:   access,
		payments: pay,
		emitter:  events.NoopEmitter{},
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

// SetModuleAddress registers the address this engine identifies as when
// calling into the fee engine.
func (e *Engine) SetModuleAddress(addr [20]byte) { e.moduleAddr = addr }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(referralEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// Create assigns a fresh referral code to user and optionally links a
// referrer in the same call. An empty code is auto-generated. Code
// assignment and referrer linkage are independent decisions.
func (e *Engine) Create(caller [20]byte, user [20]byte, code string, referrerCode string) (*Referral, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.access == nil || !e.access.HasPaymentRole(caller) {
		return nil, ErrUnauthorized
	}
	if user == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if _, exists := e.state.ReferralGet(user); exists {
		return nil, ErrAlreadyRegistered
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		normalized = NormalizeCode(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if _, taken := e.state.ReferralOwnerByCode(normalized); taken {
		return nil, ErrCodeTaken
	}
	rec := &Referral{Code: normalized, Owner: user}
	if NormalizeCode(referrerCode) != "" {
		referrer, ok := e.state.ReferralOwnerByCode(NormalizeCode(referrerCode))
		if !ok {
			return nil, ErrCodeNotFound
		}
		if referrer == user {
			return nil, ErrSelfReferral
		}
		rec.Referrer = referrer
	}
	if err := e.state.ReferralPut(rec); err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(rec))
	return rec.Clone(), nil
}

// Link attaches a referrer to an already-registered account. The link is
// created once and never overwritten.
func (e *Engine) Link(caller [20]byte, user [20]byte, referrerCode string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.access == nil || !e.access.HasPaymentRole(caller) {
		return ErrUnauthorized
	}
	rec, ok := e.state.ReferralGet(user)
	if !ok {
		return ErrNotRegistered
	}
	if rec.Referrer != ([20]byte{}) {
		return ErrReferrerAlreadySet
	}
	referrer, ok := e.state.ReferralOwnerByCode(NormalizeCode(referrerCode))
	if !ok {
		return ErrCodeNotFound
	}
	if referrer == user {
		return ErrSelfReferral
	}
	rec.Referrer = referrer
	if err := e.state.ReferralPut(rec); err != nil {
		return err
	}
	e.emit(newLinkedEvent(user, referrer))
	return nil
}

// SetInfluencer toggles influencer status. Admins may promote anyone; a
// code owner may toggle their own flag.
func (e *Engine) SetInfluencer(caller [20]byte, user [20]byte, flag bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.access == nil || (!e.access.HasRole(nativecommon.RoleAdmin, caller) && caller != user) {
		return ErrUnauthorized
	}
	rec, ok := e.state.ReferralGet(user)
	if !ok {
		return ErrNotRegistered
	}
	if rec.IsInfluencer == flag {
		return nil
	}
	rec.IsInfluencer = flag
	if err := e.state.ReferralPut(rec); err != nil {
		return err
	}
	e.emit(newInfluencerEvent(user, flag))
	return nil
}

// Use routes the reward payment for a purchase made by account. The first
// ever use pays both the referrer and the referred account; every later
// use pays the referrer alone and only while the referrer holds influencer
// status. No referrer link means no-op.
func (e *Engine) Use(caller [20]byte, account [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.access == nil || !e.access.HasDelegateRole(caller) {
		return ErrUnauthorized
	}
	if e.payments == nil {
		return ErrNilPayments
	}
	if account == ([20]byte{}) {
		return nil
	}
	rec, ok := e.state.ReferralGet(account)
	if !ok || rec.Referrer == ([20]byte{}) {
		return nil
	}
	referrerRec, _ := e.state.ReferralGet(rec.Referrer)
	firstUse := !e.state.ReferralFirstUsePaid(account)
	influencer := referrerRec != nil && referrerRec.IsInfluencer
	if !firstUse && !influencer {
		return nil
	}

	snap := e.state.Snapshot()
	// The first-use flag is permanent and set before any transfer so a
	// reentered call cannot trigger a second first-use payout.
	if firstUse {
		if err := e.state.MarkReferralFirstUsePaid(account); err != nil {
			return err
		}
	}
	referralPayee := [20]byte{}
	if firstUse {
		referralPayee = account
	}
	if err := e.payments.DistributeRewards(e.moduleAddr, rec.Referrer, referralPayee, amount, true); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if referrerRec != nil {
		referrerRec.UsedCount++
		if err := e.state.ReferralPut(referrerRec); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	e.emit(newUsedEvent(account, rec.Referrer, amount, firstUse, firstUse))
	return nil
}

// Of returns the referral record for an account.
func (e *Engine) Of(account [20]byte) (*Referral, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	rec, ok := e.state.ReferralGet(account)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}
