package referral

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crumarket/core/types"
)

const (
	EventTypeReferralCreated    = "referral.created"
	EventTypeReferralLinked     = "referral.linked"
	EventTypeInfluencerUpdated  = "referral.influencer.updated"
	EventTypeReferralUsed       = "referral.used"
)

func newCreatedEvent(r *Referral) *types.Event {
	attrs := map[string]string{}
	if r != nil {
		attrs["code"] = r.Code
		attrs["owner"] = hex.EncodeToString(r.Owner[:])
		if r.Referrer != ([20]byte{}) {
			attrs["referrer"] = hex.EncodeToString(r.Referrer[:])
		}
	}
	return &types.Event{Type: EventTypeReferralCreated, Attributes: attrs}
}

func newLinkedEvent(owner, referrer [20]byte) *types.Event {
	return &types.Event{Type: EventTypeReferralLinked, Attributes: map[string]string{
		"owner":    hex.EncodeToString(owner[:]),
		"referrer": hex.EncodeToString(referrer[:]),
	}}
}

func newInfluencerEvent(owner [20]byte, flag bool) *types.Event {
	return &types.Event{Type: EventTypeInfluencerUpdated, Attributes: map[string]string{
		"owner":        hex.EncodeToString(owner[:]),
		"isInfluencer": strconv.FormatBool(flag),
	}}
}

func newUsedEvent(account, referrer [20]byte, amount *big.Int, firstUse, paidReferral bool) *types.Event {
	amt := "0"
	if amount != nil {
		amt = amount.String()
	}
	return &types.Event{Type: EventTypeReferralUsed, Attributes: map[string]string{
		"account":      hex.EncodeToString(account[:]),
		"referrer":     hex.EncodeToString(referrer[:]),
		"amount":       amt,
		"firstUse":     strconv.FormatBool(firstUse),
		"paidReferral": strconv.FormatBool(paidReferral),
	}}
}
