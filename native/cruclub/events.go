package cruclub

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crumarket/core/types"
)

const (
	EventTypeStaked      = "cruclub.staked"
	EventTypeUnstaked    = "cruclub.unstaked"
	EventTypeClaimed     = "cruclub.claimed"
	EventTypeAirdropped  = "cruclub.airdropped"
	EventTypeRateUpdated = "cruclub.rate.updated"
)

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newStakedEvent(staker [20]byte, amount, shares, rate *big.Int) *types.Event {
	return &types.Event{Type: EventTypeStaked, Attributes: map[string]string{
		"staker": hex.EncodeToString(staker[:]),
		"amount": bigAttr(amount),
		"shares": bigAttr(shares),
		"rate":   bigAttr(rate),
	}}
}

func newUnstakedEvent(staker [20]byte, shares *big.Int, req *UnstakeRequest) *types.Event {
	attrs := map[string]string{
		"staker": hex.EncodeToString(staker[:]),
		"shares": bigAttr(shares),
	}
	if req != nil {
		attrs["amount"] = bigAttr(req.Amount)
		attrs["claimableAt"] = strconv.FormatInt(req.End, 10)
	}
	return &types.Event{Type: EventTypeUnstaked, Attributes: attrs}
}

func newClaimedEvent(staker [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"staker": hex.EncodeToString(staker[:]),
		"amount": bigAttr(amount),
	}}
}

func newAirdroppedEvent(from [20]byte, amount, rate *big.Int) *types.Event {
	return &types.Event{Type: EventTypeAirdropped, Attributes: map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"amount": bigAttr(amount),
		"rate":   bigAttr(rate),
	}}
}

func newRateUpdatedEvent(rate, supply, shares *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRateUpdated, Attributes: map[string]string{
		"rate":          bigAttr(rate),
		"stakingSupply": bigAttr(supply),
		"shareSupply":   bigAttr(shares),
	}}
}
