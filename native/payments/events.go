package payments

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crumarket/core/types"
)

const (
	EventTypeFeesSplit          = "payments.fees.split"
	EventTypeServiceFeeCharged  = "payments.service.charged"
	EventTypeRewardsDistributed = "payments.rewards.distributed"
	EventTypeFeaturedPaid       = "payments.featured.paid"
	EventTypeConverted          = "payments.converted"
)

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newFeeSplitEvent(currency string, seller, buyer [20]byte, b *SaleFeeBreakdown) *types.Event {
	attrs := map[string]string{
		"currency": currency,
		"seller":   hex.EncodeToString(seller[:]),
		"buyer":    hex.EncodeToString(buyer[:]),
	}
	if b != nil {
		attrs["price"] = bigAttr(b.Price)
		attrs["buyFee"] = bigAttr(b.BuyFee)
		attrs["sellFee"] = bigAttr(b.SellFee)
		attrs["treasuryShare"] = bigAttr(b.TreasuryShare)
		attrs["brandShare"] = bigAttr(b.BrandShare)
		attrs["stakingShare"] = bigAttr(b.StakingShare)
		attrs["serviceFee"] = bigAttr(b.ServiceFee)
		attrs["fiatSurcharge"] = bigAttr(b.FiatSurcharge)
		attrs["sellerProceeds"] = bigAttr(b.SellerProceeds)
	}
	return &types.Event{Type: EventTypeFeesSplit, Attributes: attrs}
}

func newServiceFeeEvent(op Operation, currency string, wallet [20]byte, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeServiceFeeCharged, Attributes: map[string]string{
		"operation": string(op),
		"currency":  currency,
		"wallet":    hex.EncodeToString(wallet[:]),
		"amount":    bigAttr(total),
	}}
}

func newRewardsEvent(referrer, referral [20]byte, amount *big.Int, paidReferrer bool) *types.Event {
	attrs := map[string]string{
		"referrer":     hex.EncodeToString(referrer[:]),
		"amount":       bigAttr(amount),
		"paidReferrer": strconv.FormatBool(paidReferrer),
	}
	if referral != ([20]byte{}) {
		attrs["referral"] = hex.EncodeToString(referral[:])
	}
	return &types.Event{Type: EventTypeRewardsDistributed, Attributes: attrs}
}

func newFeaturedEvent(currency string, wallet [20]byte, saleID uint64, total *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeaturedPaid, Attributes: map[string]string{
		"currency": currency,
		"wallet":   hex.EncodeToString(wallet[:]),
		"saleId":   strconv.FormatUint(saleID, 10),
		"amount":   bigAttr(total),
	}}
}

func newConvertedEvent(wallet [20]byte, in, out *big.Int, toCRU bool) *types.Event {
	return &types.Event{Type: EventTypeConverted, Attributes: map[string]string{
		"wallet": hex.EncodeToString(wallet[:]),
		"in":     bigAttr(in),
		"out":    bigAttr(out),
		"toCRU":  strconv.FormatBool(toCRU),
	}}
}
