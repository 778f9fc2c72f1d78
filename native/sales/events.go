package sales

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"crumarket/core/types"
)

const (
	EventTypeSalesListed    = "sales.listed"
	EventTypeSalesSold      = "sales.sold"
	EventTypeSalesWithdrawn = "sales.withdrawn"
	EventTypeSalesRenewed   = "sales.renewed"
)

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ",")
}

func joinWindows(saleList []*Sale) (string, string) {
	starts := make([]string, 0, len(saleList))
	ends := make([]string, 0, len(saleList))
	for _, s := range saleList {
		if s == nil {
			continue
		}
		starts = append(starts, strconv.FormatInt(s.Start, 10))
		ends = append(ends, strconv.FormatInt(s.End, 10))
	}
	return strings.Join(starts, ","), strings.Join(ends, ",")
}

func feeAttr(total *big.Int) string {
	if total == nil {
		return "0"
	}
	return total.String()
}

func newListedEvent(seller [20]byte, currency string, saleList []*Sale, fees *big.Int) *types.Event {
	ids := make([]uint64, 0, len(saleList))
	for _, s := range saleList {
		if s != nil {
			ids = append(ids, s.ID)
		}
	}
	starts, ends := joinWindows(saleList)
	return &types.Event{Type: EventTypeSalesListed, Attributes: map[string]string{
		"seller":   hex.EncodeToString(seller[:]),
		"currency": currency,
		"saleIds":  joinIDs(ids),
		"starts":   starts,
		"ends":     ends,
		"fees":     feeAttr(fees),
	}}
}

func newSoldEvent(buyer [20]byte, currency string, ids []uint64, sellers [][20]byte, fees *big.Int) *types.Event {
	sellerAttrs := make([]string, 0, len(sellers))
	for _, s := range sellers {
		sellerAttrs = append(sellerAttrs, hex.EncodeToString(s[:]))
	}
	return &types.Event{Type: EventTypeSalesSold, Attributes: map[string]string{
		"buyer":    hex.EncodeToString(buyer[:]),
		"currency": currency,
		"saleIds":  joinIDs(ids),
		"sellers":  strings.Join(sellerAttrs, ","),
		"fees":     feeAttr(fees),
	}}
}

func newWithdrawnEvent(seller [20]byte, currency string, ids []uint64, fees *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSalesWithdrawn, Attributes: map[string]string{
		"seller":   hex.EncodeToString(seller[:]),
		"currency": currency,
		"saleIds":  joinIDs(ids),
		"fees":     feeAttr(fees),
	}}
}

func newRenewedEvent(seller [20]byte, currency string, saleList []*Sale, fees *big.Int) *types.Event {
	ids := make([]uint64, 0, len(saleList))
	for _, s := range saleList {
		if s != nil {
			ids = append(ids, s.ID)
		}
	}
	starts, ends := joinWindows(saleList)
	return &types.Event{Type: EventTypeSalesRenewed, Attributes: map[string]string{
		"seller":   hex.EncodeToString(seller[:]),
		"currency": currency,
		"saleIds":  joinIDs(ids),
		"starts":   starts,
		"ends":     ends,
		"fees":     feeAttr(fees),
	}}
}
