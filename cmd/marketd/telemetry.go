package main

import (
	"math/big"
	"strings"
	"sync"

	coreevents "crumarket/core/events"
	coretypes "crumarket/core/types"
	"crumarket/native/cruclub"
	"crumarket/native/payments"
	"crumarket/native/sales"
	"crumarket/observability/metrics"
)

const recentEventLimit = 256

// telemetryEmitter feeds engine events into the prometheus registry and
// keeps a bounded ring of recent events.
type telemetryEmitter struct {
	mu     sync.Mutex
	recent []*coretypes.Event
}

func newTelemetryEmitter() *telemetryEmitter {
	return &telemetryEmitter{}
}

type payloadCarrier interface {
	Event() *coretypes.Event
}

func (t *telemetryEmitter) Emit(evt coreevents.Event) {
	carrier, ok := evt.(payloadCarrier)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}

	t.mu.Lock()
	t.recent = append(t.recent, payload)
	if len(t.recent) > recentEventLimit {
		t.recent = t.recent[len(t.recent)-recentEventLimit:]
	}
	t.mu.Unlock()

	registry := metrics.Market()
	attrs := payload.Attributes
	switch payload.Type {
	case sales.EventTypeSalesListed:
		registry.ObserveListed(attrs["currency"], idCount(attrs["saleIds"]))
	case sales.EventTypeSalesSold:
		registry.ObserveSold(attrs["currency"], idCount(attrs["saleIds"]))
		registry.ObserveFees("sale", amountValue(attrs["fees"]))
	case payments.EventTypeServiceFeeCharged, payments.EventTypeFeaturedPaid:
		registry.ObserveFees("service", amountValue(attrs["amount"]))
	case payments.EventTypeRewardsDistributed:
		registry.ObserveReferralReward()
	case cruclub.EventTypeStaked:
		registry.SetClubRate(amountValue(attrs["rate"]))
	case cruclub.EventTypeRateUpdated:
		registry.SetClubRate(amountValue(attrs["rate"]))
		registry.SetClubShares(amountValue(attrs["shareSupply"]))
	}
}

// Recent returns a copy of the retained event ring, newest last.
func (t *telemetryEmitter) Recent() []*coretypes.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*coretypes.Event, len(t.recent))
	copy(out, t.recent)
	return out
}

func idCount(joined string) int {
	if strings.TrimSpace(joined) == "" {
		return 0
	}
	return len(strings.Split(joined, ","))
}

func amountValue(encoded string) float64 {
	value, ok := new(big.Float).SetString(encoded)
	if !ok {
		return 0
	}
	out, _ := value.Float64()
	return out
}
