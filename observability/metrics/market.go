package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	salesListed     *prometheus.CounterVec
	salesSold       *prometheus.CounterVec
	feesCollected   *prometheus.CounterVec
	referralRewards prometheus.Counter
	clubShares      prometheus.Gauge
	clubRate        prometheus.Gauge
	engineErrors    *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			salesListed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_sales_listed_total",
				Help: "Count of assets listed for sale by payment currency.",
			}, []string{"currency"}),
			salesSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_sales_sold_total",
				Help: "Count of completed purchases by payment currency.",
			}, []string{"currency"}),
			feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_fees_collected_total",
				Help: "Fee volume collected per destination leg, in base units.",
			}, []string{"leg"}),
			referralRewards: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_referral_rewards_total",
				Help: "Number of referral reward distributions executed.",
			}),
			clubShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_club_shares",
				Help: "Outstanding club share supply.",
			}),
			clubRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_club_redemption_rate",
				Help: "Current club redemption rate in fixed-point units.",
			}),
			engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_engine_errors_total",
				Help: "Count of failed engine operations by module.",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			marketRegistry.salesListed,
			marketRegistry.salesSold,
			marketRegistry.feesCollected,
			marketRegistry.referralRewards,
			marketRegistry.clubShares,
			marketRegistry.clubRate,
			marketRegistry.engineErrors,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveListed(currency string, count int) {
	if m == nil {
		return
	}
	if currency == "" {
		currency = "unknown"
	}
	m.salesListed.WithLabelValues(currency).Add(float64(count))
}

func (m *MarketMetrics) ObserveSold(currency string, count int) {
	if m == nil {
		return
	}
	if currency == "" {
		currency = "unknown"
	}
	m.salesSold.WithLabelValues(currency).Add(float64(count))
}

func (m *MarketMetrics) ObserveFees(leg string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	if leg == "" {
		leg = "unknown"
	}
	m.feesCollected.WithLabelValues(leg).Add(amount)
}

func (m *MarketMetrics) ObserveReferralReward() {
	if m == nil {
		return
	}
	m.referralRewards.Inc()
}

func (m *MarketMetrics) SetClubShares(shares float64) {
	if m == nil {
		return
	}
	m.clubShares.Set(shares)
}

func (m *MarketMetrics) SetClubRate(rate float64) {
	if m == nil {
		return
	}
	m.clubRate.Set(rate)
}

func (m *MarketMetrics) ObserveEngineError(module string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	m.engineErrors.WithLabelValues(module).Inc()
}
