package payments

import (
	"fmt"
	"math/big"
	"strings"
)

// Currency symbols understood by the fee engine. USD is the fiat sentinel:
// paying in it triggers the fiat surcharge and routes debits through the
// fiat proxy account instead of the signing wallet.
const (
	CurrencyCRU  = "CRU"
	CurrencyUSD  = "USD"
	CurrencyXCRU = "XCRU"
)

// NormalizeCurrency canonicalises a currency symbol. An empty symbol is
// treated as the fiat sentinel.
func NormalizeCurrency(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return CurrencyUSD, nil
	}
	switch trimmed {
	case CurrencyCRU, CurrencyUSD, CurrencyXCRU:
		return trimmed, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, symbol)
	}
}

// Operation tags keying the flat service fee table.
type Operation string

const (
	OpList     Operation = "LIST"
	OpBuy      Operation = "BUY"
	OpWithdraw Operation = "WITHDRAW"
	OpRenew    Operation = "RENEW"
	OpFeatured Operation = "FEATURED"
)

// Denominators for the two fixed-point scales used by the engine: buy/sell
// fees and discounts are expressed in permille of the sale price, the fee
// split and the cap in percent.
const (
	PermilleDenominator = 1000
	PercentDenominator  = 100
)

// FeeConfig is the protocol-wide percentage configuration. TreasuryPct,
// BrandPct and StakingPct split the combined buy+sell fee and must sum to
// exactly 100. BuyPermille+SellPermille may never exceed MaxFeeCapPct of
// the price.
type FeeConfig struct {
	BuyPermille  uint32
	SellPermille uint32
	TreasuryPct  uint32
	BrandPct     uint32
	StakingPct   uint32
	MaxFeeCapPct uint32
	FiatFeePct   uint32
	// CRUPerUSD is the fixed multiplier applied by Convert.
	CRUPerUSD uint64
}

// Validate enforces the fee-sum and cap invariants. A configuration that
// fails validation never replaces the active one.
func (c FeeConfig) Validate() error {
	if c.TreasuryPct+c.BrandPct+c.StakingPct != PercentDenominator {
		return fmt.Errorf("%w: got %d", ErrFeeSplitSum, c.TreasuryPct+c.BrandPct+c.StakingPct)
	}
	if c.MaxFeeCapPct == 0 || c.MaxFeeCapPct > PercentDenominator {
		return fmt.Errorf("payments: fee cap out of range: %d", c.MaxFeeCapPct)
	}
	if c.BuyPermille+c.SellPermille > c.MaxFeeCapPct*10 {
		return fmt.Errorf("%w: %d permille against cap %d%%", ErrFeeCapExceeded, c.BuyPermille+c.SellPermille, c.MaxFeeCapPct)
	}
	if c.FiatFeePct > PercentDenominator {
		return fmt.Errorf("payments: fiat surcharge out of range: %d", c.FiatFeePct)
	}
	return nil
}

// SaleFeeBreakdown reports every leg of an executed sale split.
type SaleFeeBreakdown struct {
	Price          *big.Int
	BuyFee         *big.Int
	SellFee        *big.Int
	TreasuryShare  *big.Int
	BrandShare     *big.Int
	StakingShare   *big.Int
	ServiceFee     *big.Int
	FiatSurcharge  *big.Int
	SellerProceeds *big.Int
}

// TotalFees sums the percentage-based fee legs (service fee excluded).
func (b *SaleFeeBreakdown) TotalFees() *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(b.BuyFee, b.SellFee)
}
