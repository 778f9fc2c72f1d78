package cruclub

import "math/big"

// DefaultUnstakeDelaySeconds is the cooldown applied to unstake requests
// until the admin configures another value.
const DefaultUnstakeDelaySeconds int64 = 7 * 24 * 60 * 60

// RatePrecision is the fixed-point base of the redemption rate: a rate of
// exactly RatePrecision means one share redeems one CRU.
var RatePrecision = mustBigInt("1000000000000000000") // 1e18

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// UnstakeRequest records the underlying CRU owed to an account after it
// burned shares, claimable once End has passed. Each account holds at most
// one outstanding request; a new unstake folds the unclaimed amount into
// the fresh request and restarts the delay.
type UnstakeRequest struct {
	Amount *big.Int `json:"amount"`
	Start  int64    `json:"start"`
	End    int64    `json:"end"`
}

// Clone returns a deep copy of the request.
func (r *UnstakeRequest) Clone() *UnstakeRequest {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Amount != nil {
		clone.Amount = new(big.Int).Set(r.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
