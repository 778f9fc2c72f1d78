package referral

import "strings"

// Referral is the per-account record: a unique code, an optional referrer
// link (set once, immutable thereafter) and the influencer flag granting
// standing rewards beyond the first use. UsedCount tracks how many reward
// payouts this account's code has triggered.
type Referral struct {
	Code         string   `json:"code"`
	Owner        [20]byte `json:"owner"`
	Referrer     [20]byte `json:"referrer"`
	IsInfluencer bool     `json:"isInfluencer"`
	UsedCount    uint64   `json:"usedCount"`
}

// Clone returns a copy safe for callers to mutate.
func (r *Referral) Clone() *Referral {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// NormalizeCode canonicalises a referral code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
