package common

import "errors"

// ErrAssetNotFound is returned by asset ledger lookups for unknown ids.
var ErrAssetNotFound = errors.New("asset ledger: asset not found")

// MembershipRegistry maps an account to its membership tier. Tier 0 is the
// highest tier; higher numbers buy later and enjoy smaller discounts.
type MembershipRegistry interface {
	MembershipOf(addr [20]byte) uint8
}

// WhitelistRegistry gates marketplace participation.
type WhitelistRegistry interface {
	IsWhitelisted(addr [20]byte) bool
}

// AssetData classifies a wrapper token for scheduling and fee routing.
type AssetData struct {
	CollectionKey string
	BrandID       uint64
}

// AssetLedger exposes the wrapper token ledger. PrivilegedTransfer moves an
// asset without owner approval and is callable only by delegated engines.
type AssetLedger interface {
	OwnerOf(assetID uint64) ([20]byte, error)
	DataOf(assetID uint64) (AssetData, error)
	PrivilegedTransfer(from, to [20]byte, assetID uint64) error
}

// BrandRegistry resolves the payout address for a brand.
type BrandRegistry interface {
	BrandOwner(brandID uint64) ([20]byte, bool)
}
