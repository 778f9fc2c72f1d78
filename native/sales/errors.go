package sales

import "errors"

var (
	ErrNilState              = errors.New("sales: state not configured")
	ErrNilAuthorizer         = errors.New("sales: authorizer not configured")
	ErrNilPayments           = errors.New("sales: payments engine not configured")
	ErrNilAssets             = errors.New("sales: asset ledger not configured")
	ErrReentrantCall         = errors.New("sales: reentrant call")
	ErrUnauthorized          = errors.New("sales: caller not authorized")
	ErrNotWhitelisted        = errors.New("sales: account not whitelisted")
	ErrSellerNotWhitelisted  = errors.New("sales: seller no longer whitelisted")
	ErrEmptyBatch            = errors.New("sales: empty batch")
	ErrSaleNotFound          = errors.New("sales: sale not found")
	ErrNotAssetOwner         = errors.New("sales: seller does not own asset")
	ErrNotSeller             = errors.New("sales: caller is not the sale seller")
	ErrSaleExpired           = errors.New("sales: sale expired")
	ErrSaleNotStarted        = errors.New("sales: sale not yet open for this tier")
	ErrScheduleNotConfigured = errors.New("sales: schedule duration not configured")
	ErrScheduleDayRange      = errors.New("sales: schedule day out of range")
	ErrRewardRange           = errors.New("sales: reward permille out of range")
	ErrZeroPrice             = errors.New("sales: price must be positive")
)
