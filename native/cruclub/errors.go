package cruclub

import "errors"

var (
	ErrNilState           = errors.New("cruclub: state not configured")
	ErrReentrantCall      = errors.New("cruclub: reentrant call")
	ErrUnauthorized       = errors.New("cruclub: caller not authorized")
	ErrZeroAmount         = errors.New("cruclub: amount must be positive")
	ErrZeroShares         = errors.New("cruclub: computed share amount is zero")
	ErrZeroUnderlying     = errors.New("cruclub: computed underlying amount is zero")
	ErrInsufficientShares = errors.New("cruclub: share balance too low")
	ErrNothingToClaim     = errors.New("cruclub: nothing to claim")
	ErrStillLocked        = errors.New("cruclub: unstake delay not elapsed")
	ErrZeroShareSupply    = errors.New("cruclub: share supply is zero")
	ErrZeroRate           = errors.New("cruclub: redemption rate would be zero")
)
