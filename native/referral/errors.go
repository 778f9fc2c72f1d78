package referral

import "errors"

var (
	ErrNilState           = errors.New("referral: state not configured")
	ErrNilPayments        = errors.New("referral: payments engine not configured")
	ErrUnauthorized       = errors.New("referral: caller not authorized")
	ErrZeroAddress        = errors.New("referral: zero address")
	ErrCodeTaken          = errors.New("referral: code already owned")
	ErrAlreadyRegistered  = errors.New("referral: account already owns a code")
	ErrCodeNotFound       = errors.New("referral: code has no owner")
	ErrSelfReferral       = errors.New("referral: self-referral forbidden")
	ErrReferrerAlreadySet = errors.New("referral: referrer link is immutable once set")
	ErrNotRegistered      = errors.New("referral: account has no code")
)
