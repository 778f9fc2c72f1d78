package payments

import "errors"

var (
	ErrNilState            = errors.New("payments: state not configured")
	ErrReentrantCall       = errors.New("payments: reentrant call")
	ErrUnauthorized        = errors.New("payments: caller not authorized")
	ErrZeroAddress         = errors.New("payments: zero address")
	ErrZeroAmount          = errors.New("payments: amount must be positive")
	ErrUnsupportedCurrency = errors.New("payments: unsupported currency")
	ErrExcessiveFees       = errors.New("payments: combined fees exceed cap")
	ErrFeeSplitSum         = errors.New("payments: fee split percentages must sum to 100")
	ErrFeeCapExceeded      = errors.New("payments: buy and sell fees exceed the protocol cap")
	ErrDiscountRange       = errors.New("payments: discount exceeds one thousand permille")
	ErrServiceFeeUnset     = errors.New("payments: service fee not configured for operation")
	ErrDivisionByZero      = errors.New("payments: division by zero")
	ErrZeroConversionRate  = errors.New("payments: conversion rate not configured")
	ErrInsufficientBalance = errors.New("payments: insufficient balance")
)
