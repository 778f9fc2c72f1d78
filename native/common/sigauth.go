package common

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrHashConsumed       = errors.New("sigauth: hash already consumed")
	ErrInvalidSignature   = errors.New("sigauth: invalid signature")
	ErrSignerMismatch     = errors.New("sigauth: recovered signer mismatch")
	ErrNilAuthorizerState = errors.New("sigauth: state not configured")
)

// ConsumedHashStore persists the set of application hashes that have been
// spent by a successful authorization. A hash, once marked, can never
// authorize again.
type ConsumedHashStore interface {
	HashConsumed(hash [32]byte) bool
	MarkHashConsumed(hash [32]byte) error
}

// Authorizer verifies that an acting principal signed the supplied
// application hash and consumes the hash exactly once. Marking happens
// before any value transfer is attempted, so a reentered call replaying
// the same hash fails even while the first call is still executing.
type Authorizer struct {
	store ConsumedHashStore
}

// NewAuthorizer constructs an authorizer backed by the supplied store.
func NewAuthorizer(store ConsumedHashStore) *Authorizer {
	return &Authorizer{store: store}
}

// Authorize checks the replay guard, recovers the signer of the
// personal-message digest of hash, compares it with the claimed principal,
// and marks the hash consumed.
func (a *Authorizer) Authorize(principal [20]byte, hash [32]byte, sig []byte) error {
	if a == nil || a.store == nil {
		return ErrNilAuthorizerState
	}
	if a.store.HashConsumed(hash) {
		return ErrHashConsumed
	}
	if len(sig) != 65 {
		return ErrInvalidSignature
	}
	digest := accounts.TextHash(hash[:])
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return ErrInvalidSignature
	}
	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	if recovered != ethcommon.BytesToAddress(principal[:]) {
		return ErrSignerMismatch
	}
	return a.store.MarkHashConsumed(hash)
}
