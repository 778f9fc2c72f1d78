package types

import "math/big"

// Account tracks the token balances held by a single marketplace
// participant. CRU is the protocol utility token, USD is the ledger mirror
// of fiat settlement handled by the fiat proxy, and XCRU is the CruClub
// share token minted against staked CRU.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceCRU  *big.Int `json:"balanceCRU"`
	BalanceUSD  *big.Int `json:"balanceUSD"`
	BalanceXCRU *big.Int `json:"balanceXCRU"`
}
