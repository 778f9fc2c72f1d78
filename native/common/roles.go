package common

// Symbolic role names resolved through the access directory. Service
// accounts (treasury, vaults, proxies) are single addresses; operational
// roles (admin, sales, payments) may have several members.
const (
	RoleAdmin        = "admin"
	RoleSales        = "sales"
	RolePayments     = "payments"
	RoleTreasury     = "treasury"
	RoleService      = "service"
	RoleBrandVault   = "brandVault"
	RoleStakingPool  = "stakingPool"
	RoleSwapTreasury = "swapTreasury"
	RoleSalesVault   = "salesVault"
	RoleClubVault    = "clubVault"
	RoleFiatProxy    = "fiatProxy"
)

// AccessDirectory resolves symbolic roles to addresses and answers
// membership queries. Engines thread a directory handle instead of
// consulting global singletons.
type AccessDirectory interface {
	HasRole(role string, addr [20]byte) bool
	// HasDelegateRole reports whether the address is a contract-level
	// delegate allowed to drive engine-to-engine calls (e.g. the sales
	// engine invoking reward distribution).
	HasDelegateRole(addr [20]byte) bool
	// HasPaymentRole reports whether the address may submit payment
	// operations on behalf of signing principals.
	HasPaymentRole(addr [20]byte) bool
	// RoleAddress resolves the service account registered under the role.
	RoleAddress(role string) ([20]byte, error)
}
