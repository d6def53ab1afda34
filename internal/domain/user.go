package domain

// User is a registered marketplace account keyed by wallet address.
// Corresponds to the users table in PostgreSQL.
type User struct {
	WalletAddress string // UNIQUE
	Name          string
	Email         string
	School        string
	StudentIDURL  string
	Verified      bool
}
