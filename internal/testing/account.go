package testing

import (
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

// Family seeds for the named test accounts. Each is the base58 encoding of
// the first 16 bytes of SHA-512(name), so names map to the same keys across
// runs.
var namedSeeds = map[string]string{
	"master":   "snoPBrXtMeMyMHUVTgbuqAfg1SUTb",
	"alice":    "ssbTMHrmEJP7QEQjWJH3a72LQipBM",
	"bob":      "spkcsko6Ag3RbCSVXV2FJ8Pd4Zac1",
	"carol":    "snzb83cV8zpLPTE4nQamoLP9pbhB7",
	"issuer":   "spFa928mnE9K2ZoYc4BPaZ6bw5DV2",
	"operator": "snKep9U57nqntS55qkdTwR2htgdty",
}

// Account is a test account with a known seed.
type Account struct {
	// Name is a human-readable identifier for the account.
	Name string
	// Seed is the family seed the managers sign with.
	Seed string
	// Address is the classic address derived from Seed.
	Address string
	// ID is the 20-byte account ID.
	ID [20]byte
}

// NewAccount returns the named test account. It panics for names without a
// registered seed.
func NewAccount(name string) *Account {
	seed, ok := namedSeeds[name]
	if !ok {
		panic("no test seed registered for account " + name)
	}
	return AccountFromSeed(name, seed)
}

// MasterAccount returns the genesis account.
func MasterAccount() *Account {
	return NewAccount("master")
}

// AccountFromSeed derives an account from an arbitrary family seed.
func AccountFromSeed(name, seed string) *Account {
	w, err := wallet.FromSeed(seed)
	if err != nil {
		panic("failed to derive test account " + name + ": " + err.Error())
	}
	defer w.Close()

	id, err := crypto.AccountIDFromAddress(w.Address)
	if err != nil {
		panic("failed to decode account ID for " + name + ": " + err.Error())
	}
	return &Account{Name: name, Seed: seed, Address: w.Address, ID: id}
}

// String returns the account name.
func (a *Account) String() string {
	return a.Name
}
