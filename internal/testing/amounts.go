package testing

import "github.com/LeJamon/goxrpl-escrow/internal/core/tx"

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP uint64 = 1_000_000

// XRP converts whole XRP to drops.
func XRP(xrp uint64) uint64 {
	return xrp * DropsPerXRP
}

// XRPAmount returns an escrowable native amount of whole XRP.
func XRPAmount(xrp uint64) tx.Amount {
	return tx.XRP(XRP(xrp))
}

// Drops returns an escrowable native amount in drops.
func Drops(drops uint64) tx.Amount {
	return tx.XRP(drops)
}
