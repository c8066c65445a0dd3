package crypto

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// HashPrefix provides domain separation for the hashes computed client side.
type HashPrefix [4]byte

var (
	// HashPrefixTransactionID prefixes a signed transaction blob when
	// computing its identifying hash.
	HashPrefixTransactionID = HashPrefix{'T', 'X', 'N', 0x00}

	// HashPrefixTransactionSign prefixes the single-signing payload.
	HashPrefixTransactionSign = HashPrefix{'S', 'T', 'X', 0x00}
)

// Bytes returns the prefix as a byte slice.
func (h HashPrefix) Bytes() []byte {
	return h[:]
}

// Sha512Half returns the first 32 bytes of the SHA-512 of the concatenated parts.
func Sha512Half(parts ...[]byte) [32]byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	var result [32]byte
	copy(result[:], h.Sum(nil)[:32])
	return result
}

// TransactionID computes the hash a validated ledger reports for a signed
// transaction blob.
func TransactionID(blob []byte) [32]byte {
	return Sha512Half(HashPrefixTransactionID.Bytes(), blob)
}

// TransactionIDHex is TransactionID over a hex encoded blob, returned as
// uppercase hex.
func TransactionIDHex(blobHex string) (string, error) {
	blob, err := hex.DecodeString(blobHex)
	if err != nil {
		return "", err
	}
	id := TransactionID(blob)
	return strings.ToUpper(hex.EncodeToString(id[:])), nil
}
