package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	"github.com/decred/dcrd/crypto/ripemd160"
)

// AccountIDSize is the size of an XRPL account ID in bytes.
const AccountIDSize = 20

// ErrInvalidAddress is returned when a classic address does not decode to
// a 20-byte account ID.
var ErrInvalidAddress = errors.New("invalid classic address")

// CalcAccountID computes the account ID from a public key as
// RIPEMD160(SHA256(publicKey)). The whole key, prefix included, is hashed.
func CalcAccountID(publicKey []byte) [AccountIDSize]byte {
	sha256Hash := sha256.Sum256(publicKey)

	h := ripemd160.New()
	h.Write(sha256Hash[:])

	var result [AccountIDSize]byte
	copy(result[:], h.Sum(nil))
	return result
}

// AddressFromPublicKey derives the classic r-address for a public key.
func AddressFromPublicKey(publicKey []byte) (string, error) {
	id := CalcAccountID(publicKey)
	return AddressFromAccountID(id)
}

// AddressFromAccountID encodes a raw account ID as a classic address.
func AddressFromAccountID(id [AccountIDSize]byte) (string, error) {
	return addresscodec.EncodeAccountIDToClassicAddress(id[:])
}

// AccountIDFromAddress decodes a classic address into its account ID. The
// Base58Check checksum and the account prefix must both match.
func AccountIDFromAddress(address string) ([AccountIDSize]byte, error) {
	var result [AccountIDSize]byte
	decoded, err := addresscodec.Base58CheckDecode(address)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	if len(decoded) != 1+AccountIDSize || decoded[0] != addresscodec.AccountAddressPrefix {
		return result, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	copy(result[:], decoded[1:])
	return result, nil
}

// IsValidAddress reports whether address is a well-formed classic address.
func IsValidAddress(address string) bool {
	_, err := AccountIDFromAddress(address)
	return err == nil
}
