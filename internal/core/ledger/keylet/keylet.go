// Package keylet computes the ledger index of the objects the orchestrator
// reads back, so ledger responses can be matched without a server-side lookup.
package keylet

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

// Space identifiers, matching the ledger's namespace table.
const (
	spaceAccount  uint16 = 'a'
	spaceOwnerDir uint16 = 'O'
	spaceEscrow   uint16 = 'u'
	spaceMPTIssu  uint16 = '~'
)

// MPTIDSize is the size of an MPTokenIssuanceID.
const MPTIDSize = 24

// ErrInvalidMPTID is returned when an issuance ID is not 24 hex-encoded bytes.
var ErrInvalidMPTID = errors.New("invalid MPTokenIssuanceID")

// Keylet is a ledger entry type paired with its 256-bit index.
type Keylet struct {
	Type string
	Key  [32]byte
}

// Hex returns the index in the uppercase form ledger responses use.
func (k Keylet) Hex() string {
	return strings.ToUpper(hex.EncodeToString(k.Key[:]))
}

func indexHash(space uint16, data ...[]byte) [32]byte {
	spaceBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(spaceBytes, space)

	inputs := make([][]byte, 0, len(data)+1)
	inputs = append(inputs, spaceBytes)
	inputs = append(inputs, data...)
	return crypto.Sha512Half(inputs...)
}

// Account returns the keylet for an account root.
func Account(accountID [20]byte) Keylet {
	return Keylet{Type: "AccountRoot", Key: indexHash(spaceAccount, accountID[:])}
}

// OwnerDir returns the keylet for the root page of an owner directory.
func OwnerDir(accountID [20]byte) Keylet {
	return Keylet{Type: "DirectoryNode", Key: indexHash(spaceOwnerDir, accountID[:])}
}

// Escrow returns the keylet for the escrow created by owner at sequence.
func Escrow(owner [20]byte, sequence uint32) Keylet {
	seqBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBytes, sequence)
	return Keylet{Type: "Escrow", Key: indexHash(spaceEscrow, owner[:], seqBytes)}
}

// MakeMPTID builds the issuance ID: sequence (big-endian) then issuer.
func MakeMPTID(sequence uint32, issuer [20]byte) [MPTIDSize]byte {
	var id [MPTIDSize]byte
	binary.BigEndian.PutUint32(id[:4], sequence)
	copy(id[4:], issuer[:])
	return id
}

// MakeMPTIDHex is MakeMPTID rendered as 48 uppercase hex characters.
func MakeMPTIDHex(sequence uint32, issuer [20]byte) string {
	id := MakeMPTID(sequence, issuer)
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// ParseMPTID decodes a hex issuance ID into its sequence and issuer.
func ParseMPTID(s string) (sequence uint32, issuer [20]byte, err error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != MPTIDSize {
		return 0, issuer, ErrInvalidMPTID
	}
	copy(issuer[:], raw[4:])
	return binary.BigEndian.Uint32(raw[:4]), issuer, nil
}

// MPTIssuance returns the keylet for an issuance.
func MPTIssuance(id [MPTIDSize]byte) Keylet {
	return Keylet{Type: "MPTokenIssuance", Key: indexHash(spaceMPTIssu, id[:])}
}
