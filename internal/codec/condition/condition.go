// Package condition builds and checks PREIMAGE-SHA-256 crypto-conditions as
// the ledger serializes them in the Condition and Fulfillment escrow fields.
package condition

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

const (
	// GeneratedPreimageSize is the preimage length used by Generate.
	GeneratedPreimageSize = 32

	// MaxPreimageLength is the longest preimage the ledger accepts.
	MaxPreimageLength = 128

	// MaxSerializedCondition is the ledger limit on the Condition field.
	MaxSerializedCondition = 128

	// MaxSerializedFulfillment is the ledger limit on the Fulfillment field.
	MaxSerializedFulfillment = 256
)

// Pair is a condition together with the fulfillment that satisfies it.
// Fulfillment is the secret; it must not be logged or persisted.
type Pair struct {
	Condition   string
	Fulfillment string
}

// Condition is the parsed form of a serialized condition.
type Condition struct {
	Fingerprint [32]byte
	Cost        uint32
}

// Hex returns the canonical uppercase serialization of c.
func (c Condition) Hex() string {
	return strings.ToUpper(hex.EncodeToString(c.encode()))
}

func (c Condition) encode() []byte {
	body := make([]byte, 0, 40)
	body = append(body, tagFingerprint)
	body = appendLength(body, len(c.Fingerprint))
	body = append(body, c.Fingerprint[:]...)

	cost := appendUnsigned(nil, c.Cost)
	body = append(body, tagCost)
	body = appendLength(body, len(cost))
	body = append(body, cost...)

	out := []byte{tagPreimageSha256}
	out = appendLength(out, len(body))
	return append(out, body...)
}

// Generate returns a pair built from a fresh random preimage.
func Generate() (Pair, error) {
	preimage, err := crypto.RandomBytes(GeneratedPreimageSize)
	if err != nil {
		return Pair{}, err
	}
	defer crypto.SecureErase(preimage)
	return FromPreimage(preimage)
}

// FromPreimage deterministically derives the pair for preimage.
func FromPreimage(preimage []byte) (Pair, error) {
	if len(preimage) < 1 || len(preimage) > MaxPreimageLength {
		return Pair{}, newError("from preimage", ErrPreimageLength, "")
	}
	cond := Condition{
		Fingerprint: sha256.Sum256(preimage),
		Cost:        uint32(len(preimage)),
	}
	return Pair{
		Condition:   cond.Hex(),
		Fulfillment: strings.ToUpper(hex.EncodeToString(encodeFulfillment(preimage))),
	}, nil
}

func encodeFulfillment(preimage []byte) []byte {
	body := []byte{tagPreimage}
	body = appendLength(body, len(preimage))
	body = append(body, preimage...)

	out := []byte{tagPreimageSha256}
	out = appendLength(out, len(body))
	return append(out, body...)
}

// Parse decodes a serialized condition. Any deviation from the
// PREIMAGE-SHA-256 layout is an error.
func Parse(conditionHex string) (Condition, error) {
	raw, err := hex.DecodeString(conditionHex)
	if err != nil || len(raw) == 0 {
		return Condition{}, newError("parse", ErrEncoding, "condition")
	}
	return parseCondition(raw)
}

func parseCondition(raw []byte) (Condition, error) {
	if len(raw) > MaxSerializedCondition {
		return Condition{}, newError("parse", ErrTooLarge, "condition")
	}
	if raw[0]&0xE0 != 0xA0 {
		return Condition{}, newError("parse", ErrStructure, "condition tag")
	}
	if raw[0] != tagPreimageSha256 {
		return Condition{}, newError("parse", ErrUnsupportedType, "")
	}
	body, consumed, ok := readTLV(raw, tagPreimageSha256)
	if !ok {
		return Condition{}, newError("parse", ErrStructure, "condition envelope")
	}
	if consumed != len(raw) {
		return Condition{}, newError("parse", ErrTrailingData, "condition")
	}

	fp, n, ok := readTLV(body, tagFingerprint)
	if !ok || len(fp) != sha256.Size {
		return Condition{}, newError("parse", ErrStructure, "fingerprint")
	}
	costBody, m, ok := readTLV(body[n:], tagCost)
	if !ok {
		return Condition{}, newError("parse", ErrStructure, "cost")
	}
	if n+m != len(body) {
		return Condition{}, newError("parse", ErrTrailingData, "condition body")
	}
	cost, ok := readUnsigned(costBody)
	if !ok {
		return Condition{}, newError("parse", ErrStructure, "cost value")
	}
	if cost > MaxPreimageLength {
		return Condition{}, newError("parse", ErrPreimageLength, "cost")
	}

	var c Condition
	copy(c.Fingerprint[:], fp)
	c.Cost = cost
	return c, nil
}

// ParseFulfillment decodes a serialized fulfillment into the condition it
// satisfies.
func ParseFulfillment(fulfillmentHex string) (Condition, error) {
	raw, err := hex.DecodeString(fulfillmentHex)
	if err != nil || len(raw) == 0 {
		return Condition{}, newError("parse fulfillment", ErrEncoding, "fulfillment")
	}
	preimage, err := parsePreimage(raw)
	if err != nil {
		return Condition{}, err
	}
	defer crypto.SecureErase(preimage)
	return Condition{
		Fingerprint: sha256.Sum256(preimage),
		Cost:        uint32(len(preimage)),
	}, nil
}

func parsePreimage(raw []byte) ([]byte, error) {
	const op = "parse fulfillment"
	if len(raw) > MaxSerializedFulfillment {
		return nil, newError(op, ErrTooLarge, "fulfillment")
	}
	if raw[0]&0xE0 != 0xA0 {
		return nil, newError(op, ErrStructure, "fulfillment tag")
	}
	if raw[0] != tagPreimageSha256 {
		return nil, newError(op, ErrUnsupportedType, "")
	}
	body, consumed, ok := readTLV(raw, tagPreimageSha256)
	if !ok {
		return nil, newError(op, ErrStructure, "fulfillment envelope")
	}
	if consumed != len(raw) {
		return nil, newError(op, ErrTrailingData, "fulfillment")
	}
	preimage, n, ok := readTLV(body, tagPreimage)
	if !ok {
		return nil, newError(op, ErrStructure, "preimage")
	}
	if n != len(body) {
		return nil, newError(op, ErrTrailingData, "fulfillment body")
	}
	if len(preimage) > MaxPreimageLength {
		return nil, newError(op, ErrPreimageLength, "")
	}
	out := make([]byte, len(preimage))
	copy(out, preimage)
	return out, nil
}

// IsValidFulfillment reports whether fulfillmentHex satisfies conditionHex.
// A false result with a nil error is a well-formed mismatch; malformed input
// of either argument is always an error.
func IsValidFulfillment(conditionHex, fulfillmentHex string) (bool, error) {
	want, err := Parse(conditionHex)
	if err != nil {
		return false, err
	}
	got, err := ParseFulfillment(fulfillmentHex)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want.Fingerprint[:], got.Fingerprint[:]) && want.Cost == got.Cost, nil
}

// Validate checks that conditionHex is a well-formed supported condition.
func Validate(conditionHex string) error {
	_, err := Parse(conditionHex)
	return err
}

// FinishFee is the fee an EscrowFinish carrying fulfillmentHex must pay
// given the network base fee. Without a fulfillment it is the base fee.
func FinishFee(baseFee uint64, fulfillmentHex string) uint64 {
	if fulfillmentHex == "" {
		return baseFee
	}
	size := uint64(len(fulfillmentHex) / 2)
	return baseFee * (33 + size/16)
}
