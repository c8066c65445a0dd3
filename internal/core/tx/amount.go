package tx

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

// MaxDrops is the total XRP supply in drops.
const MaxDrops uint64 = 100_000_000_000_000_000

// MaxMPTAmount is the largest MPT amount, an unsigned 63-bit value.
const MaxMPTAmount uint64 = 0x7FFFFFFFFFFFFFFF

// ErrInvalidAmount is wrapped by amount parse and validation failures.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is one of: XRP in drops, an issued-currency value, or an MPT value.
type Amount struct {
	// Drops is set for XRP amounts.
	Drops string
	// Value is the decimal value of a token amount.
	Value string
	// Currency and Issuer identify an issued currency.
	Currency string
	Issuer   string
	// MPTIssuanceID identifies an MPT.
	MPTIssuanceID string
}

// XRP returns a native amount.
func XRP(drops uint64) Amount {
	return Amount{Drops: strconv.FormatUint(drops, 10)}
}

// Issued returns an issued-currency amount.
func Issued(value, currency, issuer string) Amount {
	return Amount{Value: value, Currency: currency, Issuer: issuer}
}

// MPT returns an MPT amount.
func MPT(issuanceID, value string) Amount {
	return Amount{Value: value, MPTIssuanceID: strings.ToUpper(issuanceID)}
}

// IsNative reports whether a is XRP.
func (a Amount) IsNative() bool {
	return a.Drops != ""
}

// IsMPT reports whether a is an MPT amount.
func (a Amount) IsMPT() bool {
	return a.MPTIssuanceID != ""
}

// IsZero reports whether no amount is set.
func (a Amount) IsZero() bool {
	return a == Amount{}
}

// String renders a for logs.
func (a Amount) String() string {
	switch {
	case a.IsNative():
		return a.Drops + " drops"
	case a.IsMPT():
		return a.Value + " " + a.MPTIssuanceID
	default:
		return a.Value + " " + a.Currency + "/" + a.Issuer
	}
}

// Validate checks that a is a well-formed positive amount.
func (a Amount) Validate() error {
	switch {
	case a.IsNative():
		v, err := strconv.ParseUint(a.Drops, 10, 64)
		if err != nil || v == 0 || v > MaxDrops {
			return fmt.Errorf("%w: drops %q", ErrInvalidAmount, a.Drops)
		}
	case a.IsMPT():
		raw, err := hex.DecodeString(a.MPTIssuanceID)
		if err != nil || len(raw) != 24 {
			return fmt.Errorf("%w: mpt_issuance_id %q", ErrInvalidAmount, a.MPTIssuanceID)
		}
		v, err := strconv.ParseUint(a.Value, 10, 64)
		if err != nil || v == 0 || v > MaxMPTAmount {
			return fmt.Errorf("%w: mpt value %q", ErrInvalidAmount, a.Value)
		}
	case a.Currency != "":
		if a.Currency == "XRP" || (len(a.Currency) != 3 && len(a.Currency) != 40) {
			return fmt.Errorf("%w: currency %q", ErrInvalidAmount, a.Currency)
		}
		if !crypto.IsValidAddress(a.Issuer) {
			return fmt.Errorf("%w: issuer %q", ErrInvalidAmount, a.Issuer)
		}
		f, ok := new(big.Float).SetString(a.Value)
		if !ok || f.Sign() <= 0 {
			return fmt.Errorf("%w: value %q", ErrInvalidAmount, a.Value)
		}
	default:
		return fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	return nil
}

// Flatten returns the codec form: a drops string or a token object.
func (a Amount) Flatten() any {
	switch {
	case a.IsNative():
		return a.Drops
	case a.IsMPT():
		return map[string]any{
			"mpt_issuance_id": a.MPTIssuanceID,
			"value":           a.Value,
		}
	default:
		return map[string]any{
			"currency": a.Currency,
			"issuer":   a.Issuer,
			"value":    a.Value,
		}
	}
}

// ParseAmount reads an amount in ledger JSON form.
func ParseAmount(v any) (Amount, error) {
	switch t := v.(type) {
	case string:
		return Amount{Drops: t}, nil
	case map[string]any:
		str := func(k string) string {
			s, _ := t[k].(string)
			return s
		}
		if id := str("mpt_issuance_id"); id != "" {
			return MPT(id, str("value")), nil
		}
		if str("currency") != "" {
			return Issued(str("value"), str("currency"), str("issuer")), nil
		}
	}
	return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, v)
}

// MarshalJSON encodes a in ledger JSON form.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(a.Flatten())
}

// UnmarshalJSON decodes a from ledger JSON form.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
