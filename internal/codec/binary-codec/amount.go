package binarycodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Peersyst/xrpl-go/binary-codec/definitions"
	"github.com/Peersyst/xrpl-go/binary-codec/serdes"
	"github.com/Peersyst/xrpl-go/binary-codec/types"
)

const (
	amountIssuedBit   = 0x80
	amountPositiveBit = 0x40
	amountMPTBit      = 0x20

	xrpAmountSize    = 8
	issuedAmountSize = 48
	mptAmountSize    = 1 + 8 + 24

	maxMPTValue = 0x7FFFFFFFFFFFFFFF
)

// encodeAmount serializes a drops string, an issued currency object or a
// token object carrying mpt_issuance_id.
func encodeAmount(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return (&types.Amount{}).FromJSON(t)
	case map[string]any:
		if _, ok := t["mpt_issuance_id"]; ok {
			return encodeMPTAmount(t)
		}
		for _, key := range []string{"value", "currency", "issuer"} {
			if _, ok := t[key].(string); !ok {
				return nil, fmt.Errorf("%w: amount %s missing", ErrInvalidValue, key)
			}
		}
		return (&types.Amount{}).FromJSON(t)
	}
	return nil, fmt.Errorf("%w: amount %v", ErrInvalidValue, v)
}

func encodeMPTAmount(m map[string]any) ([]byte, error) {
	id, _ := m["mpt_issuance_id"].(string)
	rawID, err := hex.DecodeString(id)
	if err != nil || len(rawID) != 24 {
		return nil, fmt.Errorf("%w: mpt_issuance_id %q", ErrInvalidValue, id)
	}
	value, _ := m["value"].(string)
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil || n > maxMPTValue {
		return nil, fmt.Errorf("%w: mpt value %q", ErrInvalidValue, value)
	}
	out := make([]byte, 0, mptAmountSize)
	out = append(out, amountMPTBit|amountPositiveBit)
	out = binary.BigEndian.AppendUint64(out, n)
	return append(out, rawID...), nil
}

func (p *parser) readAmount() (any, error) {
	lead, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case lead&amountIssuedBit != 0:
		b, err := p.readBytes(issuedAmountSize)
		if err != nil {
			return nil, err
		}
		return (&types.Amount{}).ToJSON(serdes.NewBinaryParser(b, definitions.Get()))
	case lead&amountMPTBit != 0:
		b, err := p.readBytes(mptAmountSize)
		if err != nil {
			return nil, err
		}
		value := strconv.FormatUint(binary.BigEndian.Uint64(b[1:9]), 10)
		if b[0]&amountPositiveBit == 0 && value != "0" {
			value = "-" + value
		}
		return map[string]any{
			"mpt_issuance_id": strings.ToUpper(hex.EncodeToString(b[9:])),
			"value":           value,
		}, nil
	default:
		b, err := p.readBytes(xrpAmountSize)
		if err != nil {
			return nil, err
		}
		return (&types.Amount{}).ToJSON(serdes.NewBinaryParser(b, definitions.Get()))
	}
}
