package binarycodec

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

const (
	objectEndMarker = 0xE1
	arrayEndMarker  = 0xF1

	maxVLLength = 918744
)

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrUnsupportedType  = errors.New("unsupported field type")
	ErrInvalidValue     = errors.New("invalid field value")
	ErrUnexpectedEnd    = errors.New("unexpected end of data")
	ErrInvalidVLength   = errors.New("invalid variable length prefix")
	ErrUnknownTxType    = errors.New("unknown transaction type")
	ErrUnknownEntryType = errors.New("unknown ledger entry type")
)

var hashWidths = map[string]int{
	"Hash128": 16,
	"Hash160": 20,
	"Hash192": 24,
	"Hash256": 32,
}

// Encode serializes a transaction in JSON form to upper-case hex.
func Encode(fields map[string]any) (string, error) {
	b, err := encodeObject(fields, false)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// EncodeForSigning serializes only the signing fields, behind the
// single-signing hash prefix.
func EncodeForSigning(fields map[string]any) (string, error) {
	b, err := encodeObject(fields, true)
	if err != nil {
		return "", err
	}
	payload := append(crypto.HashPrefixTransactionSign.Bytes(), b...)
	return strings.ToUpper(hex.EncodeToString(payload)), nil
}

// Decode parses a hex blob back into JSON form.
func Decode(blob string) (map[string]any, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	p := &parser{data: raw}
	return p.readObject(false)
}

func encodeObject(m map[string]any, signing bool) ([]byte, error) {
	r := defs()
	ordered := make([]*Field, 0, len(m))
	for name := range m {
		f, ok := r.fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		if !f.IsSerialized || (signing && !f.IsSigning) {
			continue
		}
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ordinal() < ordered[j].Ordinal() })

	var out []byte
	for _, f := range ordered {
		value, err := encodeValue(f, m[f.Name], signing)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out = append(out, f.Header()...)
		if f.IsVLEncoded {
			prefix, err := encodeVL(len(value))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			out = append(out, prefix...)
		}
		out = append(out, value...)
	}
	return out, nil
}

func encodeValue(f *Field, v any, signing bool) ([]byte, error) {
	switch f.Type {
	case "UInt8":
		n, err := toUint(v, 8)
		return []byte{byte(n)}, err
	case "UInt16":
		n, err := uint16Value(f.Name, v)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint16(nil, n), nil
	case "UInt32":
		n, err := toUint(v, 32)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint32(nil, uint32(n)), nil
	case "UInt64":
		n, err := uint64Value(f.Name, v)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint64(nil, n), nil
	case "Hash128", "Hash160", "Hash192", "Hash256":
		return fixedHex(v, hashWidths[f.Type])
	case "Amount":
		return encodeAmount(v)
	case "Blob":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: blob %v", ErrInvalidValue, v)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: blob: %v", ErrInvalidValue, err)
		}
		return b, nil
	case "AccountID":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: account %v", ErrInvalidValue, v)
		}
		id, err := crypto.AccountIDFromAddress(s)
		if err != nil {
			return nil, err
		}
		return id[:], nil
	case "Vector256":
		return encodeVector256(v)
	case "STObject":
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: object %v", ErrInvalidValue, v)
		}
		b, err := encodeObject(inner, signing)
		if err != nil {
			return nil, err
		}
		return append(b, objectEndMarker), nil
	case "STArray":
		return encodeArray(v, signing)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Type)
}

// encodeArray writes each single-key wrapper object followed by the
// array end marker.
func encodeArray(v any, signing bool) ([]byte, error) {
	items, ok := v.([]any)
	if !ok {
		if maps, isMaps := v.([]map[string]any); isMaps {
			items = make([]any, len(maps))
			for i := range maps {
				items[i] = maps[i]
			}
		} else {
			return nil, fmt.Errorf("%w: array %v", ErrInvalidValue, v)
		}
	}
	var out []byte
	for _, item := range items {
		wrapper, ok := item.(map[string]any)
		if !ok || len(wrapper) != 1 {
			return nil, fmt.Errorf("%w: array element %v", ErrInvalidValue, item)
		}
		for name, inner := range wrapper {
			f, ok := FieldByName(name)
			if !ok || f.Type != "STObject" {
				return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
			}
			value, err := encodeValue(f, inner, signing)
			if err != nil {
				return nil, err
			}
			out = append(out, f.Header()...)
			out = append(out, value...)
		}
	}
	return append(out, arrayEndMarker), nil
}

func encodeVector256(v any) ([]byte, error) {
	var hashes []string
	switch t := v.(type) {
	case []string:
		hashes = t
	case []any:
		for _, h := range t {
			s, ok := h.(string)
			if !ok {
				return nil, fmt.Errorf("%w: vector entry %v", ErrInvalidValue, h)
			}
			hashes = append(hashes, s)
		}
	default:
		return nil, fmt.Errorf("%w: vector %v", ErrInvalidValue, v)
	}
	out := make([]byte, 0, 32*len(hashes))
	for _, h := range hashes {
		b, err := fixedHex(h, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func uint16Value(name string, v any) (uint16, error) {
	if s, ok := v.(string); ok {
		switch name {
		case "TransactionType":
			code, ok := defs().txTypes[s]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnknownTxType, s)
			}
			return uint16(code), nil
		case "LedgerEntryType":
			code, ok := defs().entryTypes[s]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnknownEntryType, s)
			}
			return uint16(code), nil
		}
	}
	n, err := toUint(v, 16)
	return uint16(n), err
}

// uint64Value reads a UInt64 field. Most are hex strings in JSON form;
// the token amount fields are decimal.
func uint64Value(name string, v any) (uint64, error) {
	s, ok := v.(string)
	if !ok || base10Fields[name] {
		return toUint(v, 64)
	}
	if s == "" || len(s) > 16 {
		return 0, fmt.Errorf("%w: uint64 %q", ErrInvalidValue, s)
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: uint64 %q", ErrInvalidValue, s)
	}
	return n, nil
}

func toUint(v any, bits int) (uint64, error) {
	var n uint64
	switch t := v.(type) {
	case uint8:
		n = uint64(t)
	case uint16:
		n = uint64(t)
	case uint32:
		n = uint64(t)
	case uint64:
		n = t
	case uint:
		n = uint64(t)
	case int:
		if t < 0 {
			return 0, fmt.Errorf("%w: negative %d", ErrInvalidValue, t)
		}
		n = uint64(t)
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("%w: negative %d", ErrInvalidValue, t)
		}
		n = uint64(t)
	case float64:
		if t < 0 || t != float64(uint64(t)) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, t)
		}
		n = uint64(t)
	case string:
		parsed, err := strconv.ParseUint(t, 10, bits)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, t)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	if bits < 64 && n >= 1<<bits {
		return 0, fmt.Errorf("%w: %d overflows uint%d", ErrInvalidValue, n, bits)
	}
	return n, nil
}

func fixedHex(v any, width int) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: hash %v", ErrInvalidValue, v)
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != width {
		return nil, fmt.Errorf("%w: want %d hex bytes, got %q", ErrInvalidValue, width, s)
	}
	return b, nil
}

func encodeVL(n int) ([]byte, error) {
	switch {
	case n <= 192:
		return []byte{byte(n)}, nil
	case n <= 12480:
		n -= 193
		return []byte{byte(193 + n>>8), byte(n)}, nil
	case n <= maxVLLength:
		n -= 12481
		return []byte{byte(241 + n>>16), byte(n >> 8), byte(n)}, nil
	}
	return nil, fmt.Errorf("%w: %d bytes", ErrInvalidVLength, n)
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) hasMore() bool { return p.pos < len(p.data) }

func (p *parser) readByte() (byte, error) {
	if !p.hasMore() {
		return 0, ErrUnexpectedEnd
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *parser) peek() (byte, error) {
	if !p.hasMore() {
		return 0, ErrUnexpectedEnd
	}
	return p.data[p.pos], nil
}

func (p *parser) readBytes(n int) ([]byte, error) {
	if n < 0 || p.pos+n > len(p.data) {
		return nil, ErrUnexpectedEnd
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *parser) readVL() (int, error) {
	b1, err := p.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b1 <= 192:
		return int(b1), nil
	case b1 <= 240:
		b2, err := p.readByte()
		if err != nil {
			return 0, err
		}
		return 193 + int(b1-193)<<8 + int(b2), nil
	case b1 <= 254:
		rest, err := p.readBytes(2)
		if err != nil {
			return 0, err
		}
		return 12481 + int(b1-241)<<16 + int(rest[0])<<8 + int(rest[1]), nil
	}
	return 0, ErrInvalidVLength
}

func (p *parser) readField() (*Field, error) {
	b, err := p.readByte()
	if err != nil {
		return nil, err
	}
	typeCode, nth := int32(b>>4), int32(b&0x0F)
	if typeCode == 0 {
		t, err := p.readByte()
		if err != nil {
			return nil, err
		}
		typeCode = int32(t)
	}
	if nth == 0 {
		n, err := p.readByte()
		if err != nil {
			return nil, err
		}
		nth = int32(n)
	}
	f, ok := defs().headers[fieldHeader{typeCode: typeCode, fieldCode: nth}]
	if !ok {
		return nil, fmt.Errorf("%w: type %d field %d", ErrUnknownField, typeCode, nth)
	}
	return f, nil
}

func isObjectEnd(f *Field) bool { return f.Type == "STObject" && f.Nth == 1 }
func isArrayEnd(f *Field) bool  { return f.Type == "STArray" && f.Nth == 1 }

// readObject reads fields until the data runs out or, when nested, until
// the object end marker.
func (p *parser) readObject(nested bool) (map[string]any, error) {
	out := make(map[string]any)
	for p.hasMore() {
		f, err := p.readField()
		if err != nil {
			return nil, err
		}
		if isObjectEnd(f) {
			if !nested {
				return nil, fmt.Errorf("%w: stray object end", ErrInvalidValue)
			}
			return out, nil
		}
		v, err := p.readValue(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	if nested {
		return nil, ErrUnexpectedEnd
	}
	return out, nil
}

func (p *parser) readArray() ([]any, error) {
	var out []any
	for {
		f, err := p.readField()
		if err != nil {
			return nil, err
		}
		if isArrayEnd(f) {
			return out, nil
		}
		if f.Type != "STObject" {
			return nil, fmt.Errorf("%w: %s in array", ErrInvalidValue, f.Name)
		}
		inner, err := p.readObject(true)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any{f.Name: inner})
	}
}

func (p *parser) readValue(f *Field) (any, error) {
	size := -1
	if f.IsVLEncoded {
		n, err := p.readVL()
		if err != nil {
			return nil, err
		}
		size = n
	}
	switch f.Type {
	case "UInt8":
		b, err := p.readByte()
		return b, err
	case "UInt16":
		b, err := p.readBytes(2)
		if err != nil {
			return nil, err
		}
		return uint16Name(f.Name, binary.BigEndian.Uint16(b))
	case "UInt32":
		b, err := p.readBytes(4)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint32(b), nil
	case "UInt64":
		b, err := p.readBytes(8)
		if err != nil {
			return nil, err
		}
		if base10Fields[f.Name] {
			return strconv.FormatUint(binary.BigEndian.Uint64(b), 10), nil
		}
		return strings.ToUpper(hex.EncodeToString(b)), nil
	case "Hash128", "Hash160", "Hash192", "Hash256":
		b, err := p.readBytes(hashWidths[f.Type])
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(hex.EncodeToString(b)), nil
	case "Amount":
		return p.readAmount()
	case "Blob":
		b, err := p.readBytes(size)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(hex.EncodeToString(b)), nil
	case "AccountID":
		b, err := p.readBytes(size)
		if err != nil {
			return nil, err
		}
		if len(b) != crypto.AccountIDSize {
			return nil, fmt.Errorf("%w: account id of %d bytes", ErrInvalidValue, len(b))
		}
		address, err := crypto.AddressFromAccountID([crypto.AccountIDSize]byte(b))
		if err != nil {
			return nil, err
		}
		return address, nil
	case "Vector256":
		b, err := p.readBytes(size)
		if err != nil {
			return nil, err
		}
		if len(b)%32 != 0 {
			return nil, fmt.Errorf("%w: vector of %d bytes", ErrInvalidValue, len(b))
		}
		hashes := make([]string, 0, len(b)/32)
		for i := 0; i < len(b); i += 32 {
			hashes = append(hashes, strings.ToUpper(hex.EncodeToString(b[i:i+32])))
		}
		return hashes, nil
	case "STObject":
		return p.readObject(true)
	case "STArray":
		return p.readArray()
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Type)
}

func uint16Name(field string, code uint16) (any, error) {
	switch field {
	case "TransactionType":
		name, ok := defs().txTypeNames[int32(code)]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTxType, code)
		}
		return name, nil
	case "LedgerEntryType":
		name, ok := defs().entryNames[int32(code)]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownEntryType, code)
		}
		return name, nil
	}
	return code, nil
}
