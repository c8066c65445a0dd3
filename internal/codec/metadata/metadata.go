// Package metadata packs project metadata into the MPTokenMetadata field.
//
// The on-ledger object carries at most nine top-level keys. Eight are the
// canonical descriptive keys; everything else the caller supplies is folded
// into a JSON object serialized as the string value of AdditionalKey.
package metadata

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxBytes is the ledger limit on the MPTokenMetadata field.
const MaxBytes = 1024

// MaxTopLevelKeys is the ceiling on top-level keys in an encoded object.
const MaxTopLevelKeys = 9

// AdditionalKey holds every non-canonical field as nested JSON text.
const AdditionalKey = "additional_info"

// CanonicalKeys are kept at the top level, in this order of precedence.
var CanonicalKeys = []string{
	"name",
	"description",
	"project_id",
	"creator",
	"category",
	"website",
	"logo",
	"ticker",
}

var (
	// ErrEncoding is returned when the field is not hex encoded UTF-8.
	ErrEncoding = errors.New("metadata: invalid encoding")
	// ErrNotObject is returned when the decoded JSON is not an object.
	ErrNotObject = errors.New("metadata: not a JSON object")
)

func isCanonical(key string) bool {
	for _, k := range CanonicalKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Encoded is the result of Encode.
type Encoded struct {
	// Hex is the uppercase hex form submitted as MPTokenMetadata.
	Hex string
	// ByteLen is the size of the field on ledger.
	ByteLen int
	// TopLevelKeys is the number of keys in the encoded object.
	TopLevelKeys int
}

// Fits reports whether the encoded field is within max bytes.
func (e Encoded) Fits(max int) bool {
	return e.ByteLen <= max
}

// Compact returns the top-level object Encode would serialize. Fields that
// already follow the aggregation convention are returned unchanged.
func Compact(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, MaxTopLevelKeys)
	extra := make(map[string]any)

	for k, v := range fields {
		switch {
		case isCanonical(k):
			out[k] = v
		case k == AdditionalKey:
		default:
			extra[k] = v
		}
	}

	existing, present := fields[AdditionalKey]
	if len(extra) == 0 {
		if present {
			out[AdditionalKey] = existing
		}
		return out, nil
	}

	nested := make(map[string]any, len(extra)+1)
	if present {
		switch v := existing.(type) {
		case string:
			if parsed, ok := parseNested(v); ok {
				for k, nv := range parsed {
					nested[k] = nv
				}
			} else if v != "" {
				nested[AdditionalKey] = v
			}
		case map[string]any:
			for k, nv := range v {
				nested[k] = nv
			}
		default:
			nested[AdditionalKey] = v
		}
	}
	for k, v := range extra {
		nested[k] = v
	}

	text, err := marshal(nested)
	if err != nil {
		return nil, err
	}
	out[AdditionalKey] = string(text)
	return out, nil
}

// Encode compacts fields to the nine-key form and returns the field bytes as
// hex. It never fails because of size; check Encoded.Fits before submission.
func Encode(fields map[string]any) (Encoded, error) {
	obj, err := Compact(fields)
	if err != nil {
		return Encoded{}, err
	}
	raw, err := marshal(obj)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{
		Hex:          strings.ToUpper(hex.EncodeToString(raw)),
		ByteLen:      len(raw),
		TopLevelKeys: len(obj),
	}, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("metadata: marshal: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func unmarshal(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data")
	}
	return obj, nil
}

func parseNested(text string) (map[string]any, bool) {
	obj, err := unmarshal([]byte(text))
	if err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Metadata is a decoded MPTokenMetadata field.
type Metadata struct {
	// Fields is the top-level object exactly as stored.
	Fields map[string]any
	// Additional is the parsed aggregation object. It is empty when the
	// key is absent or its value is not a JSON object.
	Additional map[string]any
}

// Merged returns the top-level fields with the aggregation object expanded
// in place of AdditionalKey. Top-level keys win on collision.
func (m Metadata) Merged() map[string]any {
	out := make(map[string]any, len(m.Fields)+len(m.Additional))
	for k, v := range m.Additional {
		out[k] = v
	}
	for k, v := range m.Fields {
		if k == AdditionalKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Keys returns the sorted top-level keys.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode parses a hex MPTokenMetadata value. A malformed aggregation value
// yields an empty Additional map rather than an error.
func Decode(hexStr string) (Metadata, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if !utf8.Valid(raw) {
		return Metadata{}, fmt.Errorf("%w: not UTF-8", ErrEncoding)
	}
	obj, err := unmarshal(raw)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if obj == nil {
		return Metadata{}, ErrNotObject
	}

	md := Metadata{Fields: obj, Additional: map[string]any{}}
	if text, ok := obj[AdditionalKey].(string); ok {
		if nested, ok := parseNested(text); ok {
			md.Additional = nested
		}
	}
	return md, nil
}
