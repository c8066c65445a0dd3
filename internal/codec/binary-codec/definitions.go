// Package binarycodec serializes transactions to the ledger's canonical
// binary format and back. Field metadata comes from the xrpl-go
// definitions, extended with the multi-purpose token fields and
// transaction types those definitions predate.
//
//revive:disable:var-naming
package binarycodec

import (
	"sync"

	"github.com/Peersyst/xrpl-go/binary-codec/definitions"
)

// Field describes one serialized field.
type Field struct {
	Name         string
	Type         string
	TypeCode     int32
	Nth          int32
	IsVLEncoded  bool
	IsSerialized bool
	IsSigning    bool
}

// Ordinal is the canonical sort key: type code, then field code.
func (f *Field) Ordinal() int32 {
	return f.TypeCode<<16 | f.Nth
}

// Header returns the encoded field ID.
func (f *Field) Header() []byte {
	t, n := byte(f.TypeCode), byte(f.Nth)
	switch {
	case f.TypeCode < 16 && f.Nth < 16:
		return []byte{t<<4 | n}
	case f.TypeCode < 16:
		return []byte{t << 4, n}
	case f.Nth < 16:
		return []byte{n, t}
	default:
		return []byte{0, t, n}
	}
}

type fieldHeader struct {
	typeCode  int32
	fieldCode int32
}

// Type codes missing from the upstream table. Hash192 shares code 21 with
// the older UInt192 name.
var extraTypes = map[string]int32{
	"Hash192": 21,
}

var extraTransactionTypes = map[string]int32{
	"MPTokenIssuanceCreate":  54,
	"MPTokenIssuanceDestroy": 55,
	"MPTokenIssuanceSet":     56,
	"MPTokenAuthorize":       57,
}

var extraFields = []Field{
	{Name: "MPTokenIssuanceID", Type: "Hash192", Nth: 1, IsSerialized: true, IsSigning: true},
	{Name: "AssetScale", Type: "UInt8", Nth: 5, IsSerialized: true, IsSigning: true},
	{Name: "MaximumAmount", Type: "UInt64", Nth: 24, IsSerialized: true, IsSigning: true},
	{Name: "OutstandingAmount", Type: "UInt64", Nth: 25, IsSerialized: true, IsSigning: true},
	{Name: "MPTAmount", Type: "UInt64", Nth: 26, IsSerialized: true, IsSigning: true},
	{Name: "MPTokenMetadata", Type: "Blob", Nth: 30, IsVLEncoded: true, IsSerialized: true, IsSigning: true},
}

// base10Fields are UInt64 fields whose JSON form is a decimal string
// rather than hex.
var base10Fields = map[string]bool{
	"MaximumAmount":     true,
	"OutstandingAmount": true,
	"MPTAmount":         true,
}

type registry struct {
	fields      map[string]*Field
	headers     map[fieldHeader]*Field
	txTypes     map[string]int32
	txTypeNames map[int32]string
	entryTypes  map[string]int32
	entryNames  map[int32]string
}

var defs = sync.OnceValue(loadRegistry)

func loadRegistry() *registry {
	upstream := definitions.Get()

	typeCodes := make(map[string]int32, len(upstream.Types)+len(extraTypes))
	for name, code := range upstream.Types {
		typeCodes[name] = code
	}
	for name, code := range extraTypes {
		if _, ok := typeCodes[name]; !ok {
			typeCodes[name] = code
		}
	}

	r := &registry{
		fields:      make(map[string]*Field, len(upstream.Fields)+len(extraFields)),
		headers:     make(map[fieldHeader]*Field, len(upstream.Fields)+len(extraFields)),
		txTypes:     make(map[string]int32, len(upstream.TransactionTypes)+len(extraTransactionTypes)),
		txTypeNames: make(map[int32]string, len(upstream.TransactionTypes)+len(extraTransactionTypes)),
		entryTypes:  make(map[string]int32, len(upstream.LedgerEntryTypes)),
		entryNames:  make(map[int32]string, len(upstream.LedgerEntryTypes)),
	}

	for name, fi := range upstream.Fields {
		if fi == nil || fi.FieldInfo == nil {
			continue
		}
		code, ok := typeCodes[fi.Type]
		if !ok {
			continue
		}
		r.add(&Field{
			Name:         name,
			Type:         fi.Type,
			TypeCode:     code,
			Nth:          fi.Nth,
			IsVLEncoded:  fi.IsVLEncoded,
			IsSerialized: fi.IsSerialized,
			IsSigning:    fi.IsSigningField,
		})
	}
	for _, f := range extraFields {
		if _, ok := r.fields[f.Name]; ok {
			continue
		}
		f.TypeCode = typeCodes[f.Type]
		r.add(&f)
	}

	for name, code := range upstream.TransactionTypes {
		r.txTypes[name] = code
		r.txTypeNames[code] = name
	}
	for name, code := range extraTransactionTypes {
		if _, ok := r.txTypes[name]; ok {
			continue
		}
		r.txTypes[name] = code
		r.txTypeNames[code] = name
	}
	for name, code := range upstream.LedgerEntryTypes {
		r.entryTypes[name] = code
		r.entryNames[code] = name
	}
	return r
}

func (r *registry) add(f *Field) {
	r.fields[f.Name] = f
	if !f.IsSerialized || f.Nth <= 0 || f.TypeCode <= 0 {
		return
	}
	h := fieldHeader{typeCode: f.TypeCode, fieldCode: f.Nth}
	if _, taken := r.headers[h]; !taken {
		r.headers[h] = f
	}
}

// FieldByName returns the definition of a named field.
func FieldByName(name string) (*Field, bool) {
	f, ok := defs().fields[name]
	return f, ok
}

// TransactionTypeCode returns the numeric code of a transaction type.
func TransactionTypeCode(name string) (int32, bool) {
	code, ok := defs().txTypes[name]
	return code, ok
}
