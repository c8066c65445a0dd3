package binarycodec

import (
	"encoding/hex"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	genesisAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	genesisPubKey  = "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020"
	issuanceID     = "00000001B5F762798A53D543A014CAF8B297CFF8F2F937E8"
)

func TestFieldHeaders(t *testing.T) {
	tt := []struct {
		field    string
		expected string
	}{
		{field: "TransactionType", expected: "12"},
		{field: "TransferFee", expected: "14"},
		{field: "Account", expected: "81"},
		{field: "MaximumAmount", expected: "3018"},
		{field: "AssetScale", expected: "0510"},
		{field: "MPTokenMetadata", expected: "701E"},
		{field: "MPTokenIssuanceID", expected: "0115"},
	}

	for _, tc := range tt {
		t.Run(tc.field, func(t *testing.T) {
			f, ok := FieldByName(tc.field)
			require.True(t, ok)
			require.Equal(t, tc.expected, strings.ToUpper(hex.EncodeToString(f.Header())))
		})
	}
}

func TestTransactionTypeCodes(t *testing.T) {
	for name, code := range map[string]int32{
		"EscrowCreate":           1,
		"EscrowFinish":           2,
		"EscrowCancel":           4,
		"MPTokenIssuanceCreate":  54,
		"MPTokenIssuanceDestroy": 55,
	} {
		got, ok := TransactionTypeCode(name)
		require.True(t, ok, name)
		assert.Equal(t, code, got, name)
	}
}

func TestEncodeVariableLength(t *testing.T) {
	tt := []struct {
		length   int
		expected []byte
	}{
		{length: 0, expected: []byte{0}},
		{length: 192, expected: []byte{192}},
		{length: 193, expected: []byte{193, 0}},
		{length: 12480, expected: []byte{240, 255}},
		{length: 12481, expected: []byte{241, 0, 0}},
		{length: maxVLLength, expected: []byte{254, 212, 23}},
	}

	for _, tc := range tt {
		t.Run(strconv.Itoa(tc.length), func(t *testing.T) {
			got, err := encodeVL(tc.length)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)

			p := &parser{data: got}
			n, err := p.readVL()
			require.NoError(t, err)
			require.Equal(t, tc.length, n)
		})
	}

	_, err := encodeVL(maxVLLength + 1)
	require.ErrorIs(t, err, ErrInvalidVLength)
}

func TestMPTokenIssuanceCreateRoundTrip(t *testing.T) {
	metadata := strings.ToUpper(hex.EncodeToString([]byte(`{"name":"Seed Bank","region":"Alentejo"}`)))
	fields := map[string]any{
		"TransactionType": "MPTokenIssuanceCreate",
		"Account":         genesisAddress,
		"Fee":             "12",
		"Sequence":        uint32(1),
		"Flags":           uint32(0x20),
		"AssetScale":      uint8(2),
		"TransferFee":     uint16(250),
		"MaximumAmount":   "1000000",
		"MPTokenMetadata": metadata,
		"SigningPubKey":   genesisPubKey,
	}

	blob, err := Encode(fields)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(blob, "120036"), blob)
	assert.Contains(t, blob, "3018"+"00000000000F4240")
	assert.Contains(t, blob, "0510"+"02")

	decoded, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "MPTokenIssuanceCreate", decoded["TransactionType"])
	assert.Equal(t, genesisAddress, decoded["Account"])
	assert.Equal(t, "12", decoded["Fee"])
	assert.Equal(t, uint32(1), decoded["Sequence"])
	assert.Equal(t, uint32(0x20), decoded["Flags"])
	assert.Equal(t, uint8(2), decoded["AssetScale"])
	assert.Equal(t, uint16(250), decoded["TransferFee"])
	assert.Equal(t, "1000000", decoded["MaximumAmount"])
	assert.Equal(t, metadata, decoded["MPTokenMetadata"])
	assert.Equal(t, genesisPubKey, decoded["SigningPubKey"])
}

func TestMPTokenIssuanceDestroyRoundTrip(t *testing.T) {
	blob, err := Encode(map[string]any{
		"TransactionType":   "MPTokenIssuanceDestroy",
		"Account":           genesisAddress,
		"Fee":               "12",
		"Sequence":          uint32(2),
		"MPTokenIssuanceID": issuanceID,
	})
	require.NoError(t, err)
	assert.Contains(t, blob, "0115"+issuanceID)

	decoded, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "MPTokenIssuanceDestroy", decoded["TransactionType"])
	assert.Equal(t, issuanceID, decoded["MPTokenIssuanceID"])
}

func TestAmountVariants(t *testing.T) {
	tt := []struct {
		description string
		amount      any
		encoded     string
	}{
		{
			description: "drops",
			amount:      "10000000",
			encoded:     "4000000000989680",
		},
		{
			description: "token",
			amount:      map[string]any{"mpt_issuance_id": issuanceID, "value": "100"},
			encoded:     "600000000000000064" + issuanceID,
		},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			blob, err := Encode(map[string]any{
				"TransactionType": "EscrowCreate",
				"Account":         genesisAddress,
				"Destination":     genesisAddress,
				"Amount":          tc.amount,
			})
			require.NoError(t, err)
			assert.Contains(t, blob, "61"+tc.encoded)

			decoded, err := Decode(blob)
			require.NoError(t, err)
			assert.Equal(t, tc.amount, decoded["Amount"])
		})
	}

	t.Run("issued currency", func(t *testing.T) {
		blob, err := Encode(map[string]any{
			"TransactionType": "EscrowCreate",
			"Account":         genesisAddress,
			"Destination":     genesisAddress,
			"Amount":          map[string]any{"currency": "USD", "issuer": genesisAddress, "value": "1.5"},
		})
		require.NoError(t, err)

		decoded, err := Decode(blob)
		require.NoError(t, err)
		amount, ok := decoded["Amount"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "USD", amount["currency"])
		assert.Equal(t, genesisAddress, amount["issuer"])
		value, err := strconv.ParseFloat(amount["value"].(string), 64)
		require.NoError(t, err)
		assert.Equal(t, 1.5, value)
	})
}

func TestEncodeRejectsMalformedAmounts(t *testing.T) {
	for _, amount := range []any{
		map[string]any{"mpt_issuance_id": "00", "value": "1"},
		map[string]any{"mpt_issuance_id": issuanceID, "value": "-1"},
		map[string]any{"mpt_issuance_id": issuanceID, "value": "9223372036854775808"},
		map[string]any{"currency": "USD", "value": "1"},
		map[string]any{"value": 1},
		42,
	} {
		_, err := Encode(map[string]any{
			"TransactionType": "EscrowCreate",
			"Account":         genesisAddress,
			"Amount":          amount,
		})
		require.ErrorIs(t, err, ErrInvalidValue, "%v", amount)
	}
}

func TestEncodeForSigning(t *testing.T) {
	fields := map[string]any{
		"TransactionType": "EscrowCancel",
		"Account":         genesisAddress,
		"Owner":           genesisAddress,
		"OfferSequence":   uint32(7),
		"SigningPubKey":   genesisPubKey,
		"TxnSignature":    "DEADBEEF",
	}

	full, err := Encode(fields)
	require.NoError(t, err)
	payload, err := EncodeForSigning(fields)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(payload, "53545800"), payload)
	assert.Contains(t, full, "7404DEADBEEF")
	assert.NotContains(t, payload, "DEADBEEF")

	delete(fields, "TxnSignature")
	unsigned, err := Encode(fields)
	require.NoError(t, err)
	assert.Equal(t, "53545800"+unsigned, payload)
}

func TestMemosRoundTrip(t *testing.T) {
	memos := []any{
		map[string]any{"Memo": map[string]any{"MemoData": "CAFE", "MemoType": "74657374"}},
	}
	blob, err := Encode(map[string]any{
		"TransactionType": "EscrowCancel",
		"Account":         genesisAddress,
		"Memos":           memos,
	})
	require.NoError(t, err)

	decoded, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, memos, decoded["Memos"])
}

func TestEncodeRejectsUnknownField(t *testing.T) {
	_, err := Encode(map[string]any{"TransactionType": "EscrowCancel", "NoSuchField": 1})
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = Encode(map[string]any{"TransactionType": "NoSuchTransaction"})
	require.ErrorIs(t, err, ErrUnknownTxType)
}

func TestDecodeRejectsTruncatedBlobs(t *testing.T) {
	blob, err := Encode(map[string]any{
		"TransactionType":   "MPTokenIssuanceDestroy",
		"Account":           genesisAddress,
		"MPTokenIssuanceID": issuanceID,
	})
	require.NoError(t, err)

	for cut := 2; cut < len(blob); cut += 2 {
		assert.NotPanics(t, func() { _, _ = Decode(blob[:cut]) })
	}
	_, err = Decode(blob[:len(blob)-2])
	require.ErrorIs(t, err, ErrUnexpectedEnd)

	_, err = Decode("zz")
	require.ErrorIs(t, err, ErrInvalidValue)
}
