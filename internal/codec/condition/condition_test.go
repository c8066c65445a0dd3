package condition

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors cb1..cb3 from the ledger's escrow test suite.
const (
	cond1 = "A0258020E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855810100"
	ful1  = "A0028000"
	cond2 = "A02580209834876DCFB05CB167A5C24953EBA58C4AC89B1ADF57F28F2F9D09AF107EE8F0810103"
	ful2  = "A0058003616161"
	cond3 = "A02580206E4C714530C0A4268B3FA63B1B606F2D264A2D857BE8A09C1DFD570D15858BD4810104"
	ful3  = "A00680046E696B62"
)

func TestFromPreimageVectors(t *testing.T) {
	tt := []struct {
		description string
		preimage    string
		condition   string
		fulfillment string
	}{
		{"aaa", "aaa", cond2, ful2},
		{"nikb", "nikb", cond3, ful3},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			pair, err := FromPreimage([]byte(tc.preimage))
			require.NoError(t, err)
			assert.Equal(t, tc.condition, pair.Condition)
			assert.Equal(t, tc.fulfillment, pair.Fulfillment)
		})
	}
}

func TestGenerateIsSelfConsistent(t *testing.T) {
	for i := 0; i < 20; i++ {
		pair, err := Generate()
		require.NoError(t, err)

		require.Len(t, pair.Condition, 78)
		assert.True(t, strings.HasPrefix(pair.Condition, "A0258020"))
		assert.True(t, strings.HasSuffix(pair.Condition, "810120"))
		assert.Equal(t, strings.ToUpper(pair.Condition), pair.Condition)
		assert.Equal(t, strings.ToUpper(pair.Fulfillment), pair.Fulfillment)

		ok, err := IsValidFulfillment(pair.Condition, pair.Fulfillment)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestGenerateIsFresh(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a.Condition, b.Condition)

	ok, err := IsValidFulfillment(a.Condition, b.Fulfillment)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValidFulfillment(t *testing.T) {
	tt := []struct {
		description string
		condition   string
		fulfillment string
		want        bool
	}{
		{"empty preimage", cond1, ful1, true},
		{"aaa", cond2, ful2, true},
		{"nikb", cond3, ful3, true},
		{"lowercase input", strings.ToLower(cond2), strings.ToLower(ful2), true},
		{"wrong preimage", cond2, "A0058003626262", false},
		{"other vector", cond3, ful2, false},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			ok, err := IsValidFulfillment(tc.condition, tc.fulfillment)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestTamperedFulfillmentNeverVerifies(t *testing.T) {
	pair, err := Generate()
	require.NoError(t, err)
	raw, err := hex.DecodeString(pair.Fulfillment)
	require.NoError(t, err)

	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 1 << bit
			ok, err := IsValidFulfillment(pair.Condition, hex.EncodeToString(tampered))
			assert.False(t, ok && err == nil, "byte %d bit %d", i, bit)
		}
	}
}

func TestMalformedInputIsAnError(t *testing.T) {
	tt := []struct {
		description string
		condition   string
		fulfillment string
		kind        error
	}{
		{"condition not hex", "ZZ", ful2, ErrEncoding},
		{"fulfillment not hex", cond2, "A00", ErrEncoding},
		{"empty condition", "", ful2, ErrEncoding},
		{"condition trailing byte", cond2 + "00", ful2, ErrTrailingData},
		{"fulfillment trailing byte", cond2, ful2 + "00", ErrTrailingData},
		{"condition truncated", cond2[:40], ful2, ErrStructure},
		{"fulfillment truncated", cond2, "A00580036161", ErrStructure},
		{"prefix-sha-256 type", "A1" + cond2[2:], ful2, ErrUnsupportedType},
		{"fulfillment of other type", cond2, "A1058003616161", ErrUnsupportedType},
		{"not a condition", "0401020304", ful2, ErrStructure},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			ok, err := IsValidFulfillment(tc.condition, tc.fulfillment)
			require.Error(t, err)
			assert.False(t, ok)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestPreimageBounds(t *testing.T) {
	_, err := FromPreimage(nil)
	require.ErrorIs(t, err, ErrPreimageLength)

	_, err = FromPreimage(make([]byte, MaxPreimageLength+1))
	require.ErrorIs(t, err, ErrPreimageLength)

	pair, err := FromPreimage(make([]byte, MaxPreimageLength))
	require.NoError(t, err)
	ok, err := IsValidFulfillment(pair.Condition, pair.Fulfillment)
	require.NoError(t, err)
	assert.True(t, ok)

	// 129-byte preimage hand-encoded in long form.
	long := append([]byte{0xA0, 0x81, 0x84, 0x80, 0x81, 0x81}, make([]byte, 129)...)
	_, err = ParseFulfillment(hex.EncodeToString(long))
	require.ErrorIs(t, err, ErrPreimageLength)
}

func TestParse(t *testing.T) {
	c, err := Parse(cond3)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), c.Cost)
	assert.Equal(t, cond3, c.Hex())
	assert.NoError(t, Validate(cond3))

	_, err = Parse(strings.Repeat("A0", MaxSerializedCondition+1))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFinishFee(t *testing.T) {
	assert.Equal(t, uint64(10), FinishFee(10, ""))
	// 4-byte fulfillment: 10 * (33 + 0)
	assert.Equal(t, uint64(330), FinishFee(10, ful1))
	// 36-byte fulfillment from Generate: 10 * (33 + 2)
	pair, err := Generate()
	require.NoError(t, err)
	assert.Equal(t, uint64(350), FinishFee(10, pair.Fulfillment))
}
