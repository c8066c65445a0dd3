package tx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountValidate(t *testing.T) {
	tt := []struct {
		description string
		amount      Amount
		valid       bool
	}{
		{"drops", XRP(10), true},
		{"zero drops", Amount{Drops: "0"}, false},
		{"negative drops", Amount{Drops: "-5"}, false},
		{"above supply", Amount{Drops: "100000000000000001"}, false},
		{"issued", Issued("1.5", "USD", alice), true},
		{"issued xrp code", Issued("1", "XRP", alice), false},
		{"issued bad issuer", Issued("1", "USD", "nobody"), false},
		{"issued negative", Issued("-1", "USD", alice), false},
		{"mpt", MPT("00000001B5F762798A53D543A014CAF8B297CFF8F2F937E8", "5"), true},
		{"mpt short id", MPT("0001", "5"), false},
		{"mpt fractional", MPT("00000001B5F762798A53D543A014CAF8B297CFF8F2F937E8", "1.5"), false},
		{"empty", Amount{}, false},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			err := tc.amount.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAmount)
			}
		})
	}
}

func TestAmountJSON(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"10000000"`), &a))
	assert.Equal(t, XRP(10_000_000), a)

	require.NoError(t, json.Unmarshal([]byte(`{"currency":"USD","issuer":"`+alice+`","value":"3"}`), &a))
	assert.Equal(t, Issued("3", "USD", alice), a)

	require.NoError(t, json.Unmarshal([]byte(`{"mpt_issuance_id":"00000001b5f762798a53d543a014caf8b297cff8f2f937e8","value":"7"}`), &a))
	assert.True(t, a.IsMPT())
	assert.Equal(t, "00000001B5F762798A53D543A014CAF8B297CFF8F2F937E8", a.MPTIssuanceID)

	out, err := json.Marshal(XRP(42))
	require.NoError(t, err)
	assert.JSONEq(t, `"42"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"value":"1"}`), &a))
}

func TestResultClassification(t *testing.T) {
	assert.True(t, TesSUCCESS.IsSuccess())
	assert.True(t, TesSUCCESS.IsApplied())
	assert.True(t, TecNO_PERMISSION.IsTec())
	assert.True(t, TecNO_PERMISSION.IsApplied())
	assert.False(t, TecNO_PERMISSION.IsSuccess())
	assert.True(t, TefPAST_SEQ.IsTef())
	assert.True(t, TemMALFORMED.IsTem())
	assert.True(t, TerQUEUED.IsTer())
	assert.True(t, TerQUEUED.IsProvisional())
	assert.False(t, TemMALFORMED.IsProvisional())
	assert.True(t, Result("telCAN_NOT_QUEUE").IsTel())
	assert.Equal(t, "tecPATH_DRY", Result("tecPATH_DRY").Message())
}
