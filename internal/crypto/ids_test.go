package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcAccountID(t *testing.T) {
	tt := []struct {
		description string
		pubKey      string
		expected    string
	}{
		{
			description: "ed25519 public key",
			pubKey:      "ED9434799226374926EDA3B54B1B461B4ABF7237962EAE18528FEA67595397FA32",
			expected:    "88a5a57c829f40f25ea83385bbde6c3d8b4ca082",
		},
		{
			description: "secp256k1 public key",
			pubKey:      "0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020",
			expected:    "b5f762798a53d543a014caf8b297cff8f2f937e8",
		},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			pub, err := hex.DecodeString(tc.pubKey)
			require.NoError(t, err)
			id := CalcAccountID(pub)
			require.Equal(t, tc.expected, hex.EncodeToString(id[:]))
		})
	}
}

func TestAddressRoundTrip(t *testing.T) {
	pub, err := hex.DecodeString("0330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020")
	require.NoError(t, err)

	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)
	require.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", addr)

	id, err := AccountIDFromAddress(addr)
	require.NoError(t, err)
	require.Equal(t, CalcAccountID(pub), id)
	require.True(t, IsValidAddress(addr))
}

func TestAccountIDFromAddressRejectsGarbage(t *testing.T) {
	tt := []struct {
		description string
		address     string
	}{
		{"empty", ""},
		{"not base58", "not-an-address"},
		{"bad checksum in last character", "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTX"},
		{"bad checksum in the middle", "rHb9CJAWyBprj91VRWn96DkukG4bwdtyTh"},
		{"family seed prefix", "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"},
		{"truncated", "rHb9CJAWyB4rj91VRWn96Dk"},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			_, err := AccountIDFromAddress(tc.address)
			require.ErrorIs(t, err, ErrInvalidAddress)
			require.False(t, IsValidAddress(tc.address))
		})
	}
}
