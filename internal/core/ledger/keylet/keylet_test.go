package keylet

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

func genesisID(t *testing.T) [20]byte {
	t.Helper()
	id, err := crypto.AccountIDFromAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh")
	require.NoError(t, err)
	return id
}

func TestEscrowIndex(t *testing.T) {
	owner := genesisID(t)

	k := Escrow(owner, 7)
	want := crypto.Sha512Half([]byte{0x00, 'u'}, owner[:], []byte{0, 0, 0, 7})
	assert.Equal(t, want, k.Key)
	assert.Equal(t, "Escrow", k.Type)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(want[:])), k.Hex())

	assert.NotEqual(t, k.Key, Escrow(owner, 8).Key)
}

func TestMPTID(t *testing.T) {
	issuer := genesisID(t)

	id := MakeMPTID(0x0102, issuer)
	assert.Equal(t, uint32(0x0102), binary.BigEndian.Uint32(id[:4]))
	assert.Equal(t, issuer[:], id[4:])

	h := MakeMPTIDHex(0x0102, issuer)
	require.Len(t, h, 48)
	assert.True(t, strings.HasPrefix(h, "00000102B5F762798A53D543A014CAF8B297CFF8F2F937E8"))

	seq, got, err := ParseMPTID(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0102), seq)
	assert.Equal(t, issuer, got)

	_, _, err = ParseMPTID("00")
	assert.ErrorIs(t, err, ErrInvalidMPTID)
}

func TestAccountAndOwnerDirDiffer(t *testing.T) {
	id := genesisID(t)
	assert.NotEqual(t, Account(id).Key, OwnerDir(id).Key)
}
