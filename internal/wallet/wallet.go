// Package wallet turns a seed into a signer for the transactions in
// internal/core/tx. Keys live only as long as the operation that needs them.
package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	"github.com/Peersyst/xrpl-go/keypairs"
	"github.com/btcsuite/btcd/btcec/v2"

	binarycodec "github.com/LeJamon/goxrpl-escrow/internal/codec/binary-codec"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
	"github.com/LeJamon/goxrpl-escrow/internal/crypto"
)

var (
	// ErrInvalidSeed is returned when a seed does not decode.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrInvalidPublicKey is returned when a derived key is not on its curve.
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrClosed is returned when signing with a closed wallet.
	ErrClosed = errors.New("wallet closed")
)

// KeyType identifies the signing algorithm of a key pair.
type KeyType int

const (
	KeyTypeSecp256k1 KeyType = iota
	KeyTypeEd25519
)

func (k KeyType) String() string {
	if k == KeyTypeEd25519 {
		return "ed25519"
	}
	return "secp256k1"
}

// Wallet signs with the key pair derived from one seed.
type Wallet struct {
	Address   string
	PublicKey string
	KeyType   KeyType

	privateKey []byte
}

// Signed is a signed transaction ready for submission.
type Signed struct {
	Blob string
	Hash string
}

// FromSeed derives the master key pair for a family seed.
func FromSeed(seed string) (*Wallet, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSeed)
	}
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	priv, pub, err := keypairs.DeriveKeypair(seed, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	pubBytes, err := hex.DecodeString(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	keyType, err := checkPublicKey(pubBytes)
	if err != nil {
		return nil, err
	}

	address, err := crypto.AddressFromPublicKey(pubBytes)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		Address:    address,
		PublicKey:  strings.ToUpper(pub),
		KeyType:    keyType,
		privateKey: []byte(priv),
	}, nil
}

// ed25519SeedPrefix marks an ed25519 family seed ("sEd...").
var ed25519SeedPrefix = []byte{0x01, 0xE1, 0x4B}

// checkSeed accepts only a Base58Check family seed: the secp256k1 or
// ed25519 prefix followed by 16 bytes of entropy.
func checkSeed(seed string) error {
	decoded, err := addresscodec.Base58CheckDecode(seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	defer crypto.SecureErase(decoded)
	switch {
	case len(decoded) == 1+addresscodec.FamilySeedLength && decoded[0] == addresscodec.FamilySeedPrefix:
	case len(decoded) == len(ed25519SeedPrefix)+addresscodec.FamilySeedLength && bytes.HasPrefix(decoded, ed25519SeedPrefix):
	default:
		return fmt.Errorf("%w: not a family seed", ErrInvalidSeed)
	}
	return nil
}

func checkPublicKey(pub []byte) (KeyType, error) {
	if len(pub) == 33 && pub[0] == 0xED {
		return KeyTypeEd25519, nil
	}
	if _, err := btcec.ParsePubKey(pub); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return KeyTypeSecp256k1, nil
}

// Sign sets SigningPubKey and TxnSignature on t and returns the serialized
// blob with its transaction hash. Autofill must have run first.
func (w *Wallet) Sign(t tx.Transaction) (*Signed, error) {
	if w.privateKey == nil {
		return nil, ErrClosed
	}

	common := t.GetCommon()
	common.SigningPubKey = w.PublicKey
	common.TxnSignature = ""

	fields, err := t.Flatten()
	if err != nil {
		return nil, err
	}
	encoded, err := binarycodec.EncodeForSigning(fields)
	if err != nil {
		return nil, fmt.Errorf("encode for signing: %w", err)
	}
	payload, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("encode for signing: %w", err)
	}
	defer crypto.SecureErase(payload)

	signature, err := keypairs.Sign(string(payload), string(w.privateKey))
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	common.TxnSignature = signature
	fields["TxnSignature"] = signature

	blob, err := binarycodec.Encode(fields)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	hash, err := crypto.TransactionIDHex(blob)
	if err != nil {
		return nil, err
	}
	return &Signed{Blob: strings.ToUpper(blob), Hash: hash}, nil
}

// Close erases the private key. The wallet cannot sign afterwards.
func (w *Wallet) Close() {
	if w == nil || w.privateKey == nil {
		return
	}
	crypto.SecureErase(w.privateKey)
	w.privateKey = nil
}
