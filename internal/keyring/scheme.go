package keyring

import (
	"errors"
	"fmt"

	"github.com/clad-sovereign/clad-mobile/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// SignatureScheme isolates the curve math behind a small interface so the
// junction parsing and chaincode computation stay independent of whichever
// curve library is linked in.
type SignatureScheme interface {
	// Type names the scheme.
	Type() types.KeyType

	// Derive produces the keypair for a 64-byte seed and an ordered
	// junction list. An empty list yields the master keypair.
	Derive(seed []byte, junctions []Junction) (*types.Keypair, error)

	// Sign signs a message with the keypair's private key material.
	Sign(kp *types.Keypair, msg []byte) ([]byte, error)

	// Verify checks a signature against a 32-byte account public key.
	// Never returns an error; malformed inputs verify false.
	Verify(publicKey, msg, sig []byte) bool
}

// ErrSoftDerivation is returned by schemes that only support hard junctions.
var ErrSoftDerivation = errors.New("keyring: scheme does not support soft derivation")

// SchemeFor returns the scheme implementation for a key type.
func SchemeFor(kt types.KeyType) (SignatureScheme, error) {
	switch kt {
	case types.KeyTypeSR25519:
		return sr25519Scheme{}, nil
	case types.KeyTypeED25519:
		return ed25519Scheme{}, nil
	case types.KeyTypeECDSA:
		return ecdsaScheme{}, nil
	default:
		return nil, fmt.Errorf("keyring: unknown key type %q", kt)
	}
}

// hdkdSecret mixes a secret and chaincode into a fresh 32-byte secret for
// schemes without native hierarchical derivation. The label is the scheme's
// HDKD tag, SCALE-string-encoded, as the chain does it.
func hdkdSecret(label string, secret [32]byte, cc [ChainCodeSize]byte) [32]byte {
	buf := make([]byte, 0, 1+len(label)+64)
	buf = append(buf, byte(len(label))<<2)
	buf = append(buf, label...)
	buf = append(buf, secret[:]...)
	buf = append(buf, cc[:]...)
	return blake2b.Sum256(buf)
}
