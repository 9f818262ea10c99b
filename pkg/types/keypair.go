// Package types defines shared value types for the wallet core.
package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/clad-sovereign/clad-mobile/pkg/ss58"
)

// KeyType identifies the signature scheme an account key belongs to.
type KeyType string

const (
	// KeyTypeSR25519 is the default Substrate account scheme (supports
	// soft derivation).
	KeyTypeSR25519 KeyType = "sr25519"

	// KeyTypeED25519 supports hard derivation only.
	KeyTypeED25519 KeyType = "ed25519"

	// KeyTypeECDSA is the secp256k1 scheme; the account key is the
	// blake2b-256 hash of the compressed point.
	KeyTypeECDSA KeyType = "ecdsa"
)

// Valid reports whether kt names a supported scheme.
func (kt KeyType) Valid() bool {
	switch kt {
	case KeyTypeSR25519, KeyTypeED25519, KeyTypeECDSA:
		return true
	}
	return false
}

// PublicKeySize is the account public key length. Every scheme presents a
// 32-byte account key (ECDSA via hashing).
const PublicKeySize = 32

// ErrInvalidPublicKey is returned when constructing a keypair with a public
// key that is not exactly 32 bytes.
var ErrInvalidPublicKey = errors.New("keypair: public key must be 32 bytes")

// Keypair holds the raw key material for one account.
//
// The private key is sensitive: owners must call Clear once the keypair has
// been persisted or discarded, keep its lifetime short, and never log or
// serialize it. Clear zeroes the bytes in place; it does not deallocate the
// object, and it is not safe to race Clear against a concurrent read.
type Keypair struct {
	publicKey  []byte
	privateKey []byte
	keyType    KeyType
}

// NewKeypair builds a keypair, enforcing the 32-byte public key invariant.
// The byte slices are not copied; the keypair takes ownership.
func NewKeypair(publicKey, privateKey []byte, keyType KeyType) (*Keypair, error) {
	if len(publicKey) != PublicKeySize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidPublicKey, len(publicKey))
	}
	if !keyType.Valid() {
		return nil, fmt.Errorf("keypair: unknown key type %q", keyType)
	}
	return &Keypair{publicKey: publicKey, privateKey: privateKey, keyType: keyType}, nil
}

// PublicKey returns the 32-byte account public key. Callers must not mutate it.
func (kp *Keypair) PublicKey() []byte {
	return kp.publicKey
}

// PrivateKey returns the raw private key material. Callers must not mutate,
// log, or persist it in cleartext.
func (kp *Keypair) PrivateKey() []byte {
	return kp.privateKey
}

// Type returns the signature scheme this keypair belongs to.
func (kp *Keypair) Type() KeyType {
	return kp.keyType
}

// Address encodes the public key as an SS58 address for the given network.
func (kp *Keypair) Address(prefix ss58.NetworkPrefix) (string, error) {
	return ss58.Encode(kp.publicKey, prefix)
}

// Equal reports byte-content equality, not identity.
func (kp *Keypair) Equal(other *Keypair) bool {
	if kp == nil || other == nil {
		return kp == other
	}
	return kp.keyType == other.keyType &&
		bytes.Equal(kp.publicKey, other.publicKey) &&
		bytes.Equal(kp.privateKey, other.privateKey)
}

// Clear overwrites the private key bytes with zeros. Best effort: the runtime
// may have copied the bytes elsewhere. The keypair remains usable for
// public-key operations afterwards.
func (kp *Keypair) Clear() {
	for i := range kp.privateKey {
		kp.privateKey[i] = 0
	}
}

// Cleared reports whether the private key is absent or all-zero.
func (kp *Keypair) Cleared() bool {
	for _, b := range kp.privateKey {
		if b != 0 {
			return false
		}
	}
	return true
}

// String redacts the private key unconditionally.
func (kp *Keypair) String() string {
	return fmt.Sprintf("Keypair{type: %s, public: %x, private: <redacted>}", kp.keyType, kp.publicKey)
}
