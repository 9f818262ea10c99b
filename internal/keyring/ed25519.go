package keyring

import (
	"crypto/ed25519"
	"fmt"

	"github.com/clad-sovereign/clad-mobile/pkg/types"
)

// ed25519HDKD is the chain's label for ed25519 hard junction mixing.
const ed25519HDKD = "Ed25519HDKD"

// ed25519Scheme implements SignatureScheme over stdlib ed25519. Only hard
// junctions are possible: edwards25519 key clamping breaks public-only
// child derivation.
type ed25519Scheme struct{}

func (ed25519Scheme) Type() types.KeyType { return types.KeyTypeED25519 }

func (ed25519Scheme) Derive(seed []byte, junctions []Junction) (*types.Keypair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("keyring: seed must be at least 32 bytes, got %d", len(seed))
	}

	var secret [32]byte
	copy(secret[:], seed[:32])
	for _, j := range junctions {
		if j.Type != Hard {
			return nil, ErrSoftDerivation
		}
		secret = hdkdSecret(ed25519HDKD, secret, j.ChainCode)
	}

	priv := ed25519.NewKeyFromSeed(secret[:])
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, priv[32:])
	return types.NewKeypair(pub, priv, types.KeyTypeED25519)
}

func (ed25519Scheme) Sign(kp *types.Keypair, msg []byte) ([]byte, error) {
	priv := kp.PrivateKey()
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keyring: ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (ed25519Scheme) Verify(publicKey, msg, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), msg, sig)
}
