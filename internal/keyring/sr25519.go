package keyring

import (
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/clad-sovereign/clad-mobile/pkg/types"
)

// signingContext is the transcript label Substrate uses for account
// signatures.
var signingContext = []byte("substrate")

// sr25519Scheme implements SignatureScheme over ristretto255 Schnorr
// (schnorrkel). Both hard and soft junctions are supported; soft junctions
// never expose the private scalar to intermediate steps.
type sr25519Scheme struct{}

func (sr25519Scheme) Type() types.KeyType { return types.KeyTypeSR25519 }

func (sr25519Scheme) Derive(seed []byte, junctions []Junction) (*types.Keypair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("keyring: seed must be at least 32 bytes, got %d", len(seed))
	}

	var mini [32]byte
	copy(mini[:], seed[:32])
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(mini)
	if err != nil {
		return nil, fmt.Errorf("sr25519 mini secret: %w", err)
	}
	secret := msk.ExpandEd25519()

	for i, j := range junctions {
		switch j.Type {
		case Hard:
			next, _, err := secret.HardDeriveMiniSecretKey(nil, j.ChainCode)
			if err != nil {
				return nil, fmt.Errorf("sr25519 hard junction %d: %w", i, err)
			}
			secret = next.ExpandEd25519()
		case Soft:
			ext, err := schnorrkel.DeriveKeySimple(secret, nil, j.ChainCode)
			if err != nil {
				return nil, fmt.Errorf("sr25519 soft junction %d: %w", i, err)
			}
			secret, err = ext.Secret()
			if err != nil {
				return nil, fmt.Errorf("sr25519 soft junction %d: %w", i, err)
			}
		}
	}

	pub, err := secret.Public()
	if err != nil {
		return nil, fmt.Errorf("sr25519 public key: %w", err)
	}
	pubBytes := pub.Encode()
	privBytes := secret.Encode()
	return types.NewKeypair(pubBytes[:], privBytes[:], types.KeyTypeSR25519)
}

func (sr25519Scheme) Sign(kp *types.Keypair, msg []byte) ([]byte, error) {
	secret, err := secretFromBytes(kp.PrivateKey())
	if err != nil {
		return nil, err
	}
	sig, err := secret.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return nil, fmt.Errorf("sr25519 sign: %w", err)
	}
	enc := sig.Encode()
	return enc[:], nil
}

func (sr25519Scheme) Verify(publicKey, msg, sig []byte) bool {
	if len(publicKey) != 32 || len(sig) != 64 {
		return false
	}
	var pubRaw [32]byte
	copy(pubRaw[:], publicKey)
	pub, err := schnorrkel.NewPublicKey(pubRaw)
	if err != nil {
		return false
	}
	var sigRaw [64]byte
	copy(sigRaw[:], sig)
	signature := new(schnorrkel.Signature)
	if err := signature.Decode(sigRaw); err != nil {
		return false
	}
	ok, err := pub.Verify(signature, schnorrkel.NewSigningContext(signingContext, msg))
	return err == nil && ok
}

// secretFromBytes rebuilds a schnorrkel secret key from the keypair's raw
// 32-byte scalar. The signing nonce half is zeroed; signatures stay valid,
// the nonce only feeds witness randomness.
func secretFromBytes(priv []byte) (*schnorrkel.SecretKey, error) {
	if len(priv) != 32 {
		return nil, fmt.Errorf("keyring: sr25519 private key must be 32 bytes, got %d", len(priv))
	}
	var key [32]byte
	copy(key[:], priv)
	return schnorrkel.NewSecretKey(key, [32]byte{}), nil
}
