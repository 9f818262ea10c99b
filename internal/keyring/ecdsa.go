package keyring

import (
	"fmt"

	"github.com/clad-sovereign/clad-mobile/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/blake2b"
)

// secp256k1HDKD is the chain's label for ecdsa hard junction mixing.
const secp256k1HDKD = "Secp256k1HDKD"

// ecdsaScheme implements SignatureScheme over secp256k1. The 32-byte account
// public key is the blake2b-256 hash of the compressed point, and signatures
// are 65-byte compact recoverable signatures: verification recovers the
// point and compares its hash, as the chain does.
type ecdsaScheme struct{}

func (ecdsaScheme) Type() types.KeyType { return types.KeyTypeECDSA }

func (ecdsaScheme) Derive(seed []byte, junctions []Junction) (*types.Keypair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("keyring: seed must be at least 32 bytes, got %d", len(seed))
	}

	var secret [32]byte
	copy(secret[:], seed[:32])
	for _, j := range junctions {
		if j.Type != Hard {
			return nil, ErrSoftDerivation
		}
		secret = hdkdSecret(secp256k1HDKD, secret, j.ChainCode)
	}

	priv := secp256k1.PrivKeyFromBytes(secret[:])
	account := blake2b.Sum256(priv.PubKey().SerializeCompressed())
	return types.NewKeypair(account[:], priv.Serialize(), types.KeyTypeECDSA)
}

func (ecdsaScheme) Sign(kp *types.Keypair, msg []byte) ([]byte, error) {
	priv := kp.PrivateKey()
	if len(priv) != 32 {
		return nil, fmt.Errorf("keyring: ecdsa private key must be 32 bytes, got %d", len(priv))
	}
	hash := blake2b.Sum256(msg)
	key := secp256k1.PrivKeyFromBytes(priv)
	return ecdsa.SignCompact(key, hash[:], true), nil
}

func (ecdsaScheme) Verify(publicKey, msg, sig []byte) bool {
	if len(publicKey) != 32 || len(sig) != 65 {
		return false
	}
	hash := blake2b.Sum256(msg)
	recovered, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return false
	}
	account := blake2b.Sum256(recovered.SerializeCompressed())
	for i := range account {
		if account[i] != publicKey[i] {
			return false
		}
	}
	return true
}
