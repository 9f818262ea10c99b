package keyring

import (
	"fmt"

	"github.com/clad-sovereign/clad-mobile/pkg/ss58"
	"github.com/clad-sovereign/clad-mobile/pkg/types"
)

// KeypairFromMnemonic derives the final keypair for a mnemonic, optional
// passphrase, key type, and derivation path. Identical inputs always yield an
// identical public key; that determinism is what makes the same recovery
// phrase produce the same address on every platform.
func KeypairFromMnemonic(mnemonic, passphrase string, keyType types.KeyType, derivationPath string) (*types.Keypair, error) {
	scheme, err := SchemeFor(keyType)
	if err != nil {
		return nil, err
	}
	junctions, err := DecodeDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	return scheme.Derive(seed, junctions)
}

// AddressFromMnemonic is a convenience wrapper that derives a keypair and
// encodes its SS58 address, clearing the private key before returning.
func AddressFromMnemonic(mnemonic, passphrase string, keyType types.KeyType, derivationPath string, prefix ss58.NetworkPrefix) (string, error) {
	kp, err := KeypairFromMnemonic(mnemonic, passphrase, keyType, derivationPath)
	if err != nil {
		return "", err
	}
	defer kp.Clear()

	addr, err := kp.Address(prefix)
	if err != nil {
		return "", fmt.Errorf("encode address: %w", err)
	}
	return addr, nil
}

// zero overwrites a byte slice. Best effort, same caveats as Keypair.Clear.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
