package keystore

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed blob layout:
// [version(1)][salt(32)][memory(4)][iterations(4)][parallelism(1)][nonce(24)][ciphertext...]
const (
	sealVersion = 1
	saltSize    = 32
	headerSize  = 1 + saltSize + 4 + 4 + 1
)

// SealParams holds Argon2id parameters.
type SealParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultSealParams returns recommended Argon2id parameters.
func DefaultSealParams() SealParams {
	return SealParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

// deriveSealKey uses Argon2id to derive a 32-byte encryption key from the
// passphrase and salt.
func deriveSealKey(passphrase, salt []byte, params SealParams) []byte {
	return argon2.IDKey(
		passphrase,
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		chacha20poly1305.KeySize,
	)
}

// seal encrypts key material with a passphrase using Argon2id +
// XChaCha20-Poly1305. The parameters ride along in the header so they can be
// hardened later without breaking existing files.
func seal(plaintext, passphrase []byte, params SealParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveSealKey(passphrase, salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// open decrypts a sealed blob with the given passphrase.
func open(sealed, passphrase []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minSize := headerSize + nonceSize + chacha20poly1305.Overhead
	if len(sealed) < minSize {
		return nil, fmt.Errorf("sealed data too short: %d bytes, need at least %d", len(sealed), minSize)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("unsupported sealed format version %d", sealed[0])
	}

	salt := sealed[1 : 1+saltSize]
	memory := binary.LittleEndian.Uint32(sealed[1+saltSize:])
	iterations := binary.LittleEndian.Uint32(sealed[1+saltSize+4:])
	parallelism := sealed[1+saltSize+8]

	params := SealParams{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: parallelism,
	}

	nonce := sealed[headerSize : headerSize+nonceSize]
	ciphertext := sealed[headerSize+nonceSize:]

	key := deriveSealKey(passphrase, salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
