package keyring

import (
	"crypto/sha512"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// WordCount is a supported BIP39 phrase length.
type WordCount int

const (
	// Words12 is a 12-word phrase (128 bits of entropy).
	Words12 WordCount = 12
	// Words24 is a 24-word phrase (256 bits of entropy).
	Words24 WordCount = 24
)

// SeedSize is the length of a derived seed in bytes (512 bits).
const SeedSize = 64

const seedRounds = 2048

// ValidationResult reports whether a mnemonic is valid. Invalidity is an
// expected outcome during user input, so it is a value, not an error.
type ValidationResult struct {
	Valid  bool
	Reason string
}

func valid() ValidationResult { return ValidationResult{Valid: true} }

func invalid(reason string) ValidationResult { return ValidationResult{Reason: reason} }

// GenerateMnemonic creates a fresh random BIP39 phrase from the English
// wordlist. Each call draws new entropy; the result is never reproducible.
func GenerateMnemonic(words WordCount) (string, error) {
	var bits int
	switch words {
	case Words12:
		bits = 128
	case Words24:
		bits = 256
	default:
		return "", fmt.Errorf("keyring: unsupported word count %d", words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks word count, wordlist membership, and checksum,
// naming the first failing check.
func ValidateMnemonic(mnemonic string) ValidationResult {
	words := strings.Fields(strings.TrimSpace(mnemonic))
	if len(words) != int(Words12) && len(words) != int(Words24) {
		return invalid(fmt.Sprintf("expected 12 or 24 words, got %d", len(words)))
	}
	for _, w := range words {
		if _, ok := bip39.GetWordIndex(w); !ok {
			return invalid(fmt.Sprintf("word %q is not in the BIP39 wordlist", w))
		}
	}
	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return invalid("checksum mismatch")
	}
	return valid()
}

// SeedFromMnemonic derives the 64-byte seed from a mnemonic and passphrase.
//
// Substrate stretches the phrase's *entropy*, not the phrase text
// (PBKDF2-SHA512, salt "mnemonic"+passphrase, 2048 rounds). Using the BIP39
// text form here would silently diverge from every other platform client.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if res := ValidateMnemonic(mnemonic); !res.Valid {
		return nil, fmt.Errorf("keyring: invalid mnemonic: %s", res.Reason)
	}
	entropy, err := bip39.EntropyFromMnemonic(strings.Join(strings.Fields(strings.TrimSpace(mnemonic)), " "))
	if err != nil {
		return nil, fmt.Errorf("mnemonic entropy: %w", err)
	}
	salt := []byte("mnemonic" + passphrase)
	return pbkdf2.Key(entropy, salt, seedRounds, SeedSize, sha512.New), nil
}
