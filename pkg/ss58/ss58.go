// Package ss58 implements the SS58 address codec used by Substrate chains.
//
// An SS58 address is base58(prefix_bytes || pubkey || checksum) where the
// checksum is the first two bytes of blake2b-512("SS58PRE" || prefix_bytes ||
// pubkey). The codec must match the upstream chain bit for bit: every client
// deriving from the same recovery phrase has to print the same address.
package ss58

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// NetworkPrefix identifies a chain's address namespace. Any value in
// [0, 16383] is structurally valid; semantic meaning lives in the SS58
// registry, not here.
type NetworkPrefix uint16

// Well-known prefixes.
const (
	PrefixPolkadot NetworkPrefix = 0
	PrefixKusama   NetworkPrefix = 2
	PrefixGeneric  NetworkPrefix = 42
)

// PublicKeySize is the account public key length in bytes.
const PublicKeySize = 32

// MaxPrefix is the largest encodable network prefix (14 usable bits).
const MaxPrefix NetworkPrefix = 16383

const checksumSize = 2

// checksumPreimage is prepended to the payload before hashing.
var checksumPreimage = []byte("SS58PRE")

var (
	// ErrInvalidKeyLength is returned by Encode for non-32-byte keys.
	ErrInvalidKeyLength = errors.New("ss58: public key must be 32 bytes")

	// ErrInvalidAddress is returned by Decode for anything that is not a
	// well-formed SS58 address: bad base58, bad length, bad checksum.
	ErrInvalidAddress = errors.New("ss58: invalid address")
)

// Encode encodes a 32-byte public key and network prefix into an SS58
// address string.
func Encode(publicKey []byte, prefix NetworkPrefix) (string, error) {
	if len(publicKey) != PublicKeySize {
		return "", fmt.Errorf("%w, got %d", ErrInvalidKeyLength, len(publicKey))
	}
	prefixBytes, err := encodePrefix(prefix)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(prefixBytes)+PublicKeySize+checksumSize)
	payload = append(payload, prefixBytes...)
	payload = append(payload, publicKey...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload), nil
}

// Decode decodes an SS58 address into its public key and network prefix.
// The checksum is recomputed and verified.
func Decode(address string) ([]byte, NetworkPrefix, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 1 {
		return nil, 0, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}

	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) != prefixLen+PublicKeySize+checksumSize {
		return nil, 0, fmt.Errorf("%w: payload is %d bytes", ErrInvalidAddress, len(raw))
	}

	body := raw[:prefixLen+PublicKeySize]
	want := checksum(body)
	got := raw[prefixLen+PublicKeySize:]
	if got[0] != want[0] || got[1] != want[1] {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	pub := make([]byte, PublicKeySize)
	copy(pub, raw[prefixLen:prefixLen+PublicKeySize])
	return pub, prefix, nil
}

// IsValid reports whether address decodes cleanly. It never returns an error.
func IsValid(address string) bool {
	_, _, err := Decode(address)
	return err == nil
}

// encodePrefix serializes a network prefix: one byte for 0-63, the two-byte
// bit-packed form for 64-16383.
func encodePrefix(prefix NetworkPrefix) ([]byte, error) {
	switch {
	case prefix < 64:
		return []byte{byte(prefix)}, nil
	case prefix <= MaxPrefix:
		// Registry bit layout: the first byte carries the flag
		// bit 0b0100_0000 plus ident bits 2..7, the second carries bits
		// 8..13 and 0..1.
		first := byte((prefix&0b0000_0000_1111_1100)>>2) | 0b0100_0000
		second := byte(prefix>>8) | byte((prefix&0b0000_0000_0000_0011)<<6)
		return []byte{first, second}, nil
	default:
		return nil, fmt.Errorf("ss58: network prefix %d out of range", prefix)
	}
}

// decodePrefix reads the network prefix off the front of a decoded payload
// and returns it with the number of bytes it occupied.
func decodePrefix(raw []byte) (NetworkPrefix, int, error) {
	switch {
	case raw[0] < 64:
		return NetworkPrefix(raw[0]), 1, nil
	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, 0, fmt.Errorf("%w: truncated prefix", ErrInvalidAddress)
		}
		lower := byte(raw[0]<<2) | raw[1]>>6
		upper := raw[1] & 0b0011_1111
		return NetworkPrefix(lower) | NetworkPrefix(upper)<<8, 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: reserved prefix byte %#x", ErrInvalidAddress, raw[0])
	}
}

// checksum computes the two-byte SS58 checksum over prefix_bytes || pubkey.
func checksum(body []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(checksumPreimage)
	h.Write(body)
	sum := h.Sum(nil)
	return sum[:checksumSize]
}
