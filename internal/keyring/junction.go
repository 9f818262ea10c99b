// Package keyring derives account keypairs from BIP39 recovery phrases using
// Substrate-style junction derivation paths.
package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// JunctionType distinguishes hard from soft derivation steps.
type JunctionType int

const (
	// Hard junctions require the private scalar to derive.
	Hard JunctionType = iota
	// Soft junctions can be derived from the public key alone.
	Soft
)

func (t JunctionType) String() string {
	if t == Hard {
		return "hard"
	}
	return "soft"
}

// ChainCodeSize is the length of the value mixed into derivation at each step.
const ChainCodeSize = 32

// Junction is one segment of a derivation path with its 32-byte chaincode.
type Junction struct {
	Type      JunctionType
	ChainCode [ChainCodeSize]byte
}

// ErrMalformedPath is the kind for every derivation path parse failure.
// Wrapped errors carry the specific violated rule.
var ErrMalformedPath = errors.New("keyring: malformed derivation path")

// DecodeDerivationPath parses a derivation path such as "//hard/soft" into an
// ordered junction list. The empty path yields no junctions (the master key).
// Pure function; safe for concurrent use.
func DecodeDerivationPath(path string) ([]Junction, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: must start with '/'", ErrMalformedPath)
	}

	var junctions []Junction
	rest := path
	for rest != "" {
		// rest always starts with '/' here.
		jt := Soft
		rest = rest[1:]
		if strings.HasPrefix(rest, "/") {
			jt = Hard
			rest = rest[1:]
		}

		name := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}
		if name == "" {
			return nil, fmt.Errorf("%w: empty junction name in %q", ErrMalformedPath, path)
		}

		cc, err := chainCode(name)
		if err != nil {
			return nil, err
		}
		junctions = append(junctions, Junction{Type: jt, ChainCode: cc})
	}
	return junctions, nil
}

// chainCode computes a junction name's 32-byte chaincode. Three encodings,
// tried in order, matching the upstream chain exactly:
//
//  1. unsigned 64-bit integers: 8-byte little-endian, zero-padded
//  2. 0x-prefixed hex: raw bytes, zero-padded, at most 32 bytes
//  3. anything else: SCALE compact length prefix (len<<2) + UTF-8 bytes,
//     zero-padded, encoded form at most 32 bytes
func chainCode(name string) ([ChainCodeSize]byte, error) {
	var cc [ChainCodeSize]byte

	if n, err := strconv.ParseUint(name, 10, 64); err == nil {
		for i := 0; i < 8; i++ {
			cc[i] = byte(n >> (8 * i))
		}
		return cc, nil
	}

	if strings.HasPrefix(name, "0x") {
		if raw, err := hex.DecodeString(name[2:]); err == nil {
			if len(raw) > ChainCodeSize {
				return cc, fmt.Errorf("%w: hex junction %q exceeds %d bytes", ErrMalformedPath, name, ChainCodeSize)
			}
			copy(cc[:], raw)
			return cc, nil
		}
	}

	// SCALE compact length prefix is a single byte only for lengths < 64,
	// and the prefixed form has to fit the chaincode.
	raw := []byte(name)
	if len(raw)+1 > ChainCodeSize {
		return cc, fmt.Errorf("%w: junction %q encodes to more than %d bytes", ErrMalformedPath, name, ChainCodeSize)
	}
	cc[0] = byte(len(raw)) << 2
	copy(cc[1:], raw)
	return cc, nil
}
