package ss58

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// Well-known development account (Alice).
const (
	alicePubHex  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceGeneric = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	return b
}

func TestEncode_KnownVector(t *testing.T) {
	addr, err := Encode(mustHex(t, alicePubHex), PrefixGeneric)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if addr != aliceGeneric {
		t.Errorf("Encode() = %s, want %s", addr, aliceGeneric)
	}
}

func TestEncode_CrossPlatformVector(t *testing.T) {
	// Derived from the shared test mnemonic, sr25519, empty path.
	pub := mustHex(t, "d6a3105d6768e956e9e5d41050ac29843f98561410d3a47f9dd5b3b227ab8746")
	addr, err := Encode(pub, PrefixGeneric)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := "5Gv8YYFu8H1btvmrJy9FjjAWfb99wrhV3uhPFoNEr918utyR"
	if addr != want {
		t.Errorf("Encode() = %s, want %s", addr, want)
	}
}

func TestEncode_InvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 20, 31, 33, 64} {
		if _, err := Encode(make([]byte, n), PrefixGeneric); err == nil {
			t.Errorf("Encode() with %d-byte key should fail", n)
		}
	}
}

func TestDecode_KnownVector(t *testing.T) {
	pub, prefix, err := Decode(aliceGeneric)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if prefix != PrefixGeneric {
		t.Errorf("prefix = %d, want %d", prefix, PrefixGeneric)
	}
	if !bytes.Equal(pub, mustHex(t, alicePubHex)) {
		t.Errorf("pubkey = %x, want %s", pub, alicePubHex)
	}
}

func TestRoundTrip(t *testing.T) {
	prefixes := []NetworkPrefix{PrefixPolkadot, PrefixKusama, 5, 63, PrefixGeneric, 64, 255, 4242, MaxPrefix}
	key := make([]byte, PublicKeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}

	for _, p := range prefixes {
		addr, err := Encode(key, p)
		if err != nil {
			t.Fatalf("Encode(prefix=%d) error: %v", p, err)
		}
		gotKey, gotPrefix, err := Decode(addr)
		if err != nil {
			t.Fatalf("Decode(prefix=%d) error: %v", p, err)
		}
		if gotPrefix != p {
			t.Errorf("prefix round trip: got %d, want %d", gotPrefix, p)
		}
		if !bytes.Equal(gotKey, key) {
			t.Errorf("key round trip failed for prefix %d", p)
		}
	}
}

func TestEncode_PrefixOutOfRange(t *testing.T) {
	if _, err := Encode(make([]byte, PublicKeySize), MaxPrefix+1); err == nil {
		t.Error("Encode() with out-of-range prefix should fail")
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"truncated", aliceGeneric[:10]},
		{"garbage", "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.addr); err == nil {
				t.Errorf("Decode(%q) should fail", tt.addr)
			}
			if IsValid(tt.addr) {
				t.Errorf("IsValid(%q) = true, want false", tt.addr)
			}
		})
	}
}

func TestIsValid_ChecksumFlip(t *testing.T) {
	addr, err := Encode(mustHex(t, alicePubHex), PrefixGeneric)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !IsValid(addr) {
		t.Fatal("valid address reported invalid")
	}

	// Corrupting any character of the address must trip the checksum or
	// the base58 decoder.
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	for i := 0; i < len(addr); i++ {
		replacement := alphabet[0]
		if addr[i] == replacement {
			replacement = alphabet[1]
		}
		mutated := addr[:i] + string(replacement) + addr[i+1:]
		if mutated == addr {
			continue
		}
		if IsValid(mutated) {
			t.Errorf("mutated address at %d still validates: %s", i, mutated)
		}
	}
}
