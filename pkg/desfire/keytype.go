package desfire

import "fmt"

// KeyType names the cipher family a DESFire key operates under. It governs
// key length, cipher block size, the authentication command INS byte, and
// which secure-messaging arm (legacy DES-style vs. CMAC/AES-style) applies.
type KeyType byte

const (
	KeyTypeDES KeyType = iota
	KeyTypeTDES
	KeyTypeTKTDES
	KeyTypeAES
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeDES:
		return "DES"
	case KeyTypeTDES:
		return "2K3DES"
	case KeyTypeTKTDES:
		return "3K3DES"
	case KeyTypeAES:
		return "AES"
	default:
		return "unknown"
	}
}

// KeyLength returns the expected raw key length in bytes for t.
func (t KeyType) KeyLength() int {
	switch t {
	case KeyTypeDES:
		return 8
	case KeyTypeTDES:
		return 16
	case KeyTypeTKTDES:
		return 24
	case KeyTypeAES:
		return 16
	default:
		return 0
	}
}

// BlockSize returns the cipher block size: 8 for every DES-family key, 16
// for AES.
func (t KeyType) BlockSize() int {
	if t == KeyTypeAES {
		return 16
	}
	return 8
}

// ChallengeLength returns the length of the RndA/RndB mutual-authentication
// nonces for t. This is distinct from BlockSize: 3K3DES still encrypts in
// 8-byte CBC blocks (two of them chained) but, like AES, uses 16-byte
// nonces; plain DES and 2K3DES use 8-byte nonces matching their single
// cipher block.
func (t KeyType) ChallengeLength() int {
	switch t {
	case KeyTypeTKTDES, KeyTypeAES:
		return 16
	default:
		return 8
	}
}

// UsesSessionIV reports whether secure messaging for this key type threads
// a persistent IV through the whole session (3K3DES and AES do; legacy
// DES/2K3DES reset every cryptographic operation to a zero IV).
func (t KeyType) UsesSessionIV() bool {
	return t == KeyTypeTKTDES || t == KeyTypeAES
}

// authIns returns the Authenticate command's INS byte for t.
func (t KeyType) authIns() byte {
	switch t {
	case KeyTypeTKTDES:
		return 0x1A
	case KeyTypeAES:
		return 0xAA
	default: // DES, 2K3DES
		return 0x0A
	}
}

// clearDESVersionBits clears the least-significant bit of every byte of a
// DES-family key, the bit DESFire reserves to carry an 8-bit key version.
// AES keys are untouched (versioning for AES keys is a separate appended
// byte, not bit-stolen).
func clearDESVersionBits(key []byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b &^ 0x01
	}
	return out
}

// applyDESKeyVersion returns a copy of a DES-family key with the 8-bit
// version written into the LSBs of its first 8 bytes, most significant bit
// first (byte 0 carries bit 7). Bytes past the eighth are copied unchanged.
func applyDESKeyVersion(key []byte, version byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	for i := 0; i < 8 && i < len(out); i++ {
		bit := (version >> (7 - i)) & 0x01
		out[i] = (out[i] &^ 0x01) | bit
	}
	return out
}

// validateKeyLength returns InvalidArgument if key does not have the
// length KeyType t requires.
func validateKeyLength(t KeyType, key []byte) error {
	if len(key) != t.KeyLength() {
		return &InvalidArgument{Reason: fmt.Sprintf("key length %d invalid for %s", len(key), t.String())}
	}
	return nil
}
