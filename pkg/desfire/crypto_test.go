package desfire

import (
	"bytes"
	"crypto/des"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" is the standard CRC self-check string. Poly 0x8408 with
	// init 0x6363 and no final XOR is the ISO/IEC 14443-3 Type A CRC, whose
	// check value is 0xBF05.
	got := crc16([]byte("123456789"))
	if got != 0xBF05 {
		t.Fatalf("crc16 check value: got 0x%04X, want 0xBF05", got)
	}
	if crc16(nil) != 0x6363 {
		t.Fatalf("crc16 of empty input should equal the init value, got 0x%04X", crc16(nil))
	}
}

func TestCRC32MatchesIEEEReflected(t *testing.T) {
	// The IEEE 802.3 CRC-32 of "123456789" is 0xCBF43926; this variant
	// skips the final XOR, so its value is the complement, 0x340BC6D9.
	got := crc32([]byte("123456789"))
	assert.Equal(t, uint32(0x340BC6D9), got)
}

func TestCRC16LEAndCRC32LEByteOrder(t *testing.T) {
	check := []byte("123456789")
	v16 := crc16LE(check)
	require.Len(t, v16, 2)
	assert.Equal(t, []byte{0x05, 0xBF}, v16)
	v32 := crc32LE(check)
	require.Len(t, v32, 4)
	assert.Equal(t, []byte{0xD9, 0xC6, 0x0B, 0x34}, v32)
}

func TestExpandTo3DESKeyShapes(t *testing.T) {
	key8 := bytes.Repeat([]byte{0xAA}, 8)
	k, err := expandTo3DESKey(key8)
	require.NoError(t, err)
	assert.Equal(t, key8, k[0:8])
	assert.Equal(t, key8, k[8:16])
	assert.Equal(t, key8, k[16:24])

	key16 := append(bytes.Repeat([]byte{0xAA}, 8), bytes.Repeat([]byte{0xBB}, 8)...)
	k, err = expandTo3DESKey(key16)
	require.NoError(t, err)
	assert.Equal(t, key16[0:8], k[16:24])

	_, err = expandTo3DESKey(make([]byte, 10))
	require.Error(t, err)
}

func TestTDESCBCRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := make([]byte, 8)
	plain := []byte("ABCDEFGH") // one 8-byte block

	ct, err := tdesCBCEncrypt(key, iv, plain)
	require.NoError(t, err)
	pt, err := tdesCBCDecrypt(key, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plain, pt)
}

func TestAESCBCRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x22}, 16)
	iv := make([]byte, 16)
	plain := bytes.Repeat([]byte{0x01}, 16)

	ct, err := aesCBCEncrypt(key, iv, plain)
	require.NoError(t, err)
	pt, err := aesCBCDecrypt(key, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plain, pt)
}

func TestLegacySendReceiveRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, 16)
	plain := []byte("16-byte-payload!")
	require.Equal(t, 0, len(plain)%8)

	// Both modes decrypt, so neither undoes the other. The card recovers
	// SEND-mode data by enciphering each block and XORing it with the
	// previous ciphertext block, starting from a zero IV.
	enc, err := legacyEncryptSend(key, plain)
	require.NoError(t, err)
	key24, err := expandTo3DESKey(key)
	require.NoError(t, err)
	block, err := des.NewTripleDESCipher(key24)
	require.NoError(t, err)
	recovered := make([]byte, len(enc))
	prev := make([]byte, 8)
	for i := 0; i < len(enc); i += 8 {
		block.Encrypt(recovered[i:i+8], enc[i:i+8])
		copy(recovered[i:i+8], xor8(recovered[i:i+8], prev))
		prev = enc[i : i+8]
	}
	assert.Equal(t, plain, recovered)

	// RECEIVE mode undoes the card's ordinary CBC encryption from a zero IV.
	cardEnc, err := tdesCBCEncrypt(key, make([]byte, 8), plain)
	require.NoError(t, err)
	dec, err := legacyDecryptReceive(key, cardEnc)
	require.NoError(t, err)
	assert.Equal(t, plain, dec)
}

func TestRetailMACDeterministicAndSensitiveToInput(t *testing.T) {
	key := bytes.Repeat([]byte{0x44}, 16)
	mac1, err := retailMAC(key, []byte("hello"))
	require.NoError(t, err)
	mac2, err := retailMAC(key, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, mac1, mac2)
	assert.Len(t, mac1, 4)

	mac3, err := retailMAC(key, []byte("hellp"))
	require.NoError(t, err)
	assert.NotEqual(t, mac1, mac3)
}

func TestCMACAES128MatchesRFC4493Vector(t *testing.T) {
	// RFC 4493 example 2: 16-byte message.
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	msg, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172a")
	want, _ := hex.DecodeString("070a16b46b4d4144f79bdd9dd04a287c")

	got, err := cmacAES128(key, msg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCMACAES128EmptyMessageVector(t *testing.T) {
	// RFC 4493 example 1: empty message.
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	want, _ := hex.DecodeString("bb1d6929e95937287fa37d129b756746")

	got, err := cmacAES128(key, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCMAC3K3DESDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x55}, 24)
	tag1, err := cmac3K3DES(key, []byte("some command bytes"))
	require.NoError(t, err)
	assert.Len(t, tag1, 8)

	tag2, err := cmac3K3DES(key, []byte("some command bytes"))
	require.NoError(t, err)
	assert.Equal(t, tag1, tag2)
}

func TestTruncateToMAC(t *testing.T) {
	tag16 := bytes.Repeat([]byte{0x01}, 16)
	assert.Equal(t, tag16[:8], truncateToMAC(tag16))

	tag8 := bytes.Repeat([]byte{0x02}, 8)
	assert.Equal(t, tag8, truncateToMAC(tag8))
}

func TestRotateLeftRight1(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	left := rotateLeft1(in)
	assert.Equal(t, []byte{2, 3, 4, 1}, left)
	assert.Equal(t, in, rotateRight1(left))
}

func TestZeroPadToBlock(t *testing.T) {
	assert.Equal(t, make([]byte, 8), zeroPadToBlock(nil, 8))
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, zeroPadToBlock([]byte{1, 2, 3}, 8))
	full := bytes.Repeat([]byte{9}, 8)
	assert.Equal(t, full, zeroPadToBlock(full, 8))
}

func TestApplyAndClearDESKeyVersion(t *testing.T) {
	key := bytes.Repeat([]byte{0xFE}, 8) // LSBs already 0
	versioned := applyDESKeyVersion(key, 0xFF)
	for _, b := range versioned {
		if b&0x01 != 1 {
			t.Fatalf("expected every LSB set for version 0xFF, got %08b", b)
		}
	}
	cleared := clearDESVersionBits(versioned)
	assert.Equal(t, key, cleared)
}
