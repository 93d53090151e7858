package desfire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authenticatedSession(t *testing.T, keyType KeyType, key []byte) *Session {
	t.Helper()
	sess := NewSession()
	sess.installAuthenticated(keyType, 0, key)
	return sess
}

func TestPreprocessPlainModernAppendsNoBytesButUpdatesIV(t *testing.T) {
	sess := authenticatedSession(t, KeyTypeAES, bytes.Repeat([]byte{0x10}, 16))
	apdu := buildAPDU(insGetVersion, nil)

	wrapped, err := Preprocess(sess, apdu, 0, CommPlain)
	require.NoError(t, err)
	assert.Equal(t, apdu, wrapped)
	assert.NotNil(t, sess.iv)
}

func TestPreprocessPlainLegacyPassesThrough(t *testing.T) {
	sess := authenticatedSession(t, KeyTypeDES, bytes.Repeat([]byte{0x10}, 8))
	apdu := buildAPDU(insGetVersion, nil)

	wrapped, err := Preprocess(sess, apdu, 0, CommPlain)
	require.NoError(t, err)
	assert.Equal(t, apdu, wrapped)
}

func TestPreprocessMacedLegacyAppends4ByteMAC(t *testing.T) {
	sess := authenticatedSession(t, KeyTypeDES, bytes.Repeat([]byte{0x10}, 8))
	apdu := buildAPDU(insCreateApplication, []byte{0x01, 0x02, 0x03, 0x0F, 0x01})

	wrapped, err := Preprocess(sess, apdu, 0, CommMACed)
	require.NoError(t, err)
	assert.Equal(t, len(apdu)+4, len(wrapped))
}

func TestPreprocessEncipheredModernRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x20}, 16)
	sess := authenticatedSession(t, KeyTypeAES, key)
	payload := []byte{0xAA, 0xBB, 0xCC}
	apdu := buildAPDU(insChangeKeySettings, payload)

	wrapped, err := Preprocess(sess, apdu, 0, CommEnciphered)
	require.NoError(t, err)

	lc := int(wrapped[4])
	ciphertext := wrapped[5 : 5+lc]

	recv := authenticatedSession(t, KeyTypeAES, key) // independent session, same iv-at-this-point
	recv.iv = make([]byte, 16)
	plaintext, err := aesCBCDecrypt(key, recv.iv, ciphertext)
	require.NoError(t, err)

	want := crc32LE(prepend(insChangeKeySettings, payload))
	assert.Equal(t, payload, plaintext[:len(payload)])
	assert.Equal(t, want, plaintext[len(payload):len(payload)+4])
}

func TestPostprocessRejectsNonOKStatusAndResetsAuth(t *testing.T) {
	sess := authenticatedSession(t, KeyTypeAES, bytes.Repeat([]byte{0x30}, 16))
	_, err := Postprocess(sess, insGetVersion, nil, StatusPermissionDenied, 0, CommPlain)
	require.Error(t, err)
	var us *UnexpectedStatus
	require.ErrorAs(t, err, &us)
	assert.Equal(t, byte(StatusPermissionDenied), us.Status)
	assert.False(t, sess.IsAuthenticated())
}

func TestPlainModernRoundTripThroughPostprocess(t *testing.T) {
	key := bytes.Repeat([]byte{0x40}, 16)
	sess := authenticatedSession(t, KeyTypeAES, key)

	apdu := buildAPDU(insGetFileIDs, nil)
	_, err := Preprocess(sess, apdu, 0, CommPlain)
	require.NoError(t, err)
	ivAfterCommand := append([]byte{}, sess.iv...)

	responseBody := []byte{0x01, 0x02}
	tag, err := cmacFor(sess, append(append([]byte{}, responseBody...), StatusOK))
	require.NoError(t, err)
	wire := append(append([]byte{}, responseBody...), truncateToMAC(tag)...)

	got, err := Postprocess(sess, insGetFileIDs, wire, StatusOK, 0, CommPlain)
	require.NoError(t, err)
	assert.Equal(t, responseBody, got)
	assert.Equal(t, tag, sess.iv)
	assert.NotEqual(t, ivAfterCommand, sess.iv)
}

func TestPlainModernRoundTripRejectsTamperedMAC(t *testing.T) {
	key := bytes.Repeat([]byte{0x50}, 16)
	receiver := authenticatedSession(t, KeyTypeAES, key)

	wire := []byte{0x01, 0x02, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := Postprocess(receiver, insGetFileIDs, wire, StatusOK, 0, CommPlain)
	require.Error(t, err)
	var cm *CmacMismatch
	require.ErrorAs(t, err, &cm)
}

func TestEncipheredRoundTripModernPostprocess(t *testing.T) {
	key := bytes.Repeat([]byte{0x60}, 16)
	sess := authenticatedSession(t, KeyTypeAES, key)

	plaintext := []byte{0x01, 0x02, 0x03, 0x04}
	plainWithCRC := append(append([]byte{}, plaintext...), crc32LE(append(append([]byte{}, plaintext...), StatusOK))...)
	padded := zeroPadToBlock(plainWithCRC, 16)
	ciphertext, err := aesCBCEncrypt(key, sess.iv, padded)
	require.NoError(t, err)

	got, err := Postprocess(sess, insGetCardUID, ciphertext, StatusOK, len(plaintext), CommEnciphered)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncipheredLegacyRoundTripPostprocess(t *testing.T) {
	key := bytes.Repeat([]byte{0x70}, 16)
	sess := authenticatedSession(t, KeyTypeDES, key)

	plaintext := []byte{0x0A, 0x0B}
	plainWithCRC := append(append([]byte{}, plaintext...), crc16LE(plaintext)...)
	padded := zeroPadToBlock(plainWithCRC, 8)
	// The card enciphers its reply with ordinary CBC from a zero IV.
	ciphertext, err := tdesCBCEncrypt(key, make([]byte, 8), padded)
	require.NoError(t, err)

	got, err := Postprocess(sess, insGetCardUID, ciphertext, StatusOK, len(plaintext), CommEnciphered)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestIVContinuityAcrossEncipheredCommands(t *testing.T) {
	// Property: after each ENCIPHERED exchange on a 3K3DES/AES session,
	// the running IV becomes the last ciphertext block, carried into the
	// next command's encryption.
	key := bytes.Repeat([]byte{0x80}, 16)
	sess := authenticatedSession(t, KeyTypeAES, key)

	apdu1 := buildAPDU(insChangeKeySettings, []byte{0x0F})
	wrapped1, err := Preprocess(sess, apdu1, 0, CommEnciphered)
	require.NoError(t, err)
	lc1 := int(wrapped1[4])
	ct1 := wrapped1[5 : 5+lc1]
	ivAfterFirst := append([]byte{}, sess.iv...)
	assert.Equal(t, lastBlock(ct1, 16), ivAfterFirst)

	apdu2 := buildAPDU(insChangeKeySettings, []byte{0x0F})
	wrapped2, err := Preprocess(sess, apdu2, 0, CommEnciphered)
	require.NoError(t, err)
	lc2 := int(wrapped2[4])
	ct2 := wrapped2[5 : 5+lc2]

	// Re-deriving with the pre-second-call IV must reproduce ct2 exactly.
	plainWithCRC := append(append([]byte{}, []byte{0x0F}...), crc32LE(prepend(insChangeKeySettings, []byte{0x0F}))...)
	padded := zeroPadToBlock(plainWithCRC, 16)
	expectCT2, err := aesCBCEncrypt(key, ivAfterFirst, padded)
	require.NoError(t, err)
	assert.Equal(t, expectCT2, ct2)
}
