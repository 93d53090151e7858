package desfire

import (
	"bytes"
	"crypto/rand"
	"io"
	"log/slog"
)

// randReader is the entropy source for RndA. Tests substitute a
// deterministic reader for reproducible vectors; production code never
// touches it.
var randReader io.Reader = rand.Reader

// splitStatus interprets a DESFire response status word. Every DESFire
// response carries SW1=0x91; ok is false if that invariant doesn't hold
// (an ISO-level error unrelated to the DESFire command set).
func splitStatus(sw uint16) (status byte, ok bool) {
	if byte(sw>>8) != 0x91 {
		return 0, false
	}
	return byte(sw), true
}

func cbcEncrypt(keyType KeyType, key, iv, data []byte) ([]byte, error) {
	if keyType == KeyTypeAES {
		return aesCBCEncrypt(key, iv, data)
	}
	return tdesCBCEncrypt(key, iv, data)
}

func cbcDecrypt(keyType KeyType, key, iv, data []byte) ([]byte, error) {
	if keyType == KeyTypeAES {
		return aesCBCDecrypt(key, iv, data)
	}
	return tdesCBCDecrypt(key, iv, data)
}

func lastBlock(data []byte, blockSize int) []byte {
	return data[len(data)-blockSize:]
}

// Authenticate performs the four-variant DESFire EV1 mutual authentication
// for keyType against keyNo using key, and on success installs the derived
// session key and zero IV into sess.
func Authenticate(card Card, sess *Session, keyType KeyType, keyNo byte, key []byte) ([]byte, error) {
	if err := validateKeyLength(keyType, key); err != nil {
		return nil, err
	}
	cryptoKey := key
	if keyType != KeyTypeAES {
		cryptoKey = clearDESVersionBits(key)
	}

	blockSize := keyType.BlockSize()
	nonceLen := keyType.ChallengeLength()
	ins := keyType.authIns()

	apdu1 := []byte{0x90, ins, 0x00, 0x00, 0x01, keyNo, 0x00}
	resp1, sw1, err := Transmit(card, apdu1)
	if err != nil {
		return nil, err
	}
	status1, ok := splitStatus(sw1)
	if !ok || status1 != StatusAdditionalFrame || len(resp1) != nonceLen {
		return nil, &AuthenticationRejected{Step: "challenge"}
	}

	iv0 := make([]byte, blockSize)
	randB, err := cbcDecrypt(keyType, cryptoKey, iv0, resp1)
	if err != nil {
		return nil, err
	}

	randA := make([]byte, nonceLen)
	if _, err := io.ReadFull(randReader, randA); err != nil {
		return nil, err
	}

	randBRot := rotateLeft1(randB)
	plain := make([]byte, 0, 2*nonceLen)
	plain = append(plain, randA...)
	plain = append(plain, randBRot...)

	iv1 := lastBlock(resp1, blockSize)
	tok2, err := cbcEncrypt(keyType, cryptoKey, iv1, plain)
	if err != nil {
		return nil, err
	}

	apdu2 := make([]byte, 0, 6+len(tok2))
	apdu2 = append(apdu2, 0x90, 0xAF, 0x00, 0x00, byte(len(tok2)))
	apdu2 = append(apdu2, tok2...)
	apdu2 = append(apdu2, 0x00)

	resp2, sw2, err := Transmit(card, apdu2)
	if err != nil {
		return nil, err
	}
	status2, ok := splitStatus(sw2)
	if !ok || status2 != StatusOK || len(resp2) != nonceLen {
		return nil, &AuthenticationRejected{Step: "response"}
	}

	iv2 := lastBlock(tok2, blockSize)
	dec, err := cbcDecrypt(keyType, cryptoKey, iv2, resp2)
	if err != nil {
		return nil, err
	}
	randACheck := rotateRight1(dec)
	if !bytes.Equal(randACheck, randA) {
		return nil, &AuthenticationRejected{Step: "response"}
	}

	sessionKey := deriveSessionKey(keyType, randA, randB)
	sess.installAuthenticated(keyType, keyNo&0x0F, sessionKey)

	slog.Debug("desfire authenticate", "key_type", keyType.String(), "key_no", keyNo)

	return sessionKey, nil
}

// deriveSessionKey implements the per-KeyType byte concatenation that
// turns the two nonces into a session key.
func deriveSessionKey(keyType KeyType, randA, randB []byte) []byte {
	switch keyType {
	case KeyTypeDES:
		out := make([]byte, 0, 8)
		out = append(out, randA[0:4]...)
		out = append(out, randB[0:4]...)
		return out
	case KeyTypeTDES:
		out := make([]byte, 0, 16)
		out = append(out, randA[0:4]...)
		out = append(out, randB[0:4]...)
		out = append(out, randA[4:8]...)
		out = append(out, randB[4:8]...)
		return out
	case KeyTypeTKTDES:
		out := make([]byte, 0, 24)
		out = append(out, randA[0:4]...)
		out = append(out, randB[0:4]...)
		out = append(out, randA[6:10]...)
		out = append(out, randB[6:10]...)
		out = append(out, randA[12:16]...)
		out = append(out, randB[12:16]...)
		return out
	case KeyTypeAES:
		out := make([]byte, 0, 16)
		out = append(out, randA[0:4]...)
		out = append(out, randB[0:4]...)
		out = append(out, randA[12:16]...)
		out = append(out, randB[12:16]...)
		return out
	default:
		return nil
	}
}
