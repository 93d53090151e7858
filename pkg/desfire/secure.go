package desfire

import "bytes"

// CommunicationSetting is the per-file, per-operation wrapping mode a
// DESFire command APDU and its response are wrapped in.
type CommunicationSetting byte

const (
	CommPlain      CommunicationSetting = 0x00
	CommMACed      CommunicationSetting = 0x01
	CommEnciphered CommunicationSetting = 0x03
)

func (m CommunicationSetting) String() string {
	switch m {
	case CommPlain:
		return "plain"
	case CommMACed:
		return "maced"
	case CommEnciphered:
		return "enciphered"
	default:
		return "unknown"
	}
}

func cmacFor(sess *Session, buf []byte) ([]byte, error) {
	if sess.keyType == KeyTypeAES {
		return cmacAES128(sess.sessionKey, buf)
	}
	return cmac3K3DES(sess.sessionKey, buf)
}

// Preprocess wraps an outbound APDU {0x90, INS, 0, 0, Lc, body…, 0x00}
// according to mode, threading and updating sess's running IV along the
// way. off is the count of leading body bytes that must stay untouched
// (e.g. the key-number prefix of Credit) — it only affects ENCIPHERED,
// which splices ciphertext back in starting at byte 5+off.
func Preprocess(sess *Session, apdu []byte, off int, mode CommunicationSetting) ([]byte, error) {
	if len(apdu) < 6 {
		return nil, &InvalidArgument{Reason: "apdu too short to wrap"}
	}
	ins := apdu[1]
	lc := int(apdu[4])
	if 5+lc+1 != len(apdu) {
		return nil, &InvalidArgument{Reason: "apdu length does not match Lc"}
	}
	body := apdu[5 : 5+lc]

	switch mode {
	case CommPlain:
		if !sess.keyType.UsesSessionIV() {
			return apdu, nil
		}
		tag, err := cmacFor(sess, prepend(ins, body))
		if err != nil {
			return nil, err
		}
		sess.iv = tag
		return apdu, nil

	case CommMACed:
		if !sess.keyType.UsesSessionIV() {
			mac, err := retailMAC(sess.sessionKey, body)
			if err != nil {
				return nil, err
			}
			return spliceAppend(apdu, lc, mac), nil
		}
		tag, err := cmacFor(sess, prepend(ins, body))
		if err != nil {
			return nil, err
		}
		sess.iv = tag
		return spliceAppend(apdu, lc, truncateToMAC(tag)), nil

	case CommEnciphered:
		if off < 0 || off > len(body) {
			return nil, &InvalidArgument{Reason: "enciphered offset exceeds body length"}
		}
		clear := body[:off]
		toEncrypt := body[off:]
		blockSize := sess.keyType.BlockSize()

		var plaintext []byte
		if sess.keyType.UsesSessionIV() {
			plaintext = append(append([]byte{}, toEncrypt...), crc32LE(prepend(ins, toEncrypt))...)
		} else {
			plaintext = append(append([]byte{}, toEncrypt...), crc16LE(toEncrypt)...)
		}
		padded := zeroPadToBlock(plaintext, blockSize)

		ciphertext, err := encryptBody(sess, padded)
		if err != nil {
			return nil, err
		}
		if sess.keyType.UsesSessionIV() {
			sess.iv = lastBlock(ciphertext, blockSize)
		}

		newBody := append(append([]byte{}, clear...), ciphertext...)
		return spliceBody(apdu, newBody), nil

	default:
		return nil, &InvalidArgument{Reason: "unknown communication setting"}
	}
}

// Postprocess unwraps a final aggregated response (data with SW1/SW2
// already removed by the caller, plus the raw status byte) according to
// mode. cmd is only used to annotate a non-OK status as UnexpectedStatus.
func Postprocess(sess *Session, cmd byte, data []byte, status byte, expectedLen int, mode CommunicationSetting) ([]byte, error) {
	if status != StatusOK {
		sess.resetAuth()
		return nil, &UnexpectedStatus{Cmd: cmd, Status: status}
	}

	switch mode {
	case CommPlain:
		if !sess.keyType.UsesSessionIV() {
			return data, nil
		}
		return verifyCMACTrailer(sess, data, status)

	case CommMACed:
		if !sess.keyType.UsesSessionIV() {
			return verifyRetailMACTrailer(sess, data)
		}
		return verifyCMACTrailer(sess, data, status)

	case CommEnciphered:
		return decryptAndVerifyCRC(sess, data, status, expectedLen)

	default:
		return nil, &InvalidArgument{Reason: "unknown communication setting"}
	}
}

func verifyCMACTrailer(sess *Session, data []byte, status byte) ([]byte, error) {
	if len(data) < 8 {
		sess.resetAuth()
		return nil, &CmacMismatch{}
	}
	body := data[:len(data)-8]
	trailer := data[len(data)-8:]

	full, err := cmacFor(sess, append(append([]byte{}, body...), status))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(truncateToMAC(full), trailer) {
		sess.resetAuth()
		return nil, &CmacMismatch{}
	}
	sess.iv = full
	return body, nil
}

// verifyCMACTrailerOptional behaves like verifyCMACTrailer but tolerates a
// missing trailer instead of erroring: GetVersion's last frame carries no
// CMAC even under an authenticated 3K3DES/AES session, unlike every other
// PLAIN response. If the trailer is absent or doesn't verify, data is
// returned unchanged and the session IV is left untouched.
func verifyCMACTrailerOptional(sess *Session, data []byte, status byte) []byte {
	if len(data) < 8 {
		return data
	}
	body := data[:len(data)-8]
	trailer := data[len(data)-8:]

	full, err := cmacFor(sess, append(append([]byte{}, body...), status))
	if err != nil || !bytes.Equal(truncateToMAC(full), trailer) {
		return data
	}
	sess.iv = full
	return body
}

func verifyRetailMACTrailer(sess *Session, data []byte) ([]byte, error) {
	if len(data) < 4 {
		sess.resetAuth()
		return nil, &CmacMismatch{}
	}
	body := data[:len(data)-4]
	trailer := data[len(data)-4:]

	want, err := retailMAC(sess.sessionKey, body)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(want, trailer) {
		sess.resetAuth()
		return nil, &CmacMismatch{}
	}
	return body, nil
}

func decryptAndVerifyCRC(sess *Session, ciphertext []byte, status byte, expectedLen int) ([]byte, error) {
	blockSize := sess.keyType.BlockSize()

	plaintext, err := decryptBody(sess, ciphertext)
	if err != nil {
		return nil, err
	}
	if sess.keyType.UsesSessionIV() {
		sess.iv = lastBlock(ciphertext, blockSize)
	}

	if expectedLen < 0 {
		sess.resetAuth()
		return nil, &InvalidArgument{Reason: "negative expected plaintext length"}
	}

	if sess.keyType.UsesSessionIV() {
		if expectedLen+4 > len(plaintext) {
			sess.resetAuth()
			return nil, &CrcMismatch{}
		}
		want := crc32LE(append(append([]byte{}, plaintext[:expectedLen]...), status))
		if !bytes.Equal(want, plaintext[expectedLen:expectedLen+4]) {
			sess.resetAuth()
			return nil, &CrcMismatch{}
		}
	} else {
		if expectedLen+2 > len(plaintext) {
			sess.resetAuth()
			return nil, &CrcMismatch{}
		}
		want := crc16LE(plaintext[:expectedLen])
		if !bytes.Equal(want, plaintext[expectedLen:expectedLen+2]) {
			sess.resetAuth()
			return nil, &CrcMismatch{}
		}
	}
	return plaintext[:expectedLen], nil
}

// encryptBody / decryptBody dispatch ENCIPHERED framing to the legacy
// SEND/RECEIVE dual-mode wrapper for DES/2K3DES sessions, or plain CBC
// under the session IV for 3K3DES/AES sessions.
func encryptBody(sess *Session, padded []byte) ([]byte, error) {
	switch sess.keyType {
	case KeyTypeAES:
		return aesCBCEncrypt(sess.sessionKey, sess.iv, padded)
	case KeyTypeTKTDES:
		return tdesCBCEncrypt(sess.sessionKey, sess.iv, padded)
	default:
		return legacyEncryptSend(sess.sessionKey, padded)
	}
}

func decryptBody(sess *Session, ciphertext []byte) ([]byte, error) {
	switch sess.keyType {
	case KeyTypeAES:
		return aesCBCDecrypt(sess.sessionKey, sess.iv, ciphertext)
	case KeyTypeTKTDES:
		return tdesCBCDecrypt(sess.sessionKey, sess.iv, ciphertext)
	default:
		return legacyDecryptReceive(sess.sessionKey, ciphertext)
	}
}

func prepend(b byte, rest []byte) []byte {
	out := make([]byte, 0, 1+len(rest))
	out = append(out, b)
	out = append(out, rest...)
	return out
}

// spliceAppend inserts extra bytes between the body and the trailing Le
// byte of apdu, bumping Lc by len(extra).
func spliceAppend(apdu []byte, lc int, extra []byte) []byte {
	out := make([]byte, 0, len(apdu)+len(extra))
	out = append(out, apdu[:4]...)
	out = append(out, byte(lc+len(extra)))
	out = append(out, apdu[5:5+lc]...)
	out = append(out, extra...)
	out = append(out, 0x00)
	return out
}

// spliceBody replaces apdu's whole body with newBody, recomputing Lc.
func spliceBody(apdu []byte, newBody []byte) []byte {
	out := make([]byte, 0, 5+len(newBody)+1)
	out = append(out, apdu[:4]...)
	out = append(out, byte(len(newBody)))
	out = append(out, newBody...)
	out = append(out, 0x00)
	return out
}
