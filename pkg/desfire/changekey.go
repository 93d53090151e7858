package desfire

const insChangeKey = 0xC4

// ChangeKey installs newKey (of newType, carrying version) as keyNo in the
// currently selected application. oldKey is required whenever keyNo is not
// the currently authenticated key; it is ignored (may be nil) when
// changing the authenticated key itself. This is the most delicate
// command in the set: the plaintext layout, CRC coverage, and even which
// key encrypts the command all depend on the *authenticating* session's
// KeyType, not newType.
func ChangeKey(card Card, sess *Session, keyNo byte, newType KeyType, newKey, oldKey []byte, version byte) error {
	if err := validateKeyLength(newType, newKey); err != nil {
		return err
	}
	if !sess.IsAuthenticated() {
		return &NotAuthenticated{}
	}

	wireKeyNo := keyNo
	if sess.AtPICCLevel() {
		if keyNo != 0 {
			return &InvalidArgument{Reason: "PICC-level ChangeKey requires keyNo 0"}
		}
		switch newType {
		case KeyTypeTKTDES:
			wireKeyNo = keyNo | 0x40
		case KeyTypeAES:
			wireKeyNo = keyNo | 0x80
		}
	}

	pt := keyPlaintext(newType, newKey, version)

	changingOtherKey := (keyNo&0x0F) != sess.keyNo
	if changingOtherKey {
		if len(oldKey) == 0 {
			return &InvalidArgument{Reason: "old_key required when changing a key other than the authenticated one"}
		}
		for i := range pt {
			pt[i] ^= oldKey[i%len(oldKey)]
		}
	}

	sessionUsesIV := sess.keyType.UsesSessionIV()
	var withCRC []byte
	if !sessionUsesIV {
		withCRC = append(append([]byte{}, pt...), crc16LE(pt)...)
		if changingOtherKey {
			withCRC = append(withCRC, crc16LE(newKey)...)
		}
	} else {
		crcInput := append([]byte{insChangeKey, wireKeyNo}, pt...)
		withCRC = append(append([]byte{}, pt...), crc32LE(crcInput)...)
		if changingOtherKey {
			withCRC = append(withCRC, crc32LE(newKey)...)
		}
	}

	blockSize := sess.keyType.BlockSize()
	padded := zeroPadToBlock(withCRC, blockSize)

	var cipher []byte
	var err error
	if sessionUsesIV {
		cipher, err = cbcEncrypt(sess.keyType, sess.sessionKey, sess.iv, padded)
	} else {
		cipher, err = legacyEncryptSend(sess.sessionKey, padded)
	}
	if err != nil {
		return err
	}
	if sessionUsesIV {
		sess.iv = lastBlock(cipher, blockSize)
	}

	body := append([]byte{wireKeyNo}, cipher...)
	data, status, err := exchangeChained(card, buildAPDU(insChangeKey, body))
	if err != nil {
		return err
	}
	sess.lastStatus = status

	if status == StatusOK && (keyNo&0x0F) == sess.keyNo {
		sess.resetAuth()
		return nil
	}
	_, err = Postprocess(sess, insChangeKey, data, status, 0, CommPlain)
	return err
}

// keyPlaintext builds the new-key plaintext block: DES keys are
// duplicated to 16 bytes, 2K3DES/3K3DES pass through unchanged, and the
// key version is written in — bit-stolen into the first 8 bytes for every
// DES-family type, or appended as a 17th byte for AES.
func keyPlaintext(newType KeyType, newKey []byte, version byte) []byte {
	switch newType {
	case KeyTypeDES:
		dup := append(append([]byte{}, newKey...), newKey...)
		return applyDESKeyVersion(dup, version)
	case KeyTypeTDES, KeyTypeTKTDES:
		return applyDESKeyVersion(newKey, version)
	case KeyTypeAES:
		return append(append([]byte{}, newKey...), version)
	default:
		return append([]byte{}, newKey...)
	}
}
