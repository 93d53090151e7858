package desfire

import (
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// expandTo3DESKey turns an 8-, 16-, or 24-byte DESFire key into the 24-byte
// K1‖K2‖K3 form crypto/des.NewTripleDESCipher requires: 8-byte DES keys
// become K1‖K1‖K1, 16-byte 2K3DES keys become K1‖K2‖K1, 24-byte 3K3DES keys
// pass through unchanged.
func expandTo3DESKey(key []byte) ([]byte, error) {
	switch len(key) {
	case 8:
		out := make([]byte, 24)
		copy(out[0:8], key)
		copy(out[8:16], key)
		copy(out[16:24], key)
		return out, nil
	case 16:
		out := make([]byte, 24)
		copy(out[0:16], key)
		copy(out[16:24], key[0:8])
		return out, nil
	case 24:
		out := make([]byte, 24)
		copy(out, key)
		return out, nil
	default:
		return nil, &InvalidArgument{Reason: fmt.Sprintf("3DES key must be 8, 16, or 24 bytes, got %d", len(key))}
	}
}

// tdesCBCEncrypt / tdesCBCDecrypt perform 3DES-CBC with an explicit IV. A
// plain DES key or a 2K3DES key is first expanded to the 24-byte form.
func tdesCBCEncrypt(key, iv, data []byte) ([]byte, error) {
	key24, err := expandTo3DESKey(key)
	if err != nil {
		return nil, err
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("3DES CBC: data not block aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func tdesCBCDecrypt(key, iv, data []byte) ([]byte, error) {
	key24, err := expandTo3DESKey(key)
	if err != nil {
		return nil, err
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("3DES CBC: data not block aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// desECBEncrypt / desECBDecrypt run a single-DES block transform, used only
// by the legacy SEND/RECEIVE dual-mode wrapper below.
func desECBEncrypt(key8, block8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8)
	c.Encrypt(out, block8)
	return out, nil
}

func desECBDecrypt(key8, block8 []byte) ([]byte, error) {
	c, err := des.NewCipher(key8)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8)
	c.Decrypt(out, block8)
	return out, nil
}

func xor8(a, b []byte) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// legacyEncryptSend implements the MF3ICD40 compatibility quirk: the PCD
// always *decrypts* to encipher data. SEND mode runs
// decrypt(k, ciphertext_prev XOR block) chained block by block, starting
// from an all-zero IV that is never carried in session state.
func legacyEncryptSend(key, data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("legacy send: data not block aligned")
	}
	out := make([]byte, len(data))
	iv := make([]byte, 8)
	for i := 0; i < len(data); i += 8 {
		xored := xor8(data[i:i+8], iv)
		dec, err := tdesECBDecryptBlock(key, xored)
		if err != nil {
			return nil, err
		}
		copy(out[i:i+8], dec)
		copy(iv, out[i:i+8])
	}
	return out, nil
}

// legacyDecryptReceive implements the RECEIVE-mode counterpart: decrypt
// each block then XOR with the previous received (ciphertext) block, again
// from a zero IV reset for every call. This is ordinary CBC decryption, so
// it undoes the card's CBC encryption, not legacyEncryptSend.
func legacyDecryptReceive(key, data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("legacy receive: data not block aligned")
	}
	out := make([]byte, len(data))
	iv := make([]byte, 8)
	for i := 0; i < len(data); i += 8 {
		dec, err := tdesECBDecryptBlock(key, data[i:i+8])
		if err != nil {
			return nil, err
		}
		plain := xor8(dec, iv)
		copy(out[i:i+8], plain)
		copy(iv, data[i:i+8])
	}
	return out, nil
}

// tdesECBDecryptBlock decrypts a single 8-byte block with the session's
// DES or 2K3DES key (expanded to 24 bytes for crypto/des.NewTripleDESCipher).
func tdesECBDecryptBlock(key, block8 []byte) ([]byte, error) {
	key24, err := expandTo3DESKey(key)
	if err != nil {
		return nil, err
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8)
	block.Decrypt(out, block8)
	return out, nil
}

// retailMAC computes the ISO/IEC 9797-1 MAC Algorithm 3 ("retail MAC") the
// spec calls for in legacy MACED mode: CBC-MAC the zero-padded body with
// single DES under K1, then finish with DES-decrypt(K2) / DES-encrypt(K1)
// on the last block. Only the first 4 bytes of the result are used as the
// wire MAC.
func retailMAC(key []byte, data []byte) ([]byte, error) {
	key24, err := expandTo3DESKey(key)
	if err != nil {
		return nil, err
	}
	k1 := key24[0:8]
	k2 := key24[8:16]

	padded := zeroPadToBlock(data, 8)

	iv := make([]byte, 8)
	for i := 0; i < len(padded); i += 8 {
		xored := xor8(padded[i:i+8], iv)
		enc, err := desECBEncrypt(k1, xored)
		if err != nil {
			return nil, err
		}
		copy(iv, enc)
	}

	last, err := desECBDecrypt(k2, iv)
	if err != nil {
		return nil, err
	}
	last, err = desECBEncrypt(k1, last)
	if err != nil {
		return nil, err
	}
	return last[:4], nil
}

// zeroPadToBlock pads data with zero bytes up to the next multiple of
// blockSize. DESFire EV1 legacy framing (MAC input and ENCIPHERED
// plaintext) zero-pads rather than using ISO 9797 bit padding.
func zeroPadToBlock(data []byte, blockSize int) []byte {
	rem := len(data) % blockSize
	if rem == 0 {
		if len(data) == 0 {
			return make([]byte, blockSize)
		}
		return data
	}
	out := make([]byte, len(data)+(blockSize-rem))
	copy(out, data)
	return out
}
