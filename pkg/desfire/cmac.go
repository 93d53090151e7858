package desfire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
)

// cmac computes RFC 4493 CMAC (generalized to any block size) over msg
// using block, returning a tag the size of the cipher's block. DESFire
// EV1 uses this construction with two different underlying ciphers: AES-128
// (16-byte blocks, for AES sessions) and 3K3DES (8-byte blocks, for 3K3DES
// sessions). Parameterizing on cipher.Block lets one implementation serve
// both, rather than duplicating the subkey/padding logic per cipher.
func cmac(block cipher.Block, msg []byte) []byte {
	bs := block.BlockSize()
	k1, k2 := cmacSubkeys(block)

	n := (len(msg) + bs - 1) / bs
	if n == 0 {
		n = 1
	}
	lastComplete := len(msg) != 0 && len(msg)%bs == 0

	last := make([]byte, bs)
	if lastComplete {
		copy(last, msg[(n-1)*bs:])
		xorInto(last, k1)
	} else {
		remain := len(msg) - (n-1)*bs
		if remain > 0 {
			copy(last, msg[(n-1)*bs:])
		}
		last[remain] = 0x80
		xorInto(last, k2)
	}

	x := make([]byte, bs)
	y := make([]byte, bs)
	for i := 0; i < n-1; i++ {
		start := i * bs
		xorBytes(y, x, msg[start:start+bs])
		block.Encrypt(x, y)
	}
	xorBytes(y, x, last)
	block.Encrypt(x, y)
	return x
}

// cmacAES128 computes 16-byte AES CMAC over msg.
func cmacAES128(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cmac(block, msg), nil
}

// cmac3K3DES computes 8-byte CMAC over msg using 3K3DES as the underlying
// block cipher, the variant DESFire EV1 uses for 3K3DES sessions.
func cmac3K3DES(key, msg []byte) ([]byte, error) {
	key24, err := expandTo3DESKey(key)
	if err != nil {
		return nil, err
	}
	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, err
	}
	return cmac(block, msg), nil
}

// truncateToMAC keeps only the first 8 bytes of a CMAC tag: DESFire EV1
// appends at most 8 MAC bytes regardless of whether the underlying cipher
// produced a 16-byte (AES) or 8-byte (3K3DES) tag.
func truncateToMAC(tag []byte) []byte {
	if len(tag) <= 8 {
		return tag
	}
	return tag[:8]
}

func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	bs := block.BlockSize()
	const rb87 = 0x87
	const rb1B = 0x1B

	var rb byte
	switch bs {
	case 16:
		rb = rb87
	case 8:
		rb = rb1B
	default:
		rb = rb87
	}

	zero := make([]byte, bs)
	l := make([]byte, bs)
	block.Encrypt(l, zero)

	k1 = make([]byte, bs)
	leftShift1(k1, l)
	if (l[0] & 0x80) != 0 {
		k1[bs-1] ^= rb
	}

	k2 = make([]byte, bs)
	leftShift1(k2, k1)
	if (k1[0] & 0x80) != 0 {
		k2[bs-1] ^= rb
	}
	return k1, k2
}

func leftShift1(dst, src []byte) {
	var carry byte
	for i := len(src) - 1; i >= 0; i-- {
		b := src[i]
		dst[i] = (b << 1) | carry
		carry = (b >> 7) & 1
	}
}

func xorBytes(dst, a, b []byte) {
	for i := 0; i < len(a) && i < len(b); i++ {
		dst[i] = a[i] ^ b[i]
	}
}

func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}
