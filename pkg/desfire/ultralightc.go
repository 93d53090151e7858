package desfire

import (
	"bytes"
	"io"
)

// MIFARE Ultralight C is a smaller sibling protocol: plain 3DES (2-key,
// 16-byte) mutual authentication and a flat page-addressed memory, no
// secure-messaging wrapper, no application/file model. It shares only the
// 3DES primitive with the DESFire EV1 engine.

func buildACR(data []byte) []byte {
	apdu := make([]byte, 0, 5+len(data)+1)
	apdu = append(apdu, 0xFF, 0xEF, 0x00, 0x00, byte(len(data)))
	apdu = append(apdu, data...)
	apdu = append(apdu, 0x00)
	return apdu
}

const ulcAuthIns = 0x1A

// AuthenticateUltralightC performs the 3DES mutual authentication that
// unlocks the card's restricted pages for subsequent ReadPageUltralightC /
// WritePageUltralightC calls.
func AuthenticateUltralightC(card Card, key []byte) error {
	if len(key) != 16 {
		return &InvalidArgument{Reason: "ultralight c key must be 16 bytes"}
	}

	resp1, sw1, err := Transmit(card, buildACR([]byte{ulcAuthIns, 0x00}))
	if err != nil {
		return err
	}
	if sw1 != 0x9000 || len(resp1) != 8 {
		return &AuthenticationRejected{Step: "challenge"}
	}

	iv0 := make([]byte, 8)
	randB, err := tdesCBCDecrypt(key, iv0, resp1)
	if err != nil {
		return err
	}

	randA := make([]byte, 8)
	if _, err := io.ReadFull(randReader, randA); err != nil {
		return err
	}

	plain := append(append([]byte{}, randA...), rotateLeft1(randB)...)
	iv1 := lastBlock(resp1, 8)
	tok2, err := tdesCBCEncrypt(key, iv1, plain)
	if err != nil {
		return err
	}

	resp2, sw2, err := Transmit(card, buildACR(append([]byte{ulcAuthIns, 0x00}, tok2...)))
	if err != nil {
		return err
	}
	if sw2 != 0x9000 || len(resp2) != 8 {
		return &AuthenticationRejected{Step: "response"}
	}

	iv2 := lastBlock(tok2, 8)
	dec, err := tdesCBCDecrypt(key, iv2, resp2)
	if err != nil {
		return err
	}
	if !bytes.Equal(rotateRight1(dec), randA) {
		return &AuthenticationRejected{Step: "response"}
	}
	return nil
}

// ReadPageUltralightC reads the 4-byte page at pageIdx (0..43).
func ReadPageUltralightC(card Card, pageIdx byte) ([4]byte, error) {
	var out [4]byte
	if pageIdx > 43 {
		return out, &InvalidArgument{Reason: "ultralight c page out of range (0..43)"}
	}
	data, sw, err := Transmit(card, []byte{0xFF, 0xB0, 0x00, pageIdx, 0x04})
	if err != nil {
		return out, err
	}
	if sw != 0x9000 || len(data) != 4 {
		return out, &UnexpectedStatus{Cmd: 0xB0, Status: byte(sw)}
	}
	copy(out[:], data)
	return out, nil
}

// WritePageUltralightC writes data to the user-memory page at pageIdx
// (4..39). Key pages (44..47) go through ChangeKeyUltralightC instead,
// which observes a fixed byte permutation.
func WritePageUltralightC(card Card, pageIdx byte, data [4]byte) error {
	if pageIdx < 4 || pageIdx > 39 {
		return &InvalidArgument{Reason: "ultralight c user page out of range (4..39)"}
	}
	return writePageUltralightC(card, pageIdx, data)
}

func writePageUltralightC(card Card, pageIdx byte, data [4]byte) error {
	apdu := append([]byte{0xFF, 0xD6, 0x00, pageIdx, 0x04}, data[:]...)
	_, sw, err := Transmit(card, apdu)
	if err != nil {
		return err
	}
	if sw != 0x9000 {
		return &UnexpectedStatus{Cmd: 0xD6, Status: byte(sw)}
	}
	return nil
}

// ChangeKeyUltralightC writes a new 16-byte 3DES key to pages 0x2C..0x2F,
// observing a fixed wire byte order (each page's bytes are not a simple
// forward slice of the key).
func ChangeKeyUltralightC(card Card, key []byte) error {
	if len(key) != 16 {
		return &InvalidArgument{Reason: "ultralight c key must be 16 bytes"}
	}
	pages := []struct {
		idx  byte
		data [4]byte
	}{
		{0x2C, [4]byte{key[7], key[6], key[5], key[4]}},
		{0x2D, [4]byte{key[3], key[2], key[1], key[0]}},
		{0x2E, [4]byte{key[15], key[14], key[13], key[12]}},
		{0x2F, [4]byte{key[11], key[10], key[9], key[8]}},
	}
	for _, p := range pages {
		if err := writePageUltralightC(card, p.idx, p.data); err != nil {
			return err
		}
	}
	return nil
}
