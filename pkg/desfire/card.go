package desfire

import "fmt"

// Card abstracts one APDU exchange with a contactless card. Implementations
// connect/disconnect a reader channel elsewhere (see Connection in pcsc.go);
// Transmit is the only capability the core needs.
//
// A response must include the trailing SW1 SW2 status bytes, exactly as a
// PC/SC driver returns them.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// Transmit sends apdu to card and splits the response into its data
// portion and its two-byte status word (SW1<<8 | SW2).
func Transmit(card Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, &TransportError{Cause: err}
	}
	if len(resp) < 2 {
		return nil, 0, &TransportError{Cause: fmt.Errorf("short response: %d bytes", len(resp))}
	}
	sw := uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	return resp[:len(resp)-2], sw, nil
}
