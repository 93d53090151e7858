package desfire

import (
	"fmt"

	"github.com/ebfe/scard"
)

// Connection wraps a PC/SC card connection and implements Card.
type Connection struct {
	ctx       *scard.Context
	card      *scard.Card
	Reader    string
	ReaderIdx int
}

// Connect establishes a connection to the reader at readerIndex (0-based,
// per scard.Context.ListReaders order).
func Connect(readerIndex int) (*Connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no PC/SC readers found: %v", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	reader := readers[readerIndex]
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect to %q: %w", reader, err)
	}

	return &Connection{
		ctx:       ctx,
		card:      card,
		Reader:    reader,
		ReaderIdx: readerIndex,
	}, nil
}

// Disconnect releases the card and the PC/SC context. It is idempotent and
// also zeroizes sess's key material. sess may be nil if no session was ever
// authenticated.
func (c *Connection) Disconnect(sess *Session) error {
	if sess != nil {
		sess.Zeroize()
	}
	if c == nil {
		return nil
	}
	var err error
	if c.card != nil {
		err = c.card.Disconnect(scard.LeaveCard)
		c.card = nil
	}
	if c.ctx != nil {
		if rerr := c.ctx.Release(); err == nil {
			err = rerr
		}
		c.ctx = nil
	}
	return err
}

// Transmit implements Card.
func (c *Connection) Transmit(apdu []byte) ([]byte, error) {
	if c == nil || c.card == nil {
		return nil, fmt.Errorf("connection not established")
	}
	return c.card.Transmit(apdu)
}
