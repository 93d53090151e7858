package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/barnettlynn/desfire-go/pkg/desfire"
)

func parseKeyType(name string) (desfire.KeyType, error) {
	switch strings.ToLower(name) {
	case "des":
		return desfire.KeyTypeDES, nil
	case "2k3des", "tdes":
		return desfire.KeyTypeTDES, nil
	case "3k3des", "tktdes":
		return desfire.KeyTypeTKTDES, nil
	case "aes":
		return desfire.KeyTypeAES, nil
	default:
		return 0, fmt.Errorf("unknown key type %q", name)
	}
}

func parseAID(s string) ([3]byte, error) {
	var aid [3]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 3 {
		return aid, fmt.Errorf("aid must be 3 hex bytes, got %q", s)
	}
	copy(aid[:], b)
	return aid, nil
}

// connectAndAuth opens a reader connection and, if a key was supplied on
// the command line, authenticates against it. The returned Session is
// unauthenticated when keyHex is empty.
func connectAndAuth() (*desfire.Connection, *desfire.Session, error) {
	conn, err := desfire.Connect(readerIndex)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	sess := desfire.NewSession()
	if keyHex == "" {
		return conn, sess, nil
	}

	kt, err := parseKeyType(keyTypeName)
	if err != nil {
		conn.Disconnect(nil)
		return nil, nil, err
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		conn.Disconnect(nil)
		return nil, nil, fmt.Errorf("key: %w", err)
	}
	if _, err := desfire.Authenticate(conn, sess, kt, byte(keyNo), key); err != nil {
		conn.Disconnect(nil)
		return nil, nil, fmt.Errorf("authenticate: %w", err)
	}
	return conn, sess, nil
}
