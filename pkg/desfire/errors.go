package desfire

import (
	"errors"
	"fmt"
)

// errShortISOResponse flags a response whose SW1 byte is not the 0x91 every
// DESFire response carries.
var errShortISOResponse = errors.New("response SW1 is not 0x91")

// DESFire responses always carry SW1 = 0x91; SW2 carries the native status
// code. These are the codes the core distinguishes by name; anything else
// surfaces as UnexpectedStatus with the raw byte preserved.
const (
	StatusOK              = 0x00 // OPERATION_OK
	StatusAdditionalFrame = 0xAF // ADDITIONAL_FRAME — more data follows
	StatusPermissionDenied = 0x9D
	StatusParameterError   = 0x9E
	StatusAuthError        = 0xAE
	StatusLengthError      = 0x7E
	StatusBoundaryError    = 0xBE
	StatusCommandAborted   = 0xCA
	StatusDuplicate        = 0xDE
	StatusFileNotFound     = 0xF0
	StatusAppNotFound      = 0xA0
	StatusNoSuchKey        = 0x40
	StatusIntegrityError   = 0x1E
	StatusIllegalCommand   = 0x1C
	StatusCountError       = 0xCE
	StatusMemoryError      = 0xEE
)

// TransportError wraps a failure to exchange an APDU with the reader/card
// (as opposed to a card-level status-word failure).
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// UnexpectedStatus is returned whenever a card response's terminal status
// (SW2, once 0xAF continuation frames are exhausted) is not StatusOK for a
// command that expects unconditional success.
type UnexpectedStatus struct {
	Cmd    byte
	Status byte
}

func (e *UnexpectedStatus) Error() string {
	return fmt.Sprintf("command 0x%02X returned status 0x%02X (%s)", e.Cmd, e.Status, statusDescription(e.Status))
}

func statusDescription(status byte) string {
	switch status {
	case StatusOK:
		return "operation ok"
	case StatusAdditionalFrame:
		return "additional frame"
	case StatusPermissionDenied:
		return "permission denied"
	case StatusParameterError:
		return "parameter error"
	case StatusAuthError:
		return "authentication error"
	case StatusLengthError:
		return "length error"
	case StatusBoundaryError:
		return "boundary error"
	case StatusCommandAborted:
		return "command aborted"
	case StatusDuplicate:
		return "duplicate"
	case StatusFileNotFound:
		return "file not found"
	case StatusAppNotFound:
		return "application not found"
	case StatusNoSuchKey:
		return "no such key"
	case StatusIntegrityError:
		return "integrity error"
	case StatusIllegalCommand:
		return "illegal command"
	case StatusCountError:
		return "count error"
	case StatusMemoryError:
		return "memory error"
	default:
		return "unknown status"
	}
}

// CmacMismatch is returned by postprocess when a response's MAC trailer does
// not match what the session recomputes — a CMAC for 3K3DES/AES sessions, or
// the legacy 4-byte retail MAC for DES/2K3DES sessions.
type CmacMismatch struct{}

func (e *CmacMismatch) Error() string { return "cmac verification failed" }

// CrcMismatch is returned by postprocess when an ENCIPHERED response's CRC
// trailer does not match the recomputed CRC of the decrypted plaintext.
type CrcMismatch struct{}

func (e *CrcMismatch) Error() string { return "crc verification failed" }

// AuthenticationRejected is returned when the card's nonce does not match
// what mutual authentication expects (a forged or wrong-keyed card).
type AuthenticationRejected struct {
	Step string // "challenge" or "response"
}

func (e *AuthenticationRejected) Error() string {
	return fmt.Sprintf("authentication rejected at %s", e.Step)
}

// InvalidArgument flags a caller error: a bad key length for the chosen
// KeyType, an illegal keyNo at PICC level, or an out-of-range Ultralight C
// page.
type InvalidArgument struct {
	Reason string
}

func (e *InvalidArgument) Error() string { return "invalid argument: " + e.Reason }

// AccessDenied is returned by the access-rights resolver when none of a
// file's relevant AR nibbles match the authenticated key number or free
// access (0xE).
type AccessDenied struct {
	FileNo byte
}

func (e *AccessDenied) Error() string {
	return fmt.Sprintf("access denied to file %d", e.FileNo)
}

// NotAuthenticated is returned when a secure-messaging command is attempted
// on a Session that has not completed Authenticate (or was reset by a
// prior failure, SelectApplication, or ChangeKey of the active key).
type NotAuthenticated struct{}

func (e *NotAuthenticated) Error() string { return "session is not authenticated" }

// ClassifyStatusError extracts (cmd, status, ok) from an UnexpectedStatus
// anywhere in err's chain, the way a caller inspects "why did this fail"
// without string-matching Error() text.
func ClassifyStatusError(err error) (cmd byte, status byte, ok bool) {
	var se *UnexpectedStatus
	if errors.As(err, &se) {
		return se.Cmd, se.Status, true
	}
	return 0, 0, false
}
