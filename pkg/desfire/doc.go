/*
Package desfire drives MIFARE DESFire EV1 and MIFARE Ultralight C cards over
ISO/IEC 7816-4 APDUs. It provides:

  - The four-variant DESFire EV1 mutual authentication protocol (DES,
    2K3DES, 3K3DES, AES) establishing a session key and initial IV.
  - The PLAIN/MACED/ENCIPHERED secure-messaging pipeline that wraps every
    command and unwraps every response, threading a single running IV
    through the whole session.
  - One function per DESFire command: application and file lifecycle,
    data/value/record file I/O, credit/debit/commit, key management.
  - The access-rights resolver that derives a file's required
    communication mode from its AR nibbles and the authenticated key.
  - 0xAF multi-frame read/write chaining.
  - A smaller, independent MIFARE Ultralight C authenticate + page-write
    flow sharing only the 3DES primitive with the above.

A reader/card transport is supplied by the caller through the Card
interface; Connection (pcsc.go) is the one PC/SC-backed implementation.

# Access rights encoding

Each file's two AR bytes pack four 4-bit key-slot references:

	ar1 = (ReadWrite << 4) | ChangeAccessRights
	ar2 = (Read << 4)      | Write

	0x0-0xD = key slot number (must be the authenticated key)
	0xE     = free access (no authentication required)
	0xF     = denied (operation never permitted)

ResolveAccess turns (file settings, authenticated key number, operation
category) into the CommunicationSetting a command must actually use —
which may differ from the file's declared comm_setting when free access
applies.

# Session lifetime

A Session is created by a successful Authenticate* call and is torn down
(authentication cleared, IV and session key zeroized) by SelectApplication,
by ChangeKey of the currently authenticated key, by any non-OK response
status, or explicitly via Session.Zeroize on disconnect. A Session has a
single owner: nothing in this package synchronizes concurrent access to
one Session, matching the card's own strictly single-session, half-duplex
nature.
*/
package desfire
