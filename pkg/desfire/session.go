package desfire

// Session holds everything a DESFire EV1 secure session needs, threaded
// through every command: the authenticated key identity, the running
// secure-messaging IV, and a one-entry file-settings cache (the only piece
// of state the access-rights resolver needs beyond the key number).
//
// A Session has a single owner. Nothing in this package synchronizes
// concurrent access to one Session — per spec, a card is a half-duplex,
// single-session device, and callers sharing a Session across goroutines
// must supply their own mutex around the full preprocess→transmit→
// postprocess sequence (including multi-frame loops).
type Session struct {
	authenticated bool
	keyType       KeyType
	keyNo         byte
	sessionKey    []byte
	iv            []byte

	aid [3]byte // 00 00 00 = PICC level; updated by SelectApplication

	fileCacheValid bool
	fileNo         byte
	fileSettings   *FileSettings

	lastStatus byte
}

// NewSession returns a fresh, unauthenticated session at PICC level.
func NewSession() *Session {
	return &Session{}
}

// IsAuthenticated reports whether a key has successfully completed mutual
// authentication since the last reset.
func (s *Session) IsAuthenticated() bool { return s.authenticated }

// KeyType returns the authenticated key's type; only meaningful when
// IsAuthenticated is true.
func (s *Session) KeyType() KeyType { return s.keyType }

// KeyNo returns the authenticated key number (low nibble valid).
func (s *Session) KeyNo() byte { return s.keyNo }

// AID returns the currently selected application identifier.
func (s *Session) AID() [3]byte { return s.aid }

// AtPICCLevel reports whether the PICC-level (master) application is
// currently selected.
func (s *Session) AtPICCLevel() bool { return s.aid == [3]byte{} }

// LastStatus returns the most recent raw DESFire status byte seen by
// postprocess, for diagnostics.
func (s *Session) LastStatus() byte { return s.lastStatus }

// installAuthenticated records a freshly established session key after
// Authenticate succeeds.
func (s *Session) installAuthenticated(keyType KeyType, keyNo byte, sessionKey []byte) {
	s.authenticated = true
	s.keyType = keyType
	s.keyNo = keyNo
	s.sessionKey = append([]byte(nil), sessionKey...)
	s.iv = make([]byte, keyType.BlockSize())
}

// resetAuth clears the authenticated identity and IV without touching the
// selected AID or file cache: this is what every non-OK postprocess status
// and every ChangeKey-of-the-authenticated-key triggers.
func (s *Session) resetAuth() {
	s.authenticated = false
	s.keyType = KeyTypeDES
	s.keyNo = 0
	zeroize(s.sessionKey)
	s.sessionKey = nil
	zeroize(s.iv)
	s.iv = nil
}

// selectApplication updates the selected AID, invalidates the file cache
// (file settings are per-application), and resets authentication — mirrors
// what SelectApplication does on the card itself.
func (s *Session) selectApplication(aid [3]byte) {
	s.aid = aid
	s.fileCacheValid = false
	s.fileSettings = nil
	s.resetAuth()
}

// cachedFileSettings returns the cached settings for fileNo if present and
// still valid.
func (s *Session) cachedFileSettings(fileNo byte) (*FileSettings, bool) {
	if s.fileCacheValid && s.fileNo == fileNo {
		return s.fileSettings, true
	}
	return nil, false
}

// cacheFileSettings stores fs as the settings for fileNo.
func (s *Session) cacheFileSettings(fileNo byte, fs *FileSettings) {
	s.fileNo = fileNo
	s.fileSettings = fs
	s.fileCacheValid = true
}

// invalidateFileCache forces the next access-rights resolution to re-fetch
// file settings, used after ChangeFileSettings.
func (s *Session) invalidateFileCache() {
	s.fileCacheValid = false
	s.fileSettings = nil
}

// Zeroize wipes key material from memory. Call it from Disconnect; it
// leaves the Session otherwise unauthenticated and safe to discard or
// reuse after a fresh Authenticate.
func (s *Session) Zeroize() {
	zeroize(s.sessionKey)
	zeroize(s.iv)
	s.sessionKey = nil
	s.iv = nil
	s.authenticated = false
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
