package desfire

// Command INS bytes.
const (
	insSelectApplication    = 0x5A
	insChangeKeySettings    = 0x54
	insGetKeyVersion        = 0x64
	insCreateApplication    = 0xCA
	insDeleteApplication    = 0xDA
	insGetApplicationIDs    = 0x6A
	insFreeMemory           = 0x6E
	insGetKeySettings       = 0x45
	insFormatPICC           = 0xFC
	insGetVersion           = 0x60
	insGetCardUID           = 0x51
	insGetFileIDs           = 0x6F
	insGetFileSettings      = 0xF5
	insChangeFileSettings   = 0x5F
	insCreateStdDataFile    = 0xCD
	insCreateBackupDataFile = 0xCB
	insCreateValueFile      = 0xCC
	insCreateLinearRecord   = 0xC1
	insCreateCyclicRecord   = 0xC0
	insDeleteFile           = 0xDF
	insReadData             = 0xBD
	insReadRecords          = 0xBB
	insWriteData            = 0x3D
	insWriteRecord          = 0x3B
	insGetValue             = 0x6C
	insCredit               = 0x0C
	insDebit                = 0xDC
	insLimitedCredit        = 0x1C
	insClearRecordFile      = 0xEB
	insCommitTransaction    = 0xC7
	insAbortTransaction     = 0xA7
)

func buildAPDU(ins byte, body []byte) []byte {
	apdu := make([]byte, 0, 6+len(body))
	apdu = append(apdu, 0x90, ins, 0x00, 0x00, byte(len(body)))
	apdu = append(apdu, body...)
	apdu = append(apdu, 0x00)
	return apdu
}

// runCommand builds the APDU header for ins+body, wraps it per outMode,
// transmits (collecting 0xAF continuation frames), and unwraps the final
// aggregate per inMode. It is the shared shape every fixed-wrapping
// command in this file follows.
func runCommand(card Card, sess *Session, ins byte, body []byte, off int, outMode, inMode CommunicationSetting, expectedLen int) ([]byte, error) {
	wrapped, err := Preprocess(sess, buildAPDU(ins, body), off, outMode)
	if err != nil {
		return nil, err
	}
	data, status, err := exchangeChained(card, wrapped)
	if err != nil {
		return nil, err
	}
	sess.lastStatus = status
	return Postprocess(sess, ins, data, status, expectedLen, inMode)
}

// writeCommand wraps the whole logical body once (so ENCIPHERED framing
// sees the complete plaintext) then chunks the wrapped bytes across
// multiple 52-byte frames.
func writeCommand(card Card, sess *Session, ins byte, off int, body []byte, mode CommunicationSetting) error {
	wrapped, err := Preprocess(sess, buildAPDU(ins, body), off, mode)
	if err != nil {
		return err
	}
	wrappedBody := wrapped[5 : len(wrapped)-1]
	data, status, err := writeChunked(card, ins, wrappedBody)
	if err != nil {
		return err
	}
	sess.lastStatus = status
	_, err = Postprocess(sess, ins, data, status, 0, CommPlain)
	return err
}

func fileSettingsFor(card Card, sess *Session, fileNo byte) (*FileSettings, error) {
	if !sess.IsAuthenticated() {
		return nil, &NotAuthenticated{}
	}
	if fs, ok := sess.cachedFileSettings(fileNo); ok {
		return fs, nil
	}
	return GetFileSettings(card, sess, fileNo)
}

// SelectApplication selects aid (00 00 00 for PICC level) and, on success,
// invalidates the file cache and resets authentication, mirroring what the
// card itself does. The command is sent unwrapped and the response carries
// no MAC, so only its status is checked.
func SelectApplication(card Card, sess *Session, aid [3]byte) error {
	body := []byte{aid[0], aid[1], aid[2]}
	_, status, err := exchangeChained(card, buildAPDU(insSelectApplication, body))
	if err != nil {
		return err
	}
	sess.lastStatus = status
	if status != StatusOK {
		sess.resetAuth()
		return &UnexpectedStatus{Cmd: insSelectApplication, Status: status}
	}
	sess.selectApplication(aid)
	return nil
}

// GetKeySettings returns the application's key-settings byte and the
// max-keys/key-type byte.
func GetKeySettings(card Card, sess *Session) (keySettings byte, maxKeys byte, err error) {
	data, err := runCommand(card, sess, insGetKeySettings, nil, 0, CommPlain, CommPlain, 0)
	if err != nil {
		return 0, 0, err
	}
	if len(data) < 2 {
		return 0, 0, &InvalidArgument{Reason: "GetKeySettings response too short"}
	}
	return data[0], data[1], nil
}

// ChangeKeySettings updates the application's key-settings byte. The body
// is sent ENCIPHERED; only success/failure is verified in PLAIN mode.
func ChangeKeySettings(card Card, sess *Session, newSettings byte) error {
	_, err := runCommand(card, sess, insChangeKeySettings, []byte{newSettings}, 0, CommEnciphered, CommPlain, 0)
	return err
}

// GetKeyVersion returns the stored version byte of keyNo.
func GetKeyVersion(card Card, sess *Session, keyNo byte) (byte, error) {
	data, err := runCommand(card, sess, insGetKeyVersion, []byte{keyNo}, 0, CommPlain, CommPlain, 0)
	if err != nil {
		return 0, err
	}
	if len(data) < 1 {
		return 0, &InvalidArgument{Reason: "GetKeyVersion response too short"}
	}
	return data[0], nil
}

// CreateApplication creates an application at aid with the given
// key-settings byte and key-count/type byte.
func CreateApplication(card Card, sess *Session, aid [3]byte, keySettings, numKeys byte) error {
	body := []byte{aid[0], aid[1], aid[2], keySettings, numKeys}
	_, err := runCommand(card, sess, insCreateApplication, body, 0, CommPlain, CommPlain, 0)
	return err
}

// DeleteApplication removes the application at aid.
func DeleteApplication(card Card, sess *Session, aid [3]byte) error {
	body := []byte{aid[0], aid[1], aid[2]}
	_, err := runCommand(card, sess, insDeleteApplication, body, 0, CommPlain, CommPlain, 0)
	return err
}

// GetApplicationIDs lists every application AID on the card. The response
// grows across as many 0xAF frames as the card needs; no fixed staging
// buffer is imposed.
func GetApplicationIDs(card Card, sess *Session) ([][3]byte, error) {
	data, err := runCommand(card, sess, insGetApplicationIDs, nil, 0, CommPlain, CommPlain, 0)
	if err != nil {
		return nil, err
	}
	if len(data)%3 != 0 {
		return nil, &InvalidArgument{Reason: "GetApplicationIds response not a multiple of 3 bytes"}
	}
	ids := make([][3]byte, 0, len(data)/3)
	for i := 0; i < len(data); i += 3 {
		ids = append(ids, [3]byte{data[i], data[i+1], data[i+2]})
	}
	return ids, nil
}

// FreeMemory returns the number of free bytes remaining on the card.
func FreeMemory(card Card, sess *Session) (uint32, error) {
	data, err := runCommand(card, sess, insFreeMemory, nil, 0, CommPlain, CommPlain, 0)
	if err != nil {
		return 0, err
	}
	if len(data) < 3 {
		return 0, &InvalidArgument{Reason: "FreeMemory response too short"}
	}
	return le24(data), nil
}

// FormatPICC erases all applications and files, restoring factory state.
func FormatPICC(card Card, sess *Session) error {
	_, err := runCommand(card, sess, insFormatPICC, nil, 0, CommPlain, CommPlain, 0)
	return err
}

// GetVersion returns the raw concatenated hardware/software/UID
// information blocks (the card replies across three 0xAF frames). Unlike
// every other PLAIN response, the final frame carries no CMAC trailer even
// under an authenticated 3K3DES/AES session, so this bypasses the generic
// Postprocess in favor of a tolerant verifier.
func GetVersion(card Card, sess *Session) ([]byte, error) {
	wrapped, err := Preprocess(sess, buildAPDU(insGetVersion, nil), 0, CommPlain)
	if err != nil {
		return nil, err
	}
	data, status, err := exchangeChained(card, wrapped)
	if err != nil {
		return nil, err
	}
	sess.lastStatus = status
	if status != StatusOK {
		sess.resetAuth()
		return nil, &UnexpectedStatus{Cmd: insGetVersion, Status: status}
	}
	if sess.keyType.UsesSessionIV() {
		return verifyCMACTrailerOptional(sess, data, status), nil
	}
	return data, nil
}

// GetCardUID returns the card's 7-byte UID. The response is always
// ENCIPHERED regardless of the session's other access rights.
func GetCardUID(card Card, sess *Session) ([]byte, error) {
	return runCommand(card, sess, insGetCardUID, nil, 0, CommPlain, CommEnciphered, 7)
}

// GetFileIDs lists the file numbers present in the selected application.
func GetFileIDs(card Card, sess *Session) ([]byte, error) {
	return runCommand(card, sess, insGetFileIDs, nil, 0, CommPlain, CommPlain, 0)
}

// GetFileSettings fetches and caches fileNo's settings.
func GetFileSettings(card Card, sess *Session, fileNo byte) (*FileSettings, error) {
	if !sess.IsAuthenticated() {
		return nil, &NotAuthenticated{}
	}
	data, err := runCommand(card, sess, insGetFileSettings, []byte{fileNo}, 0, CommPlain, CommPlain, 0)
	if err != nil {
		return nil, err
	}
	fs, err := ParseFileSettings(data)
	if err != nil {
		return nil, err
	}
	sess.cacheFileSettings(fileNo, fs)
	return fs, nil
}

// ChangeFileSettings rewrites fileNo's communication setting and access
// rights. Its wrapping mode follows its own CAR-only policy, not the
// general resolver, and off=1 keeps fileNo itself in the clear.
func ChangeFileSettings(card Card, sess *Session, fileNo byte, newComm CommunicationSetting, newAR1, newAR2 byte) error {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessChangeAccessRights)
	if err != nil {
		return err
	}
	body := []byte{fileNo, byte(newComm), newAR1, newAR2}
	if _, err := runCommand(card, sess, insChangeFileSettings, body, 1, mode, CommPlain, 0); err != nil {
		return err
	}
	sess.invalidateFileCache()
	return nil
}

// CreateStdDataFile creates a standard (non-backed-up) data file.
func CreateStdDataFile(card Card, sess *Session, fileNo byte, comm CommunicationSetting, ar1, ar2 byte, size uint32) error {
	_, err := runCommand(card, sess, insCreateStdDataFile, buildStdDataFileBody(fileNo, comm, ar1, ar2, size), 0, CommPlain, CommPlain, 0)
	return err
}

// CreateBackupDataFile creates a backed-up data file (writes are only
// visible after CommitTransaction).
func CreateBackupDataFile(card Card, sess *Session, fileNo byte, comm CommunicationSetting, ar1, ar2 byte, size uint32) error {
	_, err := runCommand(card, sess, insCreateBackupDataFile, buildStdDataFileBody(fileNo, comm, ar1, ar2, size), 0, CommPlain, CommPlain, 0)
	return err
}

// CreateValueFile creates a value file with the given bounds, initial
// value, and limited-credit policy.
func CreateValueFile(card Card, sess *Session, fileNo byte, comm CommunicationSetting, ar1, ar2 byte, lower, upper, value uint32, limitedCreditEnabled bool) error {
	body := buildValueFileBody(fileNo, comm, ar1, ar2, lower, upper, value, limitedCreditEnabled)
	_, err := runCommand(card, sess, insCreateValueFile, body, 0, CommPlain, CommPlain, 0)
	return err
}

// CreateLinearRecordFile creates a record file that rejects writes once
// maxRecords is reached.
func CreateLinearRecordFile(card Card, sess *Session, fileNo byte, comm CommunicationSetting, ar1, ar2 byte, recordSize, maxRecords uint32) error {
	body := buildRecordFileBody(fileNo, comm, ar1, ar2, recordSize, maxRecords)
	_, err := runCommand(card, sess, insCreateLinearRecord, body, 0, CommPlain, CommPlain, 0)
	return err
}

// CreateCyclicRecordFile creates a record file that overwrites its oldest
// record once maxRecords is reached.
func CreateCyclicRecordFile(card Card, sess *Session, fileNo byte, comm CommunicationSetting, ar1, ar2 byte, recordSize, maxRecords uint32) error {
	body := buildRecordFileBody(fileNo, comm, ar1, ar2, recordSize, maxRecords)
	_, err := runCommand(card, sess, insCreateCyclicRecord, body, 0, CommPlain, CommPlain, 0)
	return err
}

// DeleteFile removes fileNo from the selected application.
func DeleteFile(card Card, sess *Session, fileNo byte) error {
	_, err := runCommand(card, sess, insDeleteFile, []byte{fileNo}, 0, CommPlain, CommPlain, 0)
	return err
}

// ReadData reads length bytes starting at offset from a standard or
// backup data file (length=0 reads from offset to the end of the file).
func ReadData(card Card, sess *Session, fileNo byte, offset, length uint32) ([]byte, error) {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return nil, err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessRead)
	if err != nil {
		return nil, err
	}
	expectedLen := int(length)
	if length == 0 && fs.Size > offset {
		expectedLen = int(fs.Size - offset)
	}
	body := append([]byte{fileNo}, le24Bytes(offset)...)
	body = append(body, le24Bytes(length)...)
	return runCommand(card, sess, insReadData, body, 0, CommPlain, mode, expectedLen)
}

// ReadRecords reads recordCount records starting at recordOffset from a
// linear or cyclic record file (recordCount=0 reads every record from
// recordOffset to the most recent).
func ReadRecords(card Card, sess *Session, fileNo byte, recordOffset, recordCount uint32) ([]byte, error) {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return nil, err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessRead)
	if err != nil {
		return nil, err
	}
	count := recordCount
	if count == 0 && fs.CurrentRecords > recordOffset {
		count = fs.CurrentRecords - recordOffset
	}
	expectedLen := int(count * fs.RecordSize)

	body := append([]byte{fileNo}, le24Bytes(recordOffset)...)
	body = append(body, le24Bytes(recordCount)...)
	return runCommand(card, sess, insReadRecords, body, 0, CommPlain, mode, expectedLen)
}

// WriteData writes data at offset into a standard or backup data file.
func WriteData(card Card, sess *Session, fileNo byte, offset uint32, data []byte) error {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessWrite)
	if err != nil {
		return err
	}
	body := append([]byte{fileNo}, le24Bytes(offset)...)
	body = append(body, le24Bytes(uint32(len(data)))...)
	body = append(body, data...)
	return writeCommand(card, sess, insWriteData, 7, body, mode)
}

// WriteRecord appends data at offset within the current (uncommitted)
// record of a linear or cyclic record file.
func WriteRecord(card Card, sess *Session, fileNo byte, offset uint32, data []byte) error {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessWrite)
	if err != nil {
		return err
	}
	body := append([]byte{fileNo}, le24Bytes(offset)...)
	body = append(body, le24Bytes(uint32(len(data)))...)
	body = append(body, data...)
	return writeCommand(card, sess, insWriteRecord, 7, body, mode)
}

// GetValue returns a value file's current signed 32-bit value.
func GetValue(card Card, sess *Session, fileNo byte) (int32, error) {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return 0, err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessRead)
	if err != nil {
		return 0, err
	}
	data, err := runCommand(card, sess, insGetValue, []byte{fileNo}, 0, CommPlain, mode, 4)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, &InvalidArgument{Reason: "GetValue response too short"}
	}
	return int32(le32(data)), nil
}

// Credit adds amount to a value file, pending CommitTransaction.
func Credit(card Card, sess *Session, fileNo byte, amount uint32) error {
	return valueOp(card, sess, insCredit, fileNo, amount)
}

// Debit subtracts amount from a value file, pending CommitTransaction.
func Debit(card Card, sess *Session, fileNo byte, amount uint32) error {
	return valueOp(card, sess, insDebit, fileNo, amount)
}

// LimitedCredit adds amount to a value file even without a Credit access
// right, when the file's limited-credit policy allows it.
func LimitedCredit(card Card, sess *Session, fileNo byte, amount uint32) error {
	return valueOp(card, sess, insLimitedCredit, fileNo, amount)
}

func valueOp(card Card, sess *Session, ins byte, fileNo byte, amount uint32) error {
	fs, err := fileSettingsFor(card, sess, fileNo)
	if err != nil {
		return err
	}
	mode, err := ResolveAccess(fs, fileNo, sess.keyNo, AccessWrite)
	if err != nil {
		return err
	}
	body := append([]byte{fileNo}, le32Bytes(amount)...)
	_, err = runCommand(card, sess, ins, body, 1, mode, CommPlain, 0)
	return err
}

// ClearRecordFile discards every record, pending CommitTransaction.
func ClearRecordFile(card Card, sess *Session, fileNo byte) error {
	if !sess.IsAuthenticated() {
		return &NotAuthenticated{}
	}
	_, err := runCommand(card, sess, insClearRecordFile, []byte{fileNo}, 0, CommPlain, CommPlain, 0)
	return err
}

// CommitTransaction makes every pending backup/value/record write visible.
func CommitTransaction(card Card, sess *Session) error {
	if !sess.IsAuthenticated() {
		return &NotAuthenticated{}
	}
	_, err := runCommand(card, sess, insCommitTransaction, nil, 0, CommPlain, CommPlain, 0)
	return err
}

// AbortTransaction discards every pending backup/value/record write.
func AbortTransaction(card Card, sess *Session) error {
	if !sess.IsAuthenticated() {
		return &NotAuthenticated{}
	}
	_, err := runCommand(card, sess, insAbortTransaction, nil, 0, CommPlain, CommPlain, 0)
	return err
}
