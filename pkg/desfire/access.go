package desfire

// AccessCategory names the operation whose required communication mode the
// resolver derives from a file's AccessRights.
type AccessCategory int

const (
	AccessRead AccessCategory = iota
	AccessWrite
	AccessReadWrite
	AccessChangeAccessRights
)

const (
	arFreeAccess byte = 0x0E
	arDenied     byte = 0x0F
)

// ResolveAccess derives the communication mode required for category on
// fileNo, given the authenticated key number and the file's cached
// settings. ChangeFileSettings follows its own policy (CAR nibble only);
// every other category checks the category's relevant AR nibbles against
// keyNo, then against free access.
func ResolveAccess(fs *FileSettings, fileNo, keyNo byte, category AccessCategory) (CommunicationSetting, error) {
	if category == AccessChangeAccessRights {
		car := fs.AR1 & 0x0F
		switch car {
		case keyNo:
			return CommEnciphered, nil
		case arFreeAccess:
			return CommPlain, nil
		default:
			return 0, &AccessDenied{FileNo: fileNo}
		}
	}

	for _, nibble := range relevantNibbles(fs, category) {
		if nibble == keyNo {
			return fs.CommSetting, nil
		}
	}
	for _, nibble := range relevantNibbles(fs, category) {
		if nibble == arFreeAccess {
			return CommPlain, nil
		}
	}
	return 0, &AccessDenied{FileNo: fileNo}
}

func relevantNibbles(fs *FileSettings, category AccessCategory) []byte {
	rw := fs.AR1 >> 4
	r := fs.AR2 >> 4
	w := fs.AR2 & 0x0F

	switch category {
	case AccessRead:
		return []byte{r, rw}
	case AccessWrite:
		return []byte{w, rw}
	case AccessReadWrite:
		return []byte{rw}
	default:
		return nil
	}
}
