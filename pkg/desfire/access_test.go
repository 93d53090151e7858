package desfire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAccessKeyMatchUsesDeclaredCommSetting(t *testing.T) {
	fs := &FileSettings{
		CommSetting: CommEnciphered,
		AR1:         0x12, // rw=1, car=2
		AR2:         0x34, // r=3, w=4
	}
	mode, err := ResolveAccess(fs, 7, 3, AccessRead)
	require.NoError(t, err)
	assert.Equal(t, CommEnciphered, mode)

	mode, err = ResolveAccess(fs, 7, 4, AccessWrite)
	require.NoError(t, err)
	assert.Equal(t, CommEnciphered, mode)

	mode, err = ResolveAccess(fs, 7, 1, AccessReadWrite)
	require.NoError(t, err)
	assert.Equal(t, CommEnciphered, mode)
}

func TestResolveAccessFreeNibbleFallsBackToPlain(t *testing.T) {
	fs := &FileSettings{
		CommSetting: CommEnciphered,
		AR1:         0xE1, // rw=0xE (free), car=1
		AR2:         0xEE, // r=0xE, w=0xE
	}
	mode, err := ResolveAccess(fs, 2, 9, AccessRead)
	require.NoError(t, err)
	assert.Equal(t, CommPlain, mode)

	mode, err = ResolveAccess(fs, 2, 9, AccessWrite)
	require.NoError(t, err)
	assert.Equal(t, CommPlain, mode)
}

func TestResolveAccessDeniedWhenNoNibbleMatches(t *testing.T) {
	fs := &FileSettings{
		CommSetting: CommPlain,
		AR1:         0xF0, // rw=0xF denied, car=0
		AR2:         0xFF, // r=0xF, w=0xF
	}
	_, err := ResolveAccess(fs, 5, 2, AccessRead)
	require.Error(t, err)
	var denied *AccessDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, byte(5), denied.FileNo)
}

func TestResolveAccessChangeAccessRightsPolicy(t *testing.T) {
	fs := &FileSettings{AR1: 0x03} // car nibble = 3

	mode, err := ResolveAccess(fs, 0, 3, AccessChangeAccessRights)
	require.NoError(t, err)
	assert.Equal(t, CommEnciphered, mode)

	fsFree := &FileSettings{AR1: 0x0E}
	mode, err = ResolveAccess(fsFree, 0, 1, AccessChangeAccessRights)
	require.NoError(t, err)
	assert.Equal(t, CommPlain, mode)

	fsDenied := &FileSettings{AR1: 0x05}
	_, err = ResolveAccess(fsDenied, 0, 1, AccessChangeAccessRights)
	require.Error(t, err)
}

func TestResolveAccessTableDriven(t *testing.T) {
	fs := &FileSettings{CommSetting: CommMACed, AR1: 0x12, AR2: 0x34}

	cases := []struct {
		name     string
		keyNo    byte
		category AccessCategory
		want     CommunicationSetting
		wantErr  bool
	}{
		{"read nibble 3 matches", 3, AccessRead, CommMACed, false},
		{"rw nibble 1 also grants read", 1, AccessRead, CommMACed, false},
		{"write nibble 4 matches", 4, AccessWrite, CommMACed, false},
		{"no matching nibble denied", 9, AccessWrite, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mode, err := ResolveAccess(fs, 1, tc.keyNo, tc.category)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode)
		})
	}
}
