package watcher

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds one raw inotify frame. Names are NUL padded to a multiple
// of 16 bytes like the kernel does.
func frame(mask, cookie uint32, name string) []byte {
	nameLen := 0
	if name != "" {
		nameLen = (len(name)/16 + 1) * 16
	}

	buf := make([]byte, headerSize+nameLen)
	binary.NativeEndian.PutUint32(buf[0:4], 1)
	binary.NativeEndian.PutUint32(buf[4:8], mask)
	binary.NativeEndian.PutUint32(buf[8:12], cookie)
	//nolint:gosec // G115: test names are short
	binary.NativeEndian.PutUint32(buf[12:16], uint32(nameLen))
	copy(buf[headerSize:], name)
	return buf
}

func concat(frames ...[]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func TestDecode_BackToBackFrames(t *testing.T) {
	buf := concat(
		frame(inCreate, 0, "a.txt"),
		frame(inOpen, 0, "a-much-longer-file-name.txt"),
		frame(inCloseWrite, 0, "a.txt"),
	)

	records, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []ChangeKind{Created}, records[0].Kinds)
	assert.Equal(t, "a.txt", *records[0].Name)
	assert.Equal(t, []ChangeKind{Opened}, records[1].Kinds)
	assert.Equal(t, "a-much-longer-file-name.txt", *records[1].Name)
	assert.Equal(t, []ChangeKind{ClosedWrite}, records[2].Kinds)
}

func TestDecode_FrameCountMatches(t *testing.T) {
	for k := 1; k <= 32; k++ {
		t.Run(fmt.Sprintf("%d frames", k), func(t *testing.T) {
			var frames [][]byte
			for i := range k {
				frames = append(frames, frame(inModify, 0, fmt.Sprintf("file-%d", i)))
			}

			records, err := Decode(concat(frames...))
			require.NoError(t, err)
			require.Len(t, records, k)
			for i, r := range records {
				assert.Equal(t, fmt.Sprintf("file-%d", i), *r.Name)
			}
		})
	}
}

func TestDecode_DirectoryFlagIsNotAKind(t *testing.T) {
	records, err := Decode(frame(inCreate|inIsDir, 0, "Sub"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []ChangeKind{Created}, records[0].Kinds)
	assert.True(t, records[0].IsDirectory)
}

func TestDecode_KindsInDeclarationOrder(t *testing.T) {
	records, err := Decode(frame(inCreate|inModify|inOpen|inDeleteSelf, 0, ""))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []ChangeKind{Opened, DirectoryDeleted, Modified, Created}, records[0].Kinds)
}

func TestDecode_NoName(t *testing.T) {
	records, err := Decode(frame(inDeleteSelf, 0, ""))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Nil(t, records[0].Name)
}

func TestDecode_Cookie(t *testing.T) {
	records, err := Decode(concat(
		frame(inMovedFrom, 42, "old"),
		frame(inMovedTo, 42, "new"),
	))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, uint32(42), records[0].Cookie)
	assert.Equal(t, records[0].Cookie, records[1].Cookie)
}

func TestDecode_Overflow(t *testing.T) {
	records, err := Decode(frame(inQOverflow, 0, ""))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.True(t, records[0].Overflow)
	assert.Empty(t, records[0].Kinds)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	buf := concat(frame(inCreate, 0, "a"), frame(inCreate, 0, "b"))
	buf = append(buf, frame(inCreate, 0, "c")[:10]...)

	records, err := Decode(buf)
	require.ErrorIs(t, err, ErrTruncated)
	require.Len(t, records, 2)
	assert.Equal(t, "a", *records[0].Name)
	assert.Equal(t, "b", *records[1].Name)
}

func TestDecode_TruncatedName(t *testing.T) {
	full := frame(inCreate, 0, "a-name-longer-than-sixteen")
	buf := concat(frame(inOpen, 0, ""), full[:len(full)-4])

	records, err := Decode(buf)
	require.ErrorIs(t, err, ErrTruncated)
	require.Len(t, records, 1)
	assert.Equal(t, []ChangeKind{Opened}, records[0].Kinds)
}

func TestDecode_Empty(t *testing.T) {
	records, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecode_NamesDoNotAliasBuffer(t *testing.T) {
	buf := frame(inCreate, 0, "note.txt")

	records, err := Decode(buf)
	require.NoError(t, err)

	copy(buf[headerSize:], "XXXXXXXX")
	assert.Equal(t, "note.txt", *records[0].Name)
}
