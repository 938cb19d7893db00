package watcher

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kernel inotify ABI. Mirrored here so the decoder builds and tests on
// every platform; source_linux_test.go checks them against x/sys/unix.
const (
	headerSize = 16 // wd int32, mask uint32, cookie uint32, len uint32

	inModify       uint32 = 0x00000002
	inCloseWrite   uint32 = 0x00000008
	inCloseNowrite uint32 = 0x00000010
	inOpen         uint32 = 0x00000020
	inMovedFrom    uint32 = 0x00000040
	inMovedTo      uint32 = 0x00000080
	inCreate       uint32 = 0x00000100
	inDelete       uint32 = 0x00000200
	inDeleteSelf   uint32 = 0x00000400
	inMoveSelf     uint32 = 0x00000800
	inQOverflow    uint32 = 0x00004000
	inIsDir        uint32 = 0x40000000

	// nameMax is NAME_MAX; a read buffer must hold at least one full frame.
	nameMax = 255
)

// watchMask is every event the session registers for.
const watchMask = inOpen | inCloseWrite | inCloseNowrite | inMovedFrom | inMovedTo |
	inCreate | inDelete | inDeleteSelf | inModify | inMoveSelf

// kindBits maps each ChangeKind to its kernel bit, in declaration order.
var kindBits = [...]struct {
	kind ChangeKind
	bit  uint32
}{
	{Opened, inOpen},
	{ClosedNoWrite, inCloseNowrite},
	{ClosedWrite, inCloseWrite},
	{MovedFrom, inMovedFrom},
	{MovedTo, inMovedTo},
	{Deleted, inDelete},
	{DirectoryDeleted, inDeleteSelf},
	{Modified, inModify},
	{DirectorySelfMoved, inMoveSelf},
	{Created, inCreate},
}

// ErrTruncated is returned when a frame extends past the end of the buffer.
var ErrTruncated = errors.New("truncated event buffer")

// Decode parses a buffer filled by one read of an inotify descriptor.
// Frames are returned in buffer order. When a frame header or its name
// would run past len(buf), the frames decoded so far are returned along
// with an error wrapping ErrTruncated.
func Decode(buf []byte) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0, len(buf)/headerSize)

	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < headerSize {
			return records, fmt.Errorf("%w: header at offset %d needs %d bytes, %d left",
				ErrTruncated, offset, headerSize, len(buf)-offset)
		}

		frame := buf[offset:]
		mask := binary.NativeEndian.Uint32(frame[4:8])
		cookie := binary.NativeEndian.Uint32(frame[8:12])
		nameLen := int(binary.NativeEndian.Uint32(frame[12:16]))

		if nameLen > len(frame)-headerSize {
			return records, fmt.Errorf("%w: name at offset %d needs %d bytes, %d left",
				ErrTruncated, offset+headerSize, nameLen, len(frame)-headerSize)
		}

		record := ChangeRecord{
			Kinds:       kindsOf(mask),
			Cookie:      cookie,
			IsDirectory: mask&inIsDir != 0,
			Overflow:    mask&inQOverflow != 0,
		}
		if nameLen > 0 {
			raw := frame[headerSize : headerSize+nameLen]
			name := string(raw[:clen(raw)])
			record.Name = &name
		}

		records = append(records, record)
		offset += headerSize + nameLen
	}

	return records, nil
}

// kindsOf expands a kernel mask into kinds, in declaration order.
func kindsOf(mask uint32) []ChangeKind {
	var kinds []ChangeKind
	for _, kb := range kindBits {
		if mask&kb.bit != 0 {
			kinds = append(kinds, kb.kind)
		}
	}
	return kinds
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}
