package watcher

import "strings"

// ChangeKind is one kind of change reported for a watched directory.
// The declaration order is the order kinds appear in a ChangeRecord.
type ChangeKind int

const (
	// Opened is reported when a file or directory was opened.
	Opened ChangeKind = iota
	// ClosedNoWrite is reported when a file not opened for writing was closed.
	ClosedNoWrite
	// ClosedWrite is reported when a file opened for writing was closed.
	ClosedWrite
	// MovedFrom is reported for the old name of an entry moved out of the target.
	MovedFrom
	// MovedTo is reported for the new name of an entry moved into the target.
	MovedTo
	// Deleted is reported when an entry inside the target was deleted.
	Deleted
	// DirectoryDeleted is reported when the target itself was deleted. Terminal.
	DirectoryDeleted
	// Modified is reported when a file was written to.
	Modified
	// DirectorySelfMoved is reported when the target itself was moved. Terminal.
	DirectorySelfMoved
	// Created is reported when an entry was created inside the target.
	Created
)

// allKinds lists every kind in declaration order.
var allKinds = []ChangeKind{
	Opened,
	ClosedNoWrite,
	ClosedWrite,
	MovedFrom,
	MovedTo,
	Deleted,
	DirectoryDeleted,
	Modified,
	DirectorySelfMoved,
	Created,
}

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case ClosedNoWrite:
		return "closed_nowrite"
	case ClosedWrite:
		return "closed_write"
	case MovedFrom:
		return "moved_from"
	case MovedTo:
		return "moved_to"
	case Deleted:
		return "deleted"
	case DirectoryDeleted:
		return "directory_deleted"
	case Modified:
		return "modified"
	case DirectorySelfMoved:
		return "directory_self_moved"
	case Created:
		return "created"
	default:
		return "unknown"
	}
}

// Flag returns the kernel flag name of the kind, as shown in event rows.
func (k ChangeKind) Flag() string {
	switch k {
	case Opened:
		return "IN_OPEN"
	case ClosedNoWrite:
		return "IN_CLOSE_NOWRITE"
	case ClosedWrite:
		return "IN_CLOSE_WRITE"
	case MovedFrom:
		return "IN_MOVED_FROM"
	case MovedTo:
		return "IN_MOVED_TO"
	case Deleted:
		return "IN_DELETE"
	case DirectoryDeleted:
		return "IN_DELETE_SELF"
	case Modified:
		return "IN_MODIFY"
	case DirectorySelfMoved:
		return "IN_MOVE_SELF"
	case Created:
		return "IN_CREATE"
	default:
		return "IN_UNKNOWN"
	}
}

// Terminal reports whether the kind ends monitoring of the target.
func (k ChangeKind) Terminal() bool {
	return k == DirectoryDeleted || k == DirectorySelfMoved
}

// ChangeRecord is one decoded change notification.
type ChangeRecord struct {
	// Name is the entry name relative to the target. Nil for events about
	// the target itself.
	Name *string

	// Kinds holds every kind reported by the frame, in declaration order.
	Kinds []ChangeKind

	// Cookie correlates MovedFrom and MovedTo halves of one rename.
	Cookie uint32

	// IsDirectory is set when the subject of the event is a directory.
	IsDirectory bool

	// Overflow is set when the kernel dropped events because its queue filled up.
	Overflow bool
}

// Has reports whether the record carries kind k.
func (r ChangeRecord) Has(k ChangeKind) bool {
	for _, got := range r.Kinds {
		if got == k {
			return true
		}
	}
	return false
}

// Terminal returns the first terminal kind of the record, if any.
func (r ChangeRecord) Terminal() (ChangeKind, bool) {
	for _, k := range r.Kinds {
		if k.Terminal() {
			return k, true
		}
	}
	return 0, false
}

// Label renders the record the way the event list shows it:
// every kernel flag followed by the path of the subject.
func (r ChangeRecord) Label(target string) string {
	var b strings.Builder
	for _, k := range r.Kinds {
		b.WriteString(k.Flag())
		b.WriteString(": ")
	}
	b.WriteString(strings.TrimSuffix(target, "/"))
	b.WriteByte('/')
	if r.Name != nil {
		b.WriteString(*r.Name)
	}
	return b.String()
}
