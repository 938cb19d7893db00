// Package browser builds directory listings for navigation before a watch is started.
package browser

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domainerrors "github.com/listenupapp/dirwatch/internal/errors"
)

// ParentName is the name of the parent-reference entry.
const ParentName = ".."

// Entry is one row of a directory listing.
type Entry struct {
	Name          string    `json:"name" doc:"Entry name"`
	Path          string    `json:"path" doc:"Absolute path of the entry"`
	IsDirectory   bool      `json:"is_directory" doc:"Whether the entry is a directory"`
	IsParent      bool      `json:"is_parent,omitempty" doc:"Whether this is the parent reference"`
	Size          int64     `json:"size" doc:"File size in bytes, or child count for directories"`
	SizeLabel     string    `json:"size_label" doc:"Human readable size"`
	Modified      time.Time `json:"modified" doc:"Last modification time"`
	ModifiedLabel string    `json:"modified_label" doc:"Modification time relative to now"`
	ContentType   string    `json:"content_type,omitempty" doc:"Detected MIME type of files"`
	Icon          string    `json:"icon" doc:"Icon name for the entry"`
}

// Snapshot is an ordered listing of one directory.
type Snapshot struct {
	Path    string  `json:"path" doc:"Listed directory"`
	Parent  string  `json:"parent,omitempty" doc:"Parent directory path"`
	IsRoot  bool    `json:"is_root" doc:"Whether this is the filesystem root"`
	Entries []Entry `json:"entries" doc:"Directory entries in display order"`
}

// Options configures a Builder.
type Options struct {
	// Locale is a BCP 47 tag used to order names. Invalid tags fall back to English.
	Locale string
	// DetectContent sniffs file content to choose the icon.
	DetectContent bool
	// Now returns the reference time for relative labels. Defaults to time.Now.
	Now func() time.Time
}

// Builder produces directory snapshots.
type Builder struct {
	logger *slog.Logger
	now    func() time.Time
	tag    language.Tag
	detect bool
}

// NewBuilder creates a snapshot builder.
func NewBuilder(opts Options, logger *slog.Logger) *Builder {
	logger = logger.With("component", "browser")

	tag := language.English
	if opts.Locale != "" {
		parsed, err := language.Parse(opts.Locale)
		if err != nil {
			logger.Warn("invalid locale, ordering names in English", "locale", opts.Locale, "error", err)
		} else {
			tag = parsed
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Builder{
		logger: logger,
		now:    now,
		tag:    tag,
		detect: opts.DetectContent,
	}
}

// Build lists the immediate children of path. The parent reference is
// included unless path is the filesystem root.
func (b *Builder) Build(ctx context.Context, path string) (*Snapshot, error) {
	if path == "" {
		return nil, domainerrors.Validation("path is required")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid path %q", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, ioError(err, path)
	}
	if !info.IsDir() {
		return nil, domainerrors.NotADirectoryf("%s is not a directory", path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, ioError(err, path)
	}

	now := b.now()
	isRoot := filepath.Dir(path) == path

	entries := make([]Entry, 0, len(dirEntries)+1)
	if !isRoot {
		parent := filepath.Dir(path)
		if pinfo, err := os.Stat(parent); err == nil {
			e := b.directoryEntry(ParentName, parent, pinfo, now)
			e.IsParent = true
			entries = append(entries, e)
		} else {
			b.logger.Debug("skipping parent reference", "path", parent, "error", err)
		}
	}

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		full := filepath.Join(path, de.Name())

		// Follow symlinks so a link to a directory lists as one.
		info, err := os.Stat(full)
		if err != nil {
			info, err = de.Info()
			if err != nil {
				b.logger.Debug("skipping entry", "path", full, "error", err)
				continue
			}
		}

		if info.IsDir() {
			entries = append(entries, b.directoryEntry(de.Name(), full, info, now))
		} else {
			entries = append(entries, b.fileEntry(de.Name(), full, info, now))
		}
	}

	b.sort(entries)

	snap := &Snapshot{
		Path:    path,
		IsRoot:  isRoot,
		Entries: entries,
	}
	if !isRoot {
		snap.Parent = filepath.Dir(path)
	}
	return snap, nil
}

func (b *Builder) directoryEntry(name, full string, info fs.FileInfo, now time.Time) Entry {
	e := Entry{
		Name:          name,
		Path:          full,
		IsDirectory:   true,
		Modified:      info.ModTime(),
		ModifiedLabel: modifiedLabel(info.ModTime(), now),
		Icon:          IconFolder,
	}

	children, err := os.ReadDir(full)
	if err != nil {
		b.logger.Debug("cannot count children", "path", full, "error", err)
		return e
	}
	e.Size = int64(len(children))
	e.SizeLabel = itemsLabel(len(children))
	return e
}

func (b *Builder) fileEntry(name, full string, info fs.FileInfo, now time.Time) Entry {
	e := Entry{
		Name:          name,
		Path:          full,
		Size:          info.Size(),
		SizeLabel:     FormatSize(info.Size()),
		Modified:      info.ModTime(),
		ModifiedLabel: modifiedLabel(info.ModTime(), now),
		Icon:          IconGeneric,
	}

	if b.detect && info.Mode().IsRegular() {
		contentType, err := detectContentType(full)
		if err != nil {
			b.logger.Debug("content detection failed", "path", full, "error", err)
			return e
		}
		e.ContentType = contentType
		e.Icon = iconFor(contentType)
	}
	return e
}

// sort orders directories before files, the parent reference first, dotfiles
// after other names, and the rest by locale collation. A collator is not safe
// for concurrent use, so each call makes its own.
func (b *Builder) sort(entries []Entry) {
	col := collate.New(b.tag)

	slices.SortStableFunc(entries, func(x, y Entry) int {
		if x.IsDirectory != y.IsDirectory {
			if x.IsDirectory {
				return -1
			}
			return 1
		}
		if x.IsParent != y.IsParent {
			if x.IsParent {
				return -1
			}
			return 1
		}
		xDot, yDot := strings.HasPrefix(x.Name, "."), strings.HasPrefix(y.Name, ".")
		if xDot != yDot {
			if xDot {
				return 1
			}
			return -1
		}
		return col.CompareString(x.Name, y.Name)
	})
}

// ioError maps a filesystem error to a domain error.
func ioError(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return domainerrors.NotFoundf("directory not found: %s", path)
	case os.IsPermission(err):
		return domainerrors.PermissionDeniedf("permission denied: %s", path)
	default:
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "failed to read %s", path)
	}
}
