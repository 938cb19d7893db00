//go:build !linux

package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifySource adapts fsnotify to the source contract on platforms without inotify.
// Every event already queued when next wakes up goes into the same batch.
type fsnotifySource struct {
	watcher *fsnotify.Watcher
	stop    chan struct{}
	target  string
	once    sync.Once
}

// opBits maps fsnotify operations to change kinds for entries inside the target.
var opBits = []struct {
	op   fsnotify.Op
	kind ChangeKind
	self ChangeKind
}{
	{fsnotify.Rename, MovedFrom, DirectorySelfMoved},
	{fsnotify.Remove, Deleted, DirectoryDeleted},
	{fsnotify.Write, Modified, Modified},
	{fsnotify.Create, Created, Created},
}

// openSource creates an fsnotify watcher on target.
func openSource(target string, opts Options) (source, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	//nolint:gosec // G115: BufferSize is positive after setDefaults
	w, err := fsnotify.NewBufferedWatcher(uint(opts.BufferSize / headerSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(target); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to add watch: %w", err)
	}

	return &fsnotifySource{
		watcher: w,
		stop:    make(chan struct{}),
		target:  target,
	}, nil
}

func (s *fsnotifySource) next() ([]ChangeRecord, error) {
	for {
		select {
		case <-s.stop:
			return nil, errCanceled
		default:
		}

		select {
		case <-s.stop:
			return nil, errCanceled
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil, errors.New("fsnotify event channel closed")
			}
			batch := s.appendRecord(nil, ev)
			batch = s.drain(batch)
			if len(batch) == 0 {
				continue
			}
			return batch, nil
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil, errors.New("fsnotify error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				return []ChangeRecord{{Overflow: true}}, nil
			}
			return nil, err
		}
	}
}

// drain appends every event that is already queued without blocking.
func (s *fsnotifySource) drain(batch []ChangeRecord) []ChangeRecord {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return batch
			}
			batch = s.appendRecord(batch, ev)
		default:
			return batch
		}
	}
}

func (s *fsnotifySource) appendRecord(batch []ChangeRecord, ev fsnotify.Event) []ChangeRecord {
	self := filepath.Clean(ev.Name) == s.target

	var rec ChangeRecord
	for _, ob := range opBits {
		if !ev.Has(ob.op) {
			continue
		}
		if self {
			rec.Kinds = append(rec.Kinds, ob.self)
		} else {
			rec.Kinds = append(rec.Kinds, ob.kind)
		}
	}
	if len(rec.Kinds) == 0 {
		return batch
	}
	// opBits is not in kind order.
	slices.Sort(rec.Kinds)

	if self {
		rec.IsDirectory = true
	} else {
		name, err := filepath.Rel(s.target, ev.Name)
		if err != nil {
			name = filepath.Base(ev.Name)
		}
		rec.Name = &name
		if info, err := os.Lstat(ev.Name); err == nil {
			rec.IsDirectory = info.IsDir()
		}
	}

	return append(batch, rec)
}

func (s *fsnotifySource) cancel() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *fsnotifySource) close() error {
	return s.watcher.Close()
}
