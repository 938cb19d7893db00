package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"syscall"
)

// source is the platform notification channel for one watch target.
type source interface {
	// next blocks until events can be read or cancellation is signaled.
	// Cancellation wins over pending events and yields errCanceled.
	// On a decode failure the records decoded before it are returned with the error.
	next() ([]ChangeRecord, error)

	// cancel wakes a blocked next. It is called from another goroutine.
	cancel() error

	// close removes the watch and releases every descriptor.
	close() error
}

// openFunc opens a source on target.
type openFunc func(target string, opts Options) (source, error)

var errCanceled = errors.New("watch canceled")

// checkTarget fails unless target is an existing directory.
func checkTarget(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "watch", Path: target, Err: syscall.ENOTDIR}
	}
	return nil
}

// session owns one source and runs its loop on a dedicated goroutine.
type session struct {
	sink   Sink
	logger *slog.Logger
	open   openFunc
	done   chan struct{}
	origin Origin
	opts   Options

	// reason is written before done is closed and read only after.
	reason StopReason

	// mu orders cancel against release so the cancellation descriptor
	// is never signaled after it was closed.
	mu       sync.Mutex
	src      source
	canceled bool
	released bool
}

func newSession(id, target string, opts Options, sink Sink, open openFunc, logger *slog.Logger) *session {
	return &session{
		sink:   sink,
		open:   open,
		opts:   opts,
		done:   make(chan struct{}),
		origin: Origin{SessionID: id, Target: target},
		logger: logger.With("session_id", id, "target", target),
	}
}

// run opens the source, reports the outcome on ready and then watches until
// canceled or the target goes away. ready must have room for one value.
func (s *session) run(ready chan<- error) {
	defer close(s.done)

	// The worker spends its life blocked in poll; give it its own thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	src, err := s.open(s.origin.Target, s.opts)
	if err != nil {
		s.reason = StopReason{Cause: CauseSetupError, Message: err.Error()}
		s.logger.Warn("failed to open watch", "error", err)
		s.sink.Deliver(FatalError{
			Origin:  s.origin,
			Cause:   CauseSetupError,
			Message: fmt.Sprintf("Can't watch '%s': %s", s.origin.Target, setupMessage(err)),
		})
		ready <- err
		return
	}

	s.mu.Lock()
	s.src = src
	s.mu.Unlock()

	s.logger.Info("watch started")
	s.sink.Deliver(EnteredWatching{Origin: s.origin})
	ready <- nil

	reason := s.watch(src)

	s.release()
	s.reason = reason
	s.logger.Info("watch stopped", "reason", reason.String())
	s.sink.Deliver(LeftWatching{Origin: s.origin, Reason: reason})
}

// watch consumes the source until it yields a stop reason.
func (s *session) watch(src source) StopReason {
	for {
		records, err := src.next()
		if errors.Is(err, errCanceled) {
			return StopReason{Cause: CauseUserRequested}
		}

		if len(records) > 0 {
			batch, terminal, ok := cutAtTerminal(records)
			for _, r := range batch {
				if r.Overflow {
					s.logger.Warn("kernel event queue overflowed, events were lost")
				}
			}
			s.logger.Debug("delivering batch", "count", len(batch))
			s.sink.Deliver(Batch{Origin: s.origin, Records: batch, Size: len(batch)})
			if ok {
				return terminalReason(terminal)
			}
		}

		if err != nil {
			s.logger.Error("watch failed", "error", err)
			s.sink.Deliver(FatalError{Origin: s.origin, Cause: CauseKernelError, Message: err.Error()})
			return StopReason{Cause: CauseKernelError, Message: err.Error()}
		}
	}
}

// cancel signals the worker to stop. It is a no-op once the source is released.
func (s *session) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled || s.released || s.src == nil {
		s.canceled = true
		return
	}
	s.canceled = true
	if err := s.src.cancel(); err != nil {
		s.logger.Warn("failed to signal cancellation", "error", err)
	}
}

// release closes the source.
func (s *session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	if err := s.src.close(); err != nil {
		s.logger.Warn("failed to release watch", "error", err)
	}
}

// cutAtTerminal keeps records up to and including the first terminal one.
func cutAtTerminal(records []ChangeRecord) ([]ChangeRecord, ChangeKind, bool) {
	for i, r := range records {
		if k, ok := r.Terminal(); ok {
			return slices.Clip(records[:i+1]), k, true
		}
	}
	return records, 0, false
}

func terminalReason(k ChangeKind) StopReason {
	if k == DirectorySelfMoved {
		return StopReason{Cause: CauseTargetMoved}
	}
	return StopReason{Cause: CauseTargetVanished}
}

// setupMessage strips the path from path errors; the caller already names the target.
func setupMessage(err error) string {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}
