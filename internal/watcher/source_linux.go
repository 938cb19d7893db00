//go:build linux

package watcher

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// inotifySource reads one inotify watch and multiplexes it with an eventfd
// used as the cancellation signal.
type inotifySource struct {
	buf []byte
	fd  int
	wd  int
	efd int
}

// openSource initializes inotify, registers target and creates the eventfd.
func openSource(target string, opts Options) (source, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}

	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	// IN_ONLYDIR closes the window between checkTarget and registration.
	wd, err := unix.InotifyAddWatch(fd, target, watchMask|unix.IN_ONLYDIR)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		//nolint:gosec // G115: wd is always a small non-negative int from inotify
		_, _ = unix.InotifyRmWatch(fd, uint32(wd))
		_ = unix.Close(fd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	return &inotifySource{
		buf: make([]byte, opts.BufferSize),
		fd:  fd,
		wd:  wd,
		efd: efd,
	}, nil
}

// next waits on both descriptors with no timeout and performs one read.
func (s *inotifySource) next() ([]ChangeRecord, error) {
	fds := []unix.PollFd{
		{Fd: int32(s.efd), Events: unix.POLLIN}, //nolint:gosec // G115: descriptors fit in int32
		{Fd: int32(s.fd), Events: unix.POLLIN},  //nolint:gosec // G115: descriptors fit in int32
	}

	for {
		fds[0].Revents, fds[1].Revents = 0, 0

		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("poll: %w", err)
		}

		if fds[0].Revents != 0 {
			return nil, errCanceled
		}

		if fds[1].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return nil, fmt.Errorf("poll: inotify descriptor reported revents %#x", fds[1].Revents)
		}
		if fds[1].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(s.fd, s.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("read: %w", err)
		}
		if n <= 0 {
			continue
		}

		return Decode(s.buf[:n])
	}
}

// cancel makes the eventfd readable.
func (s *inotifySource) cancel() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)

	if _, err := unix.Write(s.efd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// close removes the watch and closes both descriptors.
func (s *inotifySource) close() error {
	var errs []error

	// The kernel already dropped the watch when the target was deleted.
	//nolint:gosec // G115: wd is always a small non-negative int from inotify
	if _, err := unix.InotifyRmWatch(s.fd, uint32(s.wd)); err != nil && !errors.Is(err, unix.EINVAL) {
		errs = append(errs, fmt.Errorf("inotify_rm_watch: %w", err))
	}
	if err := unix.Close(s.fd); err != nil {
		errs = append(errs, fmt.Errorf("close inotify: %w", err))
	}
	if err := unix.Close(s.efd); err != nil {
		errs = append(errs, fmt.Errorf("close eventfd: %w", err))
	}

	return errors.Join(errs...)
}
