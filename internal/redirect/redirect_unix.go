//go:build unix

package redirect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// scope holds everything one Capture call allocated.
type scope struct {
	targets [2]int
	saved   [2]int
	readers [2]*os.File
	writers [2]*os.File
	drain   *errgroup.Group
}

func begin(stdout, stderr io.Writer) (*scope, error) {
	s := &scope{
		targets: [2]int{stdoutFD, stderrFD},
		saved:   [2]int{-1, -1},
	}

	for i, fd := range s.targets {
		saved, err := unix.Dup(fd)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("%w: dup fd %d: %v", ErrSetup, fd, err)
		}
		unix.CloseOnExec(saved)
		s.saved[i] = saved

		r, w, err := os.Pipe()
		if err != nil {
			s.release()
			return nil, fmt.Errorf("%w: pipe for fd %d: %v", ErrSetup, fd, err)
		}
		s.readers[i], s.writers[i] = r, w
	}

	for i, fd := range s.targets {
		// Fd puts the write end in blocking mode, which is what children
		// inheriting fds 1 and 2 expect.
		if err := dupTo(int(s.writers[i].Fd()), fd); err != nil {
			for j := i - 1; j >= 0; j-- {
				dupTo(s.saved[j], s.targets[j])
			}
			s.release()
			return nil, fmt.Errorf("%w: dup onto fd %d: %v", ErrSetup, fd, err)
		}
	}

	sinks := [2]io.Writer{stdout, stderr}
	s.drain = new(errgroup.Group)
	for i := range s.readers {
		r, w := s.readers[i], sinks[i]
		s.drain.Go(func() error {
			_, err := io.Copy(w, r)
			return err
		})
	}
	return s, nil
}

func (s *scope) end() error {
	var errs []error
	restored := true
	for i, fd := range s.targets {
		if err := dupTo(s.saved[i], fd); err != nil {
			errs = append(errs, fmt.Errorf("restoring fd %d: %w", fd, err))
			restored = false
		}
	}

	// Closing our write ends leaves the pipes with no writers once any
	// children holding them have exited, so the drains see EOF.
	for i := range s.writers {
		unix.Close(s.saved[i])
		s.saved[i] = -1
		s.writers[i].Close()
		s.writers[i] = nil
	}

	if restored {
		done := make(chan error, 1)
		go func() { done <- s.drain.Wait() }()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("draining captured output: %w", err))
			}
		case <-time.After(DrainTimeout):
			// A background process still holds a write end. Closing the
			// readers ends the drains; its later output is dropped.
			s.closeReaders()
			if err := <-done; err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, fmt.Errorf("draining captured output: %w", err))
			}
		}
	}
	// A descriptor that could not be restored still points at a pipe and
	// would keep its drain blocked forever; closing the readers unblocks it.
	s.closeReaders()
	return errors.Join(errs...)
}

func (s *scope) closeReaders() {
	for i := range s.readers {
		if s.readers[i] != nil {
			s.readers[i].Close()
			s.readers[i] = nil
		}
	}
}

// release frees whatever begin managed to allocate before failing.
func (s *scope) release() {
	for i := range s.targets {
		if s.saved[i] >= 0 {
			unix.Close(s.saved[i])
			s.saved[i] = -1
		}
		if s.readers[i] != nil {
			s.readers[i].Close()
			s.readers[i] = nil
		}
		if s.writers[i] != nil {
			s.writers[i].Close()
			s.writers[i] = nil
		}
	}
}

// Dup returns a new file on a duplicate of f's descriptor. Output written to
// it keeps going to wherever f pointed when Dup was called, even while a
// Capture is active.
func Dup(f *os.File) (*os.File, error) {
	mu.Lock()
	defer mu.Unlock()

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup %s: %w", f.Name(), err)
	}
	unix.CloseOnExec(fd)
	return os.NewFile(uintptr(fd), f.Name()), nil
}
