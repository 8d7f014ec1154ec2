// Package redirect captures output written to the process's standard output
// and standard error file descriptors.
//
// Capture works below os.Stdout and os.Stderr: descriptors 1 and 2 themselves
// are pointed at pipes for the duration of the call, so writes from child
// processes that inherited them, and from any code writing to the raw
// descriptors, land in the supplied sinks.
package redirect

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrSetup is returned when the descriptors could not be redirected. When it
// is returned, stdout and stderr are left exactly as they were.
var ErrSetup = errors.New("redirecting stdout/stderr")

const (
	stdoutFD = 1
	stderrFD = 2
)

// DrainTimeout bounds how long Capture waits, after fn returns, for the
// captured descriptors to be released. A background process started by fn
// keeps its inherited copies open; output it writes after the timeout is
// dropped.
var DrainTimeout = 2 * time.Second

// mu serializes scopes; the descriptors are process-wide.
var mu sync.Mutex

// Capture runs fn with descriptors 1 and 2 redirected into stdout and stderr.
// The original descriptors are restored on every exit path, including a
// panic in fn. Output written before fn returns, and by processes that exit
// within DrainTimeout after it, has been written to the sinks by the time
// Capture returns.
func Capture(stdout, stderr io.Writer, fn func() error) (err error) {
	mu.Lock()
	defer mu.Unlock()

	s, err := begin(stdout, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := s.end(); endErr != nil && err == nil {
			err = endErr
		}
	}()

	return fn()
}
