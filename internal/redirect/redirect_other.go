//go:build !unix

package redirect

import (
	"errors"
	"fmt"
	"io"
	"os"
)

type scope struct{}

func begin(io.Writer, io.Writer) (*scope, error) {
	return nil, fmt.Errorf("%w: %w", ErrSetup, errors.ErrUnsupported)
}

func (*scope) end() error { return nil }

// Dup returns f unchanged; descriptors are never redirected on this platform.
func Dup(f *os.File) (*os.File, error) {
	return f, nil
}
