//go:build linux

package redirect

import "golang.org/x/sys/unix"

// dupTo makes newfd refer to the same open file as oldfd. Linux/arm64 has no
// dup2 syscall, so dup3 is used on every Linux architecture.
func dupTo(oldfd, newfd int) error {
	return unix.Dup3(oldfd, newfd, 0)
}
