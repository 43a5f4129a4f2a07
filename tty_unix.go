//go:build unix

package solosh

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// tcsetpgrp and tcgetpgrp wrap the TIOCSPGRP/TIOCGPGRP ioctls. x/sys/unix
// exposes IoctlSetInt/IoctlGetInt for ioctls whose argument is a plain int
// passed by value, but TIOCSPGRP and TIOCGPGRP take a pointer to a pid_t,
// so the call is made directly rather than through a stdlib-ish helper.

func tcsetpgrp(fd int, pgid int) error {
	p := int32(pgid)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCSPGRP), uintptr(unsafe.Pointer(&p)))
	if errno != 0 {
		return errno
	}
	return nil
}

func tcgetpgrp(fd int) (int, error) {
	var p int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.TIOCGPGRP), uintptr(unsafe.Pointer(&p)))
	if errno != 0 {
		return 0, errno
	}
	return int(p), nil
}
