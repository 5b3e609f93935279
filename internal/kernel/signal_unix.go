//go:build !windows

package kernel

import (
	"os"
	"syscall"
)

func interruptSignal() os.Signal {
	return syscall.SIGINT
}
