//go:build !windows

package persistent

import "syscall"

// interruptSignal is the signal sent by Interrupt on POSIX systems,
// mirroring interrupt_persistent's os.kill(pid, signal.SIGINT).
var interruptSignal = syscall.SIGINT
