//go:build windows

package kernel

import "os"

func interruptSignal() os.Signal {
	return os.Interrupt
}
