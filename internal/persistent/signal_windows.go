//go:build windows

package persistent

import "os"

// interruptSignal falls back to os.Interrupt on Windows, where the
// original uses a ctypes-based CTRL_C_EVENT helper (_send_ctrl_c) instead
// of a POSIX signal; a full equivalent is out of scope here.
var interruptSignal = os.Interrupt
