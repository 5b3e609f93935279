// Package persistent implements PersistentManager, a long-lived REPL
// subprocess driven over the "sentinel" synchronization protocol, ported
// from execution_managers/persistent_execution_manager.py.
//
// Two distinct channels are involved, exactly as in the original:
//
//  1. The REPL's stdin/stdout/stderr pipes, used to feed it source
//     commands and to relay its output lines.
//  2. A small request/response RPC server the REPL process itself listens
//     on (its address is handed to it as a startup argument), used for
//     out-of-band queries: is_complete, get_completions,
//     get_history_item, and the "ping" sentinel used to detect when the
//     REPL has become idle again after a command.
package persistent

import (
	"fmt"
	"strings"
)

// Framing separators, taken verbatim from the original's U+001F (unit
// separator, between the request name and its argument list) and U+0091
// (private-use separator, between individual arguments).
const (
	unitSeparator     = "\x1f"
	argumentSeparator = ""
)

// encodeRequest builds the wire form of an RPC request the way
// _communicate does: f"{request}{U+001F}{U+0091.join(args)}".
func encodeRequest(request string, args ...string) string {
	return request + unitSeparator + strings.Join(args, argumentSeparator)
}

// pingRequest builds the "ping" RPC request the sentinel issues into the
// REPL's stdin, carrying the host/port the REPL should connect back to,
// mirroring _ping_command(host, port).
func pingRequest(host string, port int) string {
	return encodeRequest("ping", host, fmt.Sprintf("%d", port))
}

// maxRPCResponseBytes mirrors the original's `receive(1_000_000)` cap on RPC
// responses.
const maxRPCResponseBytes = 1_000_000
