// Package queuelogger multiplexes per-item log calls into the engine's
// single bounded event channel, tagging each message with its author (the
// emitting item's name) and, when applicable, the active filter id of the
// sub-execution that produced it. Ported from utils/queue_logger.py's
// QueueLogger/_Message/_ExecutionMessage.
package queuelogger

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/specialistvlad/spine-engine-go/internal/event"
)

// QueueLogger emits Events onto Events, mirroring QueueLogger's msg/
// msg_success/msg_warning/msg_error/msg_proc/msg_proc_error/
// msg_standard_execution/msg_kernel_execution emitters.
type QueueLogger struct {
	Author   string
	FilterID string
	Events   chan<- event.Event
}

// New returns a QueueLogger that tags every emitted event with author and
// (if non-empty) filterID.
func New(events chan<- event.Event, author, filterID string) *QueueLogger {
	return &QueueLogger{Author: author, FilterID: filterID, Events: events}
}

// LogMessage is the payload carried by LogMessage-typed events.
type LogMessage struct {
	Author   string
	FilterID string
	Level    string
	Text     string
}

func (q *QueueLogger) emitLog(level, text string) {
	q.Events <- event.Event{
		Type: event.LogMessage,
		Payload: LogMessage{
			Author:   q.Author,
			FilterID: q.FilterID,
			Level:    level,
			Text:     text,
		},
	}
}

// Msg mirrors QueueLogger.msg (informational).
func (q *QueueLogger) Msg(text string) { q.emitLog("msg", text) }

// MsgSuccess mirrors QueueLogger.msg_success.
func (q *QueueLogger) MsgSuccess(text string) { q.emitLog("success", text) }

// MsgWarning mirrors QueueLogger.msg_warning.
func (q *QueueLogger) MsgWarning(text string) { q.emitLog("warning", text) }

// MsgError mirrors QueueLogger.msg_error.
func (q *QueueLogger) MsgError(text string) { q.emitLog("error", text) }

// ProcessMessage is the payload for ProcessMessage-typed events, with a
// humanized byte count for any buffered stdout/stderr volume, an ambient
// nicety the original's plain Python logging doesn't bother with.
type ProcessMessage struct {
	Author    string
	FilterID  string
	Stream    string // "stdout" or "stderr"
	Text      string
	ByteCount string
}

func (q *QueueLogger) emitProc(stream, text string, bytesWritten int) {
	q.Events <- event.Event{
		Type: event.ProcessMessage,
		Payload: ProcessMessage{
			Author:    q.Author,
			FilterID:  q.FilterID,
			Stream:    stream,
			Text:      text,
			ByteCount: humanize.Bytes(uint64(bytesWritten)),
		},
	}
}

// MsgProc mirrors QueueLogger.msg_proc (ordinary subprocess stdout/stderr
// relay).
func (q *QueueLogger) MsgProc(stream, text string, bytesWritten int) {
	q.emitProc(stream, text, bytesWritten)
}

// MsgProcError mirrors QueueLogger.msg_proc_error.
func (q *QueueLogger) MsgProcError(text string) {
	q.Events <- event.Event{
		Type: event.ProcessMessage,
		Payload: ProcessMessage{Author: q.Author, FilterID: q.FilterID, Stream: "stderr", Text: text},
	}
}

// ExecutionMessage is the payload for kernel/persistent-manager lifecycle
// and transcript messages, an arbitrary key/value dict merged with the
// author/filter id, mirroring msg_standard_execution/msg_kernel_execution.
type ExecutionMessage struct {
	Author   string
	FilterID string
	At       time.Time
	Fields   map[string]any
}

func (q *QueueLogger) emitExecution(eventType event.Type, fields map[string]any) {
	q.Events <- event.Event{
		Type: eventType,
		Payload: ExecutionMessage{
			Author:   q.Author,
			FilterID: q.FilterID,
			At:       time.Now(),
			Fields:   fields,
		},
	}
}

// MsgStandardExecution mirrors QueueLogger.msg_standard_execution.
func (q *QueueLogger) MsgStandardExecution(fields map[string]any) {
	q.emitExecution(event.StandardExecution, fields)
}

// MsgKernelExecution mirrors QueueLogger.msg_kernel_execution.
func (q *QueueLogger) MsgKernelExecution(fields map[string]any) {
	q.emitExecution(event.KernelExecution, fields)
}
