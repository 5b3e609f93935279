package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/specialistvlad/spine-engine-go/internal/event"
)

// ErrPromptDeclined is returned by Prompt when the engine is stopped while
// a prompt is outstanding, mirroring the original's PromptQueue behavior on
// a user-requested stop.
var ErrPromptDeclined = errors.New("engine: prompt declined, engine stopped")

// PromptRequest is the payload of a PromptRequested event, mirroring the
// original's prompt_queue.PromptQueue entries (an item asking its front end
// a question mid-execution, e.g. "overwrite this file?").
type PromptRequest struct {
	ID       string
	Author   string
	FilterID string
	Text     string
	Choices  []string
}

type pendingPrompt struct {
	answer chan string
}

// Prompt asks a question on the event stream and blocks until AnswerPrompt
// resolves it, ctx is canceled, or the engine is stopped. Unlike the
// original's PromptQueue (polled by a GUI front end via prompt_queue.get),
// this is a direct blocking call the caller's ExecutableItem.Execute
// implementation can use.
func (e *Engine) Prompt(ctx context.Context, author, filterID, text string, choices []string) (string, error) {
	id := uuid.NewString()
	p := &pendingPrompt{answer: make(chan string, 1)}

	e.promptsMu.Lock()
	e.prompts[id] = p
	e.promptsMu.Unlock()
	defer func() {
		e.promptsMu.Lock()
		delete(e.prompts, id)
		e.promptsMu.Unlock()
	}()

	e.events <- event.Event{
		Type: event.PromptRequested,
		Payload: PromptRequest{
			ID: id, Author: author, FilterID: filterID, Text: text, Choices: choices,
		},
	}

	select {
	case answer := <-p.answer:
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-e.stopCh:
		return "", ErrPromptDeclined
	}
}

// AnswerPrompt resolves a pending prompt previously surfaced as a
// PromptRequested event. It is a no-op (returns an error) if id is unknown,
// e.g. because the prompt already timed out via ctx or Stop.
func (e *Engine) AnswerPrompt(id, answer string) error {
	e.promptsMu.Lock()
	p, ok := e.prompts[id]
	e.promptsMu.Unlock()
	if !ok {
		return fmt.Errorf("engine: no pending prompt %q", id)
	}
	select {
	case p.answer <- answer:
	default:
	}
	return nil
}
