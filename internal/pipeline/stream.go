package pipeline

import (
	"context"
	"strings"
	"time"
)

// FrameType discriminates stream frames.
type FrameType string

const (
	// FrameControl carries conversation metadata before any content.
	FrameControl FrameType = "control"
	// FrameToken carries one chunk of response text.
	FrameToken FrameType = "token"
	// FrameDone closes the turn.
	FrameDone FrameType = "done"
)

// Frame is one unit of the delivery stream.
type Frame struct {
	Type           FrameType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	TurnID         string    `json:"turn_id,omitempty"`
	Mood           string    `json:"mood,omitempty"`
	Text           string    `json:"text,omitempty"`
}

// wordDelay is the artificial per-word pacing for perceived
// naturalness. Zero in tests.
const wordDelay = 25 * time.Millisecond

// stream emits the control frame, the response word by word, and the
// done frame. A cancelled context stops delivery early but still
// closes the channel cleanly.
func stream(ctx context.Context, out chan<- Frame, convID, turnID, mood, text string, delay time.Duration) {
	defer close(out)

	send := func(f Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(Frame{Type: FrameControl, ConversationID: convID, TurnID: turnID, Mood: mood}) {
		return
	}

	words := strings.Fields(text)
	for i, w := range words {
		chunk := w
		if i < len(words)-1 {
			chunk += " "
		}
		if !send(Frame{Type: FrameToken, Text: chunk}) {
			return
		}
		if delay > 0 && i < len(words)-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}

	send(Frame{Type: FrameDone, TurnID: turnID})
}
