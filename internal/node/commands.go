package node

import (
	"context"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-node/internal/history"
)

// maxLoggedPayload bounds how much of a control payload is logged and stored.
const maxLoggedPayload = 128

// RecordingCommandHandler logs every control message, records it in history,
// and then passes it to Next (if set).
type RecordingCommandHandler struct {
	History history.Repository
	Next    CommandHandler
	Logger  Logger
}

// HandleCommand records the message and delegates to Next.
func (h *RecordingCommandHandler) HandleCommand(ctx context.Context, topic string, payload []byte) error {
	preview := payloadPreview(payload)

	if h.Logger != nil {
		h.Logger.Info("control message received", "topic", topic, "bytes", len(payload), "payload", preview)
	}
	if h.History != nil {
		hctx, cancel := context.WithTimeout(ctx, historyTimeout)
		err := h.History.RecordEvent(hctx, history.Event{
			OccurredAt: time.Now(),
			Kind:       history.KindCommand,
			To:         topic,
			Detail:     preview,
		})
		cancel()
		if err != nil && h.Logger != nil {
			h.Logger.Warn("recording control message failed", "error", err)
		}
	}

	if h.Next == nil {
		return nil
	}
	return h.Next.HandleCommand(ctx, topic, payload)
}

// payloadPreview renders payload for logs: truncated text, or a quoted
// escape of binary data.
func payloadPreview(payload []byte) string {
	truncated := len(payload) > maxLoggedPayload
	if truncated {
		payload = payload[:maxLoggedPayload]
	}

	var s string
	if utf8.Valid(payload) {
		s = string(payload)
	} else {
		s = strconv.Quote(string(payload))
	}
	if truncated {
		s += "..."
	}
	return s
}
