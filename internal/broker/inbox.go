package broker

import "sync/atomic"

// inbox is a bounded FIFO of inbound messages.
//
// offer never blocks: when full, the newest message is dropped.
type inbox struct {
	ch        chan Message
	dropped   atomic.Uint64
	discarded atomic.Uint64
}

func newInbox(size int) *inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &inbox{ch: make(chan Message, size)}
}

func (b *inbox) offer(m Message) error {
	select {
	case b.ch <- m:
		return nil
	default:
		b.dropped.Add(1)
		return ErrInboxFull
	}
}

// take removes up to limit queued messages; limit <= 0 takes everything queued.
func (b *inbox) take(limit int) []Message {
	var out []Message
	for limit <= 0 || len(out) < limit {
		select {
		case m := <-b.ch:
			out = append(out, m)
		default:
			return out
		}
	}
	return out
}

// purge discards everything queued and returns how many were removed.
func (b *inbox) purge() int {
	n := len(b.take(0))
	b.discarded.Add(uint64(n))
	return n
}

func (b *inbox) size() int {
	return len(b.ch)
}
