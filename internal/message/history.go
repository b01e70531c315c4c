// SPDX-License-Identifier: AGPL-3.0-only
package message

// History is the canonical conversation context: an ordered, append-only
// sequence of messages. Append returns a new value instead of mutating in
// place, so a failed request/response cycle can simply discard its candidate
// history and leave the committed one untouched.
type History struct {
	msgs []Message
}

// Append returns a new History with msgs added at the end. The receiver is
// left unchanged.
func (h History) Append(msgs ...Message) History {
	out := make([]Message, 0, len(h.msgs)+len(msgs))
	out = append(out, h.msgs...)
	out = append(out, msgs...)
	return History{msgs: out}
}

// Messages returns a copy of the ordered message sequence.
func (h History) Messages() []Message {
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of messages in the history.
func (h History) Len() int { return len(h.msgs) }

// Last returns the most recent message and true, or a zero Message and false
// when the history is empty.
func (h History) Last() (Message, bool) {
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}
