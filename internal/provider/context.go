// SPDX-License-Identifier: AGPL-3.0-only
package provider

// Context is the vendor-shaped conversation buffer for one adapter instance.
// Like message.History it is append-only with value semantics: Append returns
// a grown copy, so callers commit a turn by assignment and abort one by
// dropping the candidate value.
type Context[M any] struct {
	turns []M
}

// Append returns a new Context with turns added at the end.
func (c Context[M]) Append(turns ...M) Context[M] {
	out := make([]M, 0, len(c.turns)+len(turns))
	out = append(out, c.turns...)
	out = append(out, turns...)
	return Context[M]{turns: out}
}

// Turns returns a copy of the ordered vendor turns.
func (c Context[M]) Turns() []M {
	out := make([]M, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns in the context.
func (c Context[M]) Len() int { return len(c.turns) }
