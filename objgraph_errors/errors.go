// Provides common objgraph error definitions.
package objgraph_errors

import "errors"

var (
	// permanent rejections, never buffered
	ErrMalformed     = errors.New("objgraph: malformed operation")
	ErrObjectDeleted = errors.New("objgraph: object was deleted")

	// unsatisfied causal prerequisite, the op waits in the buffer
	ErrCausality = errors.New("objgraph: refs an unknown entity")
	ErrBuffered  = errors.New("objgraph: operation buffered")

	ErrObjectUnknown   = errors.New("objgraph: unknown object")
	ErrPropertyUnknown = errors.New("objgraph: unknown property")
	ErrEntryUnknown    = errors.New("objgraph: unknown array entry")
	ErrEntryConflict   = errors.New("objgraph: entry id reused with another predecessor")
	ErrNotObject       = errors.New("objgraph: not a plain object")
	ErrNotArray        = errors.New("objgraph: not an array")
	ErrIndexOutOfRange = errors.New("objgraph: array index out of range")

	ErrSubscriptionUnknown = errors.New("objgraph: subscription unknown")
	ErrClosed              = errors.New("objgraph: replica closed")
)
