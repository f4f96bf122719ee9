package scheme

import "github.com/seantiz/intercept/stash"

// Backend is the capability contract every native toolkit adapter implements.
// Each adapter translates the executor's abstract transitions into its
// toolkit's actual completion calls and stores its per-request native object
// behind a HandleTable keyed by the opaque request id.
//
// All methods except Marshal and IsConnected are invoked from inside a
// Marshal callback, so an adapter may assume they run on the owning thread
// for that request. Calls naming an id that has been cancelled (removed from
// the table) must be silent no-ops; errors raised by an already-destroyed
// native object are caught at the adapter boundary and discarded.
type Backend interface {
	// DeliverFull sends a complete payload. Pre-stream only; terminal.
	DeliverFull(id string, resp Response)

	// DeliverError signals a terminal native error. Pre-stream only.
	DeliverError(id string, err Error)

	// BeginStream commits headers and status once and opens the transport.
	// A non-nil error means the transport could not be acquired; the
	// executor then fails the request with ErrFailed.
	BeginStream(id string, resp StreamResponse) error

	// PushChunk appends one chunk to an open stream. Chunk order must be
	// preserved end-to-end.
	PushChunk(id string, data stash.Stash)

	// EndStream signals end-of-stream. Terminal.
	EndStream(id string)

	// IsConnected reports point-in-time consumer liveness. It may be called
	// from any goroutine.
	IsConnected(id string) bool

	// Marshal routes fn to the thread allowed to touch the native object
	// for id, preserving submission order per request. Toolkits with a
	// single designated thread post to it regardless of the caller; fn is
	// dropped when the request is already gone.
	Marshal(id string, fn func())
}
