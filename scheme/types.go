package scheme

import (
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/seantiz/intercept/stash"
)

// Error is the closed set of failure kinds a resolver can report. Each
// backend maps these onto its own native error or status representation.
type Error int16

const (
	ErrNotFound Error = 404
	ErrInvalid  Error = 400
	ErrDenied   Error = 401
	ErrFailed   Error = -1
)

// Code returns the numeric code surfaced downstream.
func (e Error) Code() int {
	return int(e)
}

func (e Error) String() string {
	switch e {
	case ErrNotFound:
		return "not_found"
	case ErrInvalid:
		return "invalid"
	case ErrDenied:
		return "denied"
	case ErrFailed:
		return "failed"
	default:
		return "error(" + strconv.Itoa(int(e)) + ")"
	}
}

// Response is a complete, single-shot payload delivered via Executor.Resolve.
// A zero Status is delivered as 200.
type Response struct {
	Data    stash.Stash
	Mime    string
	Headers map[string]string
	Status  int
}

// StreamResponse carries the headers committed when a stream starts. The body
// follows as a separate sequence of chunks. A zero Status is delivered as 200.
type StreamResponse struct {
	Mime    string
	Headers map[string]string
	Status  int
}

// Resolver handles one intercepted request. It may complete synchronously or
// retain the executor and drive it from a spawned goroutine.
type Resolver func(Request, *Executor)

// StreamWriter is the streaming-verb view of an Executor handle. Handlers
// that only stream conventionally take a *StreamWriter.
type StreamWriter = Executor

// NewID returns a fresh opaque per-request id.
func NewID() string {
	return ulid.Make().String()
}
