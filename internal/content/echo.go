package content

import (
	"fmt"

	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

// NewEcho returns a resolver echoing the request body back. An empty body
// answers 204 with no payload.
func NewEcho() scheme.Resolver {
	return func(req scheme.Request, exec *scheme.Executor) {
		body := req.Content()
		if body.Size() == 0 {
			exec.Resolve(scheme.Response{Status: 204})
			return
		}

		mime := req.Header("Content-Type")
		if mime == "" {
			mime = "application/octet-stream"
		}
		exec.Resolve(scheme.Response{
			Data: stash.From(body.Data()),
			Mime: mime,
		})
	}
}

// NewBench returns a resolver streaming chunks patterned bytes of chunkSize
// each, for exercising streaming throughput end to end. The producer runs on
// its own goroutine and stops early when the consumer disconnects.
func NewBench(chunkSize, chunks int) scheme.Resolver {
	return func(req scheme.Request, exec *scheme.Executor) {
		exec.Start(scheme.StreamResponse{
			Mime: "application/octet-stream",
			Headers: map[string]string{
				"X-Chunks": fmt.Sprintf("%d", chunks),
			},
		})

		go func() {
			buf := make([]byte, chunkSize)
			for i := range chunks {
				if !exec.Valid() {
					return
				}
				for j := range buf {
					buf[j] = byte((i + j) % 251)
				}
				exec.Write(stash.From(buf))
			}
			exec.Finish()
		}()
	}
}
