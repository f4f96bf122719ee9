package scheme

import (
	"maps"

	"github.com/seantiz/intercept/stash"
)

// Request is an immutable snapshot of an intercepted request, captured once
// at dispatch time. It holds no reference to the native request object, so it
// stays valid even after the toolkit cancels or destroys the original.
type Request struct {
	url     string
	method  string
	headers map[string]string
	body    stash.Stash
}

// NewRequest builds a snapshot. The header map is copied; the body stash is
// adopted as-is (backends pass an owned copy of the native body).
func NewRequest(url, method string, headers map[string]string, body stash.Stash) Request {
	h := make(map[string]string, len(headers))
	maps.Copy(h, headers)
	return Request{
		url:     url,
		method:  method,
		headers: h,
		body:    body,
	}
}

// URL returns the full request URL, including the intercepted scheme.
func (r Request) URL() string {
	return r.url
}

// Method returns the request method.
func (r Request) Method() string {
	return r.method
}

// Content returns the request body.
func (r Request) Content() stash.Stash {
	return r.body
}

// Headers returns a copy of the request headers.
func (r Request) Headers() map[string]string {
	h := make(map[string]string, len(r.headers))
	maps.Copy(h, r.headers)
	return h
}

// Header returns a single header value, or "" when absent.
func (r Request) Header(name string) string {
	return r.headers[name]
}
