// Package content provides the sample resolvers served by the demo bridge:
// a directory server, a live-reload event stream, a POST echo, and a
// throughput byte-stream generator.
package content

import (
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/seantiz/intercept/scheme"
	"github.com/seantiz/intercept/stash"
)

const defaultDocument = "index.html"

// NewDir returns a resolver serving files beneath root over an intercepted
// scheme. Paths escaping the root are denied; missing files map to
// not_found.
func NewDir(root string, logger *slog.Logger) scheme.Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return func(req scheme.Request, exec *scheme.Executor) {
		u, err := url.Parse(req.URL())
		if err != nil {
			exec.Reject(scheme.ErrInvalid)
			return
		}

		// Intercepted URLs carry the document path in the opaque/host+path
		// part, e.g. app://sub/dir/page.html.
		rel := strings.TrimPrefix(path.Join(u.Host, u.Path), "/")
		if rel == "" || rel == "." {
			rel = defaultDocument
		}
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			exec.Reject(scheme.ErrDenied)
			return
		}

		full := filepath.Join(root, filepath.FromSlash(rel))

		data, err := os.ReadFile(full)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			exec.Reject(scheme.ErrNotFound)
			return
		case errors.Is(err, fs.ErrPermission):
			exec.Reject(scheme.ErrDenied)
			return
		case err != nil:
			logger.Error("read content file", "path", full, "error", err)
			exec.Reject(scheme.ErrFailed)
			return
		}

		exec.Resolve(scheme.Response{
			Data: stash.Own(data),
			Mime: mimeFor(rel),
		})
	}
}

func mimeFor(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
