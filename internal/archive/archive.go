// Package archive retains raw fetched article pages. Retention is optional
// and best effort; the crawl never depends on it.
package archive

import "context"

// Archive stores one raw page under a key and returns a backend URI.
type Archive interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}
