// Package iohelper provides helpers for safely reading HTTP response
// bodies with size limits.
package iohelper

import "io"

// ReadBody reads from r up to maxSize bytes. A nil reader yields an empty
// slice. The limit prevents memory exhaustion from oversized target
// responses.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose consumes any remaining data from r and closes it if it is
// a ReadCloser, so the underlying connection can be reused for keep-alive.
// Always returns nil to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
