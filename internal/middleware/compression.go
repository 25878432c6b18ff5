// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// DefaultMaxBodyBytes caps request bodies after decompression.
const DefaultMaxBodyBytes = 1 << 20

// gzipReaderPool pools gzip readers to reduce allocations
var gzipReaderPool sync.Pool

type gzipBody struct {
	*gzip.Reader
	raw io.ReadCloser
}

func (b *gzipBody) Close() error {
	err := b.raw.Close()
	gzipReaderPool.Put(b.Reader)
	return err
}

// Decompress transparently inflates gzip encoded request bodies, which
// submission clients use for large batches, and caps the decoded body at
// maxBytes. A body that is not valid gzip is handed to onInvalid, or
// rejected with a plain 400 when onInvalid is nil.
func Decompress(maxBytes int64, onInvalid http.HandlerFunc) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") {
				zr, err := newGzipReader(r.Body)
				if err != nil {
					if onInvalid != nil {
						onInvalid(w, r)
						return
					}
					http.Error(w, "invalid gzip body", http.StatusBadRequest)
					return
				}
				r.Body = &gzipBody{Reader: zr, raw: r.Body}
				r.Header.Del("Content-Encoding")
				r.Header.Del("Content-Length")
				r.ContentLength = -1
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newGzipReader(body io.Reader) (*gzip.Reader, error) {
	if zr, ok := gzipReaderPool.Get().(*gzip.Reader); ok {
		if err := zr.Reset(body); err != nil {
			gzipReaderPool.Put(zr)
			return nil, err
		}
		return zr, nil
	}
	return gzip.NewReader(body)
}
