// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
)

var gzipReaders sync.Pool

var compressResponses = middleware.Compress(gzip.DefaultCompression)

// withGZip inflates gzip request bodies and compresses JSON responses for
// clients that accept gzip.
func withGZip(next http.Handler) http.Handler {
	compressed := compressResponses(next)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Body == nil || !strings.Contains(req.Header.Get("Content-Encoding"), "gzip") {
			compressed.ServeHTTP(w, req)
			return
		}

		zr, _ := gzipReaders.Get().(*gzip.Reader)
		var err error
		if zr == nil {
			zr, err = gzip.NewReader(req.Body)
		} else {
			err = zr.Reset(req.Body)
		}
		if err != nil {
			http.Error(w, "invalid gzip body", http.StatusBadRequest)
			return
		}
		defer gzipReaders.Put(zr)

		req.Body = inflatedBody{Reader: zr, raw: req.Body}
		req.Header.Del("Content-Encoding")
		req.ContentLength = -1
		compressed.ServeHTTP(w, req)
	})
}

// inflatedBody closes the original body when the handler closes the request.
type inflatedBody struct {
	*gzip.Reader
	raw interface{ Close() error }
}

func (b inflatedBody) Close() error {
	_ = b.Reader.Close()
	return b.raw.Close()
}
