package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"log-manager/internal/domain"
)

var gzipMagic = []byte{0x1f, 0x8b}

// OpenObject opens key from store and transparently decompresses it when the
// body starts with the gzip magic bytes.
func OpenObject(ctx context.Context, store domain.ObjectStore, key string) (io.ReadCloser, error) {
	body, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decompress(body)
}

// Decompress wraps rc in a gzip reader when its content is gzip. Closing the
// result closes rc.
func Decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = rc.Close()
		return nil, fmt.Errorf("read object header: %w", err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return &readCloser{Reader: br, closer: rc}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return &gzipReadCloser{zr: zr, closer: rc}, nil
}

// CountRecords counts the non-empty lines of a newline-delimited JSON stream.
func CountRecords(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var n int64
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("scan records: %w", err)
	}
	return n, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error { return r.closer.Close() }

type gzipReadCloser struct {
	zr     *gzip.Reader
	closer io.Closer
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	if err := g.closer.Close(); err != nil {
		return err
	}
	return zerr
}
