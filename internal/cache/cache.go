// Package cache implements the streaming, content-addressed disk cache:
// a write path that tees an upstream response to both the client and a
// temp file published atomically on success, and a read path that serves
// a published file directly, subject to an optional expiry.
package cache

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/fingerprint"
	"github.com/clickproxy/clickproxy/internal/metrics"
)

// LimitBytes is the cache entry size cap: a response larger than this is
// never written to disk, though it still streams through to the client.
const LimitBytes = 10 << 20 // 10 MiB

// teeChanDepth bounds the tee channel between the client-facing
// writer and the disk-writer goroutine.
const teeChanDepth = 8

// Response is what Process hands back to the HTTP layer: a status, an
// ordered header set, a body to copy to the client, and cache-visible
// metadata for the X-Cache/Age response headers.
type Response struct {
	Status  int
	Headers []HeaderField
	Body    io.ReadCloser
	Cache   string // "HIT" or "MISS"
	Age     int    // seconds; only meaningful when Cache == "HIT"
}

// Upstream is the subset of chclient.Client.Send this package depends on,
// named so tests can stub it without standing up a real HTTP server.
type Upstream func() (*http.Response, error)

// Store owns the cache directory and the in-memory single-flight table.
type Store struct {
	Root    string
	Table   *fingerprint.Table
	Expiry  time.Duration // zero means "never expire"
	Metrics *metrics.Metrics
}

// NewStore builds a Store rooted at root.
func NewStore(root string, expiry time.Duration, m *metrics.Metrics) *Store {
	return &Store{
		Root:    root,
		Table:   fingerprint.NewTable(),
		Expiry:  expiry,
		Metrics: m,
	}
}

// pathFor returns the on-disk path for fp: the decimal u64 fingerprint
// as a filename directly under Root, no subdirectories (spec §6.3).
func (s *Store) pathFor(fp fingerprint.Fingerprint) string {
	return filepath.Join(s.Root, fmt.Sprintf("%d", uint64(fp)))
}

// Process implements the per-request cache contract (spec §4.G): acquire
// the per-fingerprint lease, dispatch on its status, and return a
// Response the HTTP layer can stream to the client.
func (s *Store) Process(fp fingerprint.Fingerprint, query chclient.ClickhouseQuery, upstream Upstream) (*Response, error) {
	lease := s.Table.Acquire(fp)
	defer func() {
		// a panic in the write path must still release the lease so a
		// future request for the same fingerprint is not deadlocked;
		// it re-enters as a fresh write attempt.
		if r := recover(); r != nil {
			lease.Release(fingerprint.None)
			panic(r)
		}
	}()

	switch lease.Status {
	case fingerprint.Processed:
		resp, ok := s.tryRead(fp)
		if ok {
			lease.Release(fingerprint.Processed)
			if s.Metrics != nil {
				s.Metrics.CacheHitsTotal.Inc()
			}
			return resp, nil
		}
		// stale (expired) or unreadable: fall through to a fresh write.
		fallthrough
	case fingerprint.None:
		// write() transfers ownership of lease to the disk-writer
		// goroutine: the mutex stays held, per spec ordering guarantee
		// (iii), until that goroutine has recorded the final status.
		resp, err := s.write(fp, query, upstream, lease)
		if err != nil {
			lease.Release(fingerprint.None)
		}
		return resp, err
	case fingerprint.TooLarge:
		lease.Release(fingerprint.TooLarge)
		return s.passthrough(upstream)
	default:
		lease.Release(lease.Status)
		return nil, fmt.Errorf("cache: unknown entry status %v", lease.Status)
	}
}

// tryRead attempts to serve fp from disk. It returns ok=false if the
// file is missing, unreadable, or expired, in which case the caller
// re-enters the write path.
func (s *Store) tryRead(fp fingerprint.Fingerprint) (*Response, bool) {
	path := s.pathFor(fp)
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	br := bufio.NewReader(f)
	header, err := DecodeHeader(br)
	if err != nil {
		f.Close()
		return nil, false
	}
	if s.Expiry > 0 && time.Since(header.Date) > s.Expiry {
		f.Close()
		return nil, false
	}
	age := int(time.Since(header.Date).Seconds())
	if age < 0 {
		age = 0
	}
	return &Response{
		Status:  header.Status,
		Headers: header.Headers,
		Body:    &readCloserWithExtra{r: br, c: f},
		Cache:   "HIT",
		Age:     age,
	}, true
}

// readCloserWithExtra lets the body reader continue pulling from a
// bufio.Reader that already buffered past the header boundary, while
// still closing the underlying file.
type readCloserWithExtra struct {
	r io.Reader
	c io.Closer
}

func (x *readCloserWithExtra) Read(p []byte) (int, error) { return x.r.Read(p) }
func (x *readCloserWithExtra) Close() error               { return x.c.Close() }

// passthrough serves an upstream response directly, bypassing the cache
// entirely (the TooLarge fast path).
func (s *Store) passthrough(upstream Upstream) (*Response, error) {
	resp, err := upstream()
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.UpstreamErrorsTotal.Inc()
		}
		return nil, err
	}
	return &Response{
		Status:  resp.StatusCode,
		Headers: FilterHeaders(resp.Header),
		Body:    resp.Body,
		Cache:   "MISS",
	}, nil
}

// write executes the write path (spec §4.G steps 1-6): send upstream,
// open the tmp file, tee the body to the client and the disk writer, and
// finalize based on accumulated size.
func (s *Store) write(fp fingerprint.Fingerprint, query chclient.ClickhouseQuery, upstream Upstream, lease *fingerprint.Lease) (*Response, error) {
	resp, err := upstream()
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.UpstreamErrorsTotal.Inc()
		}
		return nil, err
	}

	path := s.pathFor(fp)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("cache: mkdir: %w", err)
	}
	tmp, err := os.Create(path + ".tmp")
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("cache: create tmp: %w", err)
	}

	header := CacheHeader{
		Status:        resp.StatusCode,
		Date:          time.Now().UTC(),
		Headers:       FilterHeaders(resp.Header),
		OriginalQuery: &query,
	}
	if err := EncodeHeader(tmp, header); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		resp.Body.Close()
		return nil, fmt.Errorf("cache: write header: %w", err)
	}

	// ownership of lease passes to the tee writer from here: it is
	// released only once the disk-writer goroutine records the final
	// EntryStatus, satisfying ordering guarantee (iii).
	tee := newTeeWriter(resp.Body, tmp, path, s.Metrics, lease)
	result := &Response{
		Status:  resp.StatusCode,
		Headers: header.Headers,
		Body:    tee,
		Cache:   "MISS",
	}
	return result, nil
}
