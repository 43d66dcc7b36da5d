package cache

import (
	"fmt"
	"io"
	"time"

	"github.com/amazon-ion/ion-go/ion"

	"github.com/clickproxy/clickproxy/internal/chclient"
)

// headerDecodeLimit bounds how many bytes DecodeHeader will read while
// looking for the header value, guarding against a corrupt file with no
// terminator consuming unbounded memory.
const headerDecodeLimit = 100 << 20 // 100 MiB

// HeaderField is an ordered header entry, preserving insertion order the
// way a Go map could not.
type HeaderField struct {
	Name  string `ion:"name"`
	Value string `ion:"value"`
}

// CacheHeader is the on-disk envelope written before the cached response
// body: status code, capture time, the filtered response header set, and
// (optionally) the query that produced the body, for diagnostics.
type CacheHeader struct {
	Status        int                      `ion:"status"`
	Date          time.Time                `ion:"date"`
	Headers       []HeaderField            `ion:"headers"`
	OriginalQuery *chclient.ClickhouseQuery `ion:"original_query,omitempty"`
}

// dateHeaderPrefix matches "Date", "date", "DATE-ish" prefixed header
// names, which are dropped before storage: the capture time already
// supersedes any upstream Date header, and re-serving a stale Date header
// on a cache hit would be actively misleading.
const dateHeaderPrefix = "date"

// FilterHeaders copies src into an ordered HeaderField slice, dropping
// any header whose name starts with "date" (case-insensitive) and
// preserving the order in which http.Header iterates... note that
// net/http.Header is itself a map, so true client wire order is not
// recoverable here; this preserves Go's (stable per-process, arbitrary)
// map iteration order, which is what the caller actually has available.
func FilterHeaders(headers map[string][]string) []HeaderField {
	out := make([]HeaderField, 0, len(headers))
	for name, values := range headers {
		if hasPrefixFold(name, dateHeaderPrefix) {
			continue
		}
		for _, v := range values {
			out = append(out, HeaderField{Name: name, Value: v})
		}
	}
	return out
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// EncodeHeader serializes h to w as a single self-delimiting ion value.
func EncodeHeader(w io.Writer, h CacheHeader) error {
	enc := ion.NewEncoder(w)
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("cache: encode header: %w", err)
	}
	return nil
}

// DecodeHeader reads exactly one ion value (the CacheHeader) from r and
// returns it. Because ion values are self-delimiting, the decoder reads
// no further than the header's own bytes; the caller can continue
// reading r immediately afterward to obtain the opaque response body
// that follows, with no length prefix needed.
func DecodeHeader(r io.Reader) (CacheHeader, error) {
	dec := ion.NewDecoder(ion.NewReader(io.LimitReader(r, headerDecodeLimit)))
	var h CacheHeader
	if err := dec.DecodeTo(&h); err != nil {
		return CacheHeader{}, fmt.Errorf("cache: decode header: %w", err)
	}
	return h, nil
}
