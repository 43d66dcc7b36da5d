package compr

import (
	"net/http"
	"strings"
)

// Tag is the compression scheme named in a ClickhouseQuery's
// compression_tag field (spec §3): either "zstd" or empty (none).
type Tag string

const (
	None Tag = ""
	Zstd Tag = "zstd"
)

// Name returns the Accept-Encoding/Content-Encoding token for the tag.
func (t Tag) Name() string {
	return string(t)
}

// FromHeader inspects a header value (e.g. Accept-Encoding) for the zstd
// token and returns the matching Tag, mirroring the upstream client
// compression negotiation in spec §4.E/§6.1.
func FromHeader(h http.Header, name string) Tag {
	v := h.Get(name)
	if strings.Contains(strings.ToLower(v), string(Zstd)) {
		return Zstd
	}
	return None
}

// Decode decompresses body per tag. None is a no-op; Zstd decodes the
// whole buffer via the shared zstd decoder.
func Decode(tag Tag, body []byte) ([]byte, error) {
	switch tag {
	case Zstd:
		return DecodeZstd(body, nil)
	default:
		return body, nil
	}
}
