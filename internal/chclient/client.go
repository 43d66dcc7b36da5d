// Package chclient implements the HTTP client that forwards compiled SQL
// to the upstream analytic database (spec §4.E, §6.2).
package chclient

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clickproxy/clickproxy/internal/compr"
)

// DefaultTimeout bounds the upstream connection attempt; it does not
// bound the body-streaming phase of a request.
const DefaultTimeout = 30 * time.Second

// ClickhouseQuery is the canonical record of one request to forward
// upstream: the SQL text, ordered query parameters, a forwarded header
// subset, and the negotiated compression tag. This is also the record
// the fingerprint (internal/fingerprint) hashes over.
type ClickhouseQuery struct {
	SQL             string
	Params          []KV // ordered, preserves client query-string order
	ForwardHeaders  []KV // ordered subset of request headers to forward
	Compression     compr.Tag
}

// KV is an ordered key/value pair, used where spec calls for an "ordered
// map" (query params, forwarded headers) rather than Go's unordered map.
type KV struct {
	Key   string
	Value string
}

// Client sends ClickhouseQuery values to a configured upstream endpoint.
type Client struct {
	HTTP *http.Client
	URL  *url.URL
}

// New builds a Client targeting upstreamURL.
func New(upstreamURL *url.URL) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: DefaultTimeout}).DialContext
	return &Client{
		HTTP: &http.Client{Transport: transport, Timeout: 0}, // streaming responses: no blanket deadline
		URL:  upstreamURL,
	}
}

// PreparedRequest is a built, not-yet-sent *http.Request together with
// the query it was built from, so a caller (the cache layer, most often)
// can inspect the query before sending.
type PreparedRequest struct {
	Query   ClickhouseQuery
	Request *http.Request
}

// Prepare builds the outgoing upstream HTTP request for q, per spec
// §4.E/§6.2: chunked transfer, forwarded query params, forwarded header
// subset, Accept-Encoding set from the negotiated compression tag.
func (c *Client) Prepare(q ClickhouseQuery) (*PreparedRequest, error) {
	req, err := http.NewRequest(http.MethodPost, c.URL.String(), strings.NewReader(q.SQL))
	if err != nil {
		return nil, err
	}
	req.TransferEncoding = []string{"chunked"}

	query := req.URL.Query()
	for _, kv := range q.Params {
		query.Add(kv.Key, kv.Value)
	}
	req.URL.RawQuery = query.Encode()

	for _, kv := range q.ForwardHeaders {
		req.Header.Add(kv.Key, kv.Value)
	}
	if q.Compression != compr.None {
		req.Header.Set("Accept-Encoding", q.Compression.Name())
	} else {
		req.Header.Del("Accept-Encoding")
	}

	return &PreparedRequest{Query: q, Request: req}, nil
}

// UpstreamError wraps a non-success upstream response: status and a
// decoded body. Mapped to 5xx at the HTTP edge (spec §7).
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Body)
}

// Send issues the prepared request and returns the raw *http.Response on
// success. On a non-success status, it reads and decodes the body (per
// the response's own Content-Encoding) and returns *UpstreamError; the
// caller never has to special-case decompression of error bodies.
func (pr *PreparedRequest) Send(client *http.Client) (*http.Response, error) {
	resp, err := client.Do(pr.Request)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	tag := compr.FromHeader(resp.Header, "Content-Encoding")
	decoded, decErr := compr.Decode(tag, body)
	if decErr != nil {
		decoded = body
	}
	return nil, &UpstreamError{Status: resp.StatusCode, Body: string(decoded)}
}

// UpstreamPingError is raised when the connectivity ping (SELECT 1+1)
// returns anything other than the literal trimmed "2".
type UpstreamPingError struct {
	Actual string
}

func (e *UpstreamPingError) Error() string {
	return fmt.Sprintf("unexpected ping response: %q", e.Actual)
}

// Ping issues "SELECT 1+1" and verifies the upstream responds with "2".
func (c *Client) Ping() error {
	pr, err := c.Prepare(ClickhouseQuery{SQL: "SELECT 1+1"})
	if err != nil {
		return err
	}
	resp, err := pr.Send(c.HTTP)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if got := strings.TrimSpace(string(body)); got != "2" {
		return &UpstreamPingError{Actual: got}
	}
	return nil
}
