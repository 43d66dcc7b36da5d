package cache

import (
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/fingerprint"
)

func fakeUpstream(status int, body string) Upstream {
	return func() (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"X-Upstream": []string{"1"}, "Date": []string{"ignored"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func drain(t *testing.T, body io.ReadCloser) string {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := body.Close(); err != nil {
		t.Fatalf("close body: %v", err)
	}
	return string(b)
}

func TestWriteThenReadIsHit(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0, nil)
	fp := fingerprint.Fingerprint(1)
	q := chclient.ClickhouseQuery{SQL: "SELECT 1"}

	resp, err := store.Process(fp, q, fakeUpstream(200, "hello world"))
	if err != nil {
		t.Fatalf("write path: %v", err)
	}
	if resp.Cache != "MISS" {
		t.Fatalf("expected MISS, got %s", resp.Cache)
	}
	if got := drain(t, resp.Body); got != "hello world" {
		t.Fatalf("unexpected body: %q", got)
	}

	// the disk-writer goroutine is released asynchronously on Close();
	// poll briefly for the rename to land.
	path := store.pathFor(fp)
	if !waitForFile(path, time.Second) {
		t.Fatalf("expected cache file at %s", path)
	}

	resp2, err := store.Process(fp, q, fakeUpstream(200, "should not be called"))
	if err != nil {
		t.Fatalf("read path: %v", err)
	}
	if resp2.Cache != "HIT" {
		t.Fatalf("expected HIT, got %s", resp2.Cache)
	}
	if got := drain(t, resp2.Body); got != "hello world" {
		t.Fatalf("unexpected cached body: %q", got)
	}
}

func TestOversizedResponseBecomesTooLarge(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 0, nil)
	fp := fingerprint.Fingerprint(2)
	q := chclient.ClickhouseQuery{}

	big := strings.Repeat("x", LimitBytes+1024)
	resp, err := store.Process(fp, q, fakeUpstream(200, big))
	if err != nil {
		t.Fatalf("write path: %v", err)
	}
	if got := drain(t, resp.Body); len(got) != len(big) {
		t.Fatalf("client should still receive the full body, got %d bytes", len(got))
	}

	path := store.pathFor(fp)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("oversized response must not be published to %s", path)
	}

	// next request for the same fingerprint must bypass the cache
	// (TooLarge fast path), not attempt another write.
	var called bool
	var mu sync.Mutex
	resp2, err := store.Process(fp, q, func() (*http.Response, error) {
		mu.Lock()
		called = true
		mu.Unlock()
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: io.NopCloser(strings.NewReader("bypassed"))}, nil
	})
	if err != nil {
		t.Fatalf("passthrough: %v", err)
	}
	mu.Lock()
	ok := called
	mu.Unlock()
	if !ok {
		t.Fatalf("expected passthrough to call upstream")
	}
	if resp2.Cache != "MISS" {
		t.Fatalf("expected passthrough MISS, got %s", resp2.Cache)
	}
	drain(t, resp2.Body)
}

func TestExpiredEntryReEntersWritePath(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Millisecond, nil)
	fp := fingerprint.Fingerprint(3)
	q := chclient.ClickhouseQuery{}

	resp, err := store.Process(fp, q, fakeUpstream(200, "first"))
	if err != nil {
		t.Fatalf("write path: %v", err)
	}
	drain(t, resp.Body)
	if !waitForFile(store.pathFor(fp), time.Second) {
		t.Fatalf("expected cache file")
	}

	time.Sleep(5 * time.Millisecond)

	resp2, err := store.Process(fp, q, fakeUpstream(200, "second"))
	if err != nil {
		t.Fatalf("re-write path: %v", err)
	}
	if resp2.Cache != "MISS" {
		t.Fatalf("expected a fresh MISS after expiry, got %s", resp2.Cache)
	}
	if got := drain(t, resp2.Body); got != "second" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestFilterHeadersDropsDatePrefixed(t *testing.T) {
	fields := FilterHeaders(map[string][]string{
		"Date":       {"Mon"},
		"Date-Added": {"x"},
		"X-Other":    {"y"},
	})
	for _, f := range fields {
		if hasPrefixFold(f.Name, "date") {
			t.Fatalf("date-prefixed header leaked through: %+v", f)
		}
	}
	found := false
	for _, f := range fields {
		if f.Name == "X-Other" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected X-Other to survive filtering")
	}
}

func waitForFile(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
