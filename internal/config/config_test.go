package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h", time.Hour},
		{"2d", 48 * time.Hour},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", c.in, err)
		}
		if time.Duration(got) != c.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", c.in, time.Duration(got), c.want)
		}
	}
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	for _, in := range []string{"30", "s30", "1.5h", "-5s", ""} {
		if _, err := ParseDuration(in); err == nil {
			t.Fatalf("ParseDuration(%q): expected error", in)
		}
	}
}

func TestDurationJSONRoundTrip(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"1h"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if time.Duration(d) != time.Hour {
		t.Fatalf("got %v, want 1h", time.Duration(d))
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Duration
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal %s: %v", out, err)
	}
	if back != d {
		t.Fatalf("round trip: got %v, want %v", time.Duration(back), time.Duration(d))
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"upstream_url": "http://localhost:8123"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.UpstreamURL.Host != "localhost:8123" {
		t.Fatalf("unexpected upstream URL: %v", c.UpstreamURL)
	}
	if time.Duration(c.CacheFSCleanupInterval) != DefaultCleanupInterval {
		t.Fatalf("expected default cleanup interval, got %v", time.Duration(c.CacheFSCleanupInterval))
	}
	if c.ListenPort != DefaultListenPort {
		t.Fatalf("expected default listen port, got %d", c.ListenPort)
	}
}

func TestLoadRequiresUpstreamURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing upstream_url")
	}
}

func TestLoadParsesCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"upstream_url": "http://localhost:8123", "cache_expiry": "5m", "cache_root": "/tmp/cache"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if time.Duration(c.CacheExpiry) != 5*time.Minute {
		t.Fatalf("unexpected cache expiry: %v", time.Duration(c.CacheExpiry))
	}
}
