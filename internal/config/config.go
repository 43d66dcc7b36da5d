// Package config decodes the proxy's JSON configuration file (spec
// §6.4): the upstream URL, cache root/expiry/cleanup interval, the
// declarative evaluator's library search roots and prelude, and the
// listen port.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Config is the decoded contents of the JSON configuration file.
type Config struct {
	UpstreamURL           *url.URL `json:"-"`
	UpstreamURLRaw        string   `json:"upstream_url"`
	CacheRoot             string   `json:"cache_root,omitempty"`
	CacheExpiry           Duration `json:"cache_expiry,omitempty"`
	CacheFSCleanupInterval Duration `json:"cache_fs_cleanup_interval,omitempty"`
	LibraryPaths          []string `json:"library_paths,omitempty"`
	PreludePath           string   `json:"prelude_path,omitempty"`
	ListenPort            int      `json:"listen_port,omitempty"`
}

// DefaultCleanupInterval is used when cache_fs_cleanup_interval is unset
// (spec §6.4).
const DefaultCleanupInterval = 60 * time.Second

// DefaultListenPort is used when listen_port is unset.
const DefaultListenPort = 8080

// Load reads and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.UpstreamURLRaw == "" {
		return nil, fmt.Errorf("config: %s: upstream_url is required", path)
	}
	u, err := url.Parse(c.UpstreamURLRaw)
	if err != nil {
		return nil, fmt.Errorf("config: field upstream_url: %w", err)
	}
	c.UpstreamURL = u
	if c.CacheFSCleanupInterval == 0 {
		c.CacheFSCleanupInterval = Duration(DefaultCleanupInterval)
	}
	if c.ListenPort == 0 {
		c.ListenPort = DefaultListenPort
	}
	return &c, nil
}

// durationPattern is the grammar from spec §6.4: an integer followed by
// one of s/m/h/d, converted to seconds.
var durationPattern = regexp.MustCompile(`^(\d+)\s*(s|m|h|d)$`)

// Duration is a time.Duration that marshals/unmarshals using the
// proxy's own duration grammar rather than time.ParseDuration's.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDuration parses s against the spec §6.4 grammar.
func ParseDuration(s string) (Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("config: invalid duration %q (want e.g. \"30s\", \"5m\", \"1h\", \"2d\")", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return Duration(time.Duration(n) * unit), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%ds", int64(time.Duration(d)/time.Second)))
}
