// Package source fetches speed-tested edge IPs and turns them into
// per-line candidate pools.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

// WindowSize is the number of top-ranked candidates kept per line.
const WindowSize = 3

// DefaultTimeout bounds a single Fetch when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Candidate is one speed-test result.
type Candidate struct {
	IP      string  `json:"ip"`
	Speed   float64 `json:"speed"`
	Latency float64 `json:"latency"`
}

// response is the body returned by the ranking service. Data is keyed by
// IP version ("v4", "v6") and then by ISP code.
type response struct {
	Success bool                              `json:"success"`
	Data    map[string]map[string][]Candidate `json:"data"`
}

// Pools maps each line to its ordered candidate addresses.
type Pools map[dns.Line][]string

// Empty reports whether no line has any candidate.
func (p Pools) Empty() bool {
	for _, ips := range p {
		if len(ips) > 0 {
			return false
		}
	}
	return true
}

// Rank sorts candidates by speed descending, then latency ascending, and
// returns at most WindowSize of them. The input is not modified.
func Rank(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Speed != out[j].Speed {
			return out[i].Speed > out[j].Speed
		}
		return out[i].Latency < out[j].Latency
	})
	if len(out) > WindowSize {
		out = out[:WindowSize]
	}
	return out
}

// Select ranks every ISP bucket and maps it onto its line. Lines whose ISP
// code has no bucket take the bucket named by fallback, if any.
func Select(buckets map[string][]Candidate, fallback string) Pools {
	pools := Pools{}
	for _, l := range dns.Lines {
		bucket, ok := buckets[l.ISPCode()]
		if !ok && fallback != "" {
			bucket = buckets[strings.ToUpper(fallback)]
		}
		ranked := Rank(bucket)
		if len(ranked) == 0 {
			continue
		}
		ips := make([]string, 0, len(ranked))
		for _, c := range ranked {
			if c.IP != "" {
				ips = append(ips, c.IP)
			}
		}
		pools[l] = ips
	}
	return pools
}

// Config configures a Client.
type Config struct {
	URL      string
	Key      string        // sent as the "key" query parameter when set
	Fallback string        // ISP code used for lines without a bucket
	Timeout  time.Duration // 0 = DefaultTimeout
}

// Client fetches candidate pools from the ranking service.
type Client struct {
	cfg    Config
	client *http.Client
	log    logr.Logger
}

// New creates a Client.
func New(log logr.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

// Fetch returns candidate pools for recordType ("A" selects IPv4, anything
// else IPv6). Any failure is logged and yields empty pools.
func (c *Client) Fetch(ctx context.Context, recordType string) Pools {
	version := dns.IPVersion(recordType)
	buckets, err := c.fetch(ctx, version)
	if err != nil {
		c.log.Error(err, "candidate source unavailable, skipping run", "url", c.cfg.URL)
		return Pools{}
	}
	pools := Select(buckets, c.cfg.Fallback)
	for l, ips := range pools {
		c.log.V(1).Info("selected candidates", "line", l, "ips", ips)
	}
	return pools
}

func (c *Client) fetch(ctx context.Context, version string) (map[string][]Candidate, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if c.cfg.Key != "" {
		q := u.Query()
		q.Set("key", c.cfg.Key)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("source returned status %d: %s", resp.StatusCode, string(body))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}
	if !r.Success {
		return nil, fmt.Errorf("source reported success=false")
	}
	return r.Data[version], nil
}
