package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	logrtesting "github.com/go-logr/logr/testing"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

func TestRank_OrderAndWindow(t *testing.T) {
	in := []Candidate{
		{IP: "a", Speed: 10, Latency: 50},
		{IP: "b", Speed: 30, Latency: 90},
		{IP: "c", Speed: 30, Latency: 40},
		{IP: "d", Speed: 5, Latency: 10},
		{IP: "e", Speed: 20, Latency: 10},
	}

	got := Rank(in)
	want := []string{"c", "b", "e"}
	if len(got) != WindowSize {
		t.Fatalf("expected %d candidates, got %d", WindowSize, len(got))
	}
	for i, c := range got {
		if c.IP != want[i] {
			t.Errorf("position %d: got %q, want %q", i, c.IP, want[i])
		}
	}
	if in[0].IP != "a" {
		t.Error("Rank must not reorder its input")
	}
}

func TestRank_Short(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if got := Rank([]Candidate{{IP: "x"}}); len(got) != 1 {
		t.Errorf("expected 1 result, got %v", got)
	}
}

func TestSelect_MapsBucketsToLines(t *testing.T) {
	buckets := map[string][]Candidate{
		"CM": {{IP: "1.0.0.1", Speed: 1}, {IP: "1.0.0.2", Speed: 2}},
		"CU": {{IP: "2.0.0.1", Speed: 1}},
		"CT": {{IP: "3.0.0.1", Speed: 3}, {IP: "3.0.0.2", Speed: 2}, {IP: "3.0.0.3", Speed: 1}, {IP: "3.0.0.4", Speed: 0}},
	}

	tests := []struct {
		name     string
		fallback string
		want     Pools
	}{
		{
			name:     "no fallback",
			fallback: "",
			want: Pools{
				dns.LineMobile:  {"1.0.0.2", "1.0.0.1"},
				dns.LineUnicom:  {"2.0.0.1"},
				dns.LineTelecom: {"3.0.0.1", "3.0.0.2", "3.0.0.3"},
			},
		},
		{
			name:     "telecom fallback",
			fallback: "ct",
			want: Pools{
				dns.LineMobile:  {"1.0.0.2", "1.0.0.1"},
				dns.LineUnicom:  {"2.0.0.1"},
				dns.LineTelecom: {"3.0.0.1", "3.0.0.2", "3.0.0.3"},
				dns.LineOversea: {"3.0.0.1", "3.0.0.2", "3.0.0.3"},
				dns.LineDefault: {"3.0.0.1", "3.0.0.2", "3.0.0.3"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(buckets, tt.fallback)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			for l, ips := range got {
				if len(ips) > WindowSize {
					t.Errorf("line %s has %d candidates", l, len(ips))
				}
			}
		})
	}
}

func TestSelect_OwnBucketWinsOverFallback(t *testing.T) {
	buckets := map[string][]Candidate{
		"CT": {{IP: "3.0.0.1"}},
		"AB": {{IP: "9.0.0.1"}},
	}
	got := Select(buckets, "CT")
	if !reflect.DeepEqual(got[dns.LineOversea], []string{"9.0.0.1"}) {
		t.Errorf("expected oversea to use its own bucket, got %v", got[dns.LineOversea])
	}
}

func serve(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{
  "success": true,
  "data": {
    "v4": {
      "CM": [{"ip": "1.1.1.1", "speed": 10, "latency": 100}, {"ip": "1.1.1.2", "speed": 20, "latency": 100}],
      "CT": [{"ip": "3.3.3.3", "speed": 5, "latency": 50}]
    },
    "v6": {
      "CM": [{"ip": "2400::1", "speed": 10, "latency": 100}]
    }
  }
}`

func TestFetch_V4AndV6(t *testing.T) {
	srv := serve(t, okBody, http.StatusOK)
	c := New(logrtesting.NewTestLogger(t), Config{URL: srv.URL, Key: "secret"})

	pools := c.Fetch(context.Background(), "A")
	if !reflect.DeepEqual(pools[dns.LineMobile], []string{"1.1.1.2", "1.1.1.1"}) {
		t.Errorf("unexpected v4 mobile pool: %v", pools[dns.LineMobile])
	}
	if !reflect.DeepEqual(pools[dns.LineTelecom], []string{"3.3.3.3"}) {
		t.Errorf("unexpected v4 telecom pool: %v", pools[dns.LineTelecom])
	}

	pools = c.Fetch(context.Background(), "AAAA")
	if !reflect.DeepEqual(pools[dns.LineMobile], []string{"2400::1"}) {
		t.Errorf("unexpected v6 mobile pool: %v", pools[dns.LineMobile])
	}
	if len(pools[dns.LineTelecom]) != 0 {
		t.Errorf("expected no v6 telecom pool, got %v", pools[dns.LineTelecom])
	}
}

func TestFetch_FailuresYieldEmptyPools(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		key    string
	}{
		{"success false", `{"success": false, "data": {"v4": {"CM": [{"ip": "1.1.1.1"}]}}}`, http.StatusOK, "secret"},
		{"missing success", `{"data": {"v4": {"CM": [{"ip": "1.1.1.1"}]}}}`, http.StatusOK, "secret"},
		{"malformed", `{"success": tru`, http.StatusOK, "secret"},
		{"server error", `oops`, http.StatusInternalServerError, "secret"},
		{"forbidden", okBody, http.StatusOK, "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.body, tt.status)
			c := New(logrtesting.NewTestLogger(t), Config{URL: srv.URL, Key: tt.key})
			if pools := c.Fetch(context.Background(), "A"); !pools.Empty() {
				t.Errorf("expected empty pools, got %v", pools)
			}
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	c := New(logrtesting.NewTestLogger(t), Config{URL: "http://127.0.0.1:1/unreachable"})
	if pools := c.Fetch(context.Background(), "A"); !pools.Empty() {
		t.Errorf("expected empty pools, got %v", pools)
	}
}
