package config

import (
	"fmt"
	"sort"
	"strings"

	mdns "github.com/miekg/dns"
	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

// DomainMap maps domains to subdomains to the route lines managed for them.
type DomainMap struct {
	entries map[string]map[string][]dns.Line
}

// ParseDomainMap parses a YAML (or JSON) document of the form
//
//	example.com:
//	  "@": [CT, CU, CM]
//	  www: [telecom, default]
//
// Lines may be given as ISP codes or canonical names. Duplicate lines for
// the same subdomain are collapsed.
func ParseDomainMap(data []byte) (*DomainMap, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing domain map: %w", err)
	}
	return newDomainMap(raw)
}

func newDomainMap(raw map[string]map[string][]string) (*DomainMap, error) {
	dm := &DomainMap{entries: make(map[string]map[string][]dns.Line, len(raw))}
	for domain, subs := range raw {
		domain = strings.ToLower(strings.TrimSuffix(domain, "."))
		if _, ok := mdns.IsDomainName(domain); !ok || !strings.Contains(domain, ".") {
			return nil, fmt.Errorf("invalid domain %q", domain)
		}
		if len(subs) == 0 {
			return nil, fmt.Errorf("domain %q: no subdomains configured", domain)
		}
		dm.entries[domain] = make(map[string][]dns.Line, len(subs))
		for sub, codes := range subs {
			if sub != dns.ApexName {
				if _, ok := mdns.IsDomainName(sub); !ok {
					return nil, fmt.Errorf("domain %q: invalid subdomain %q", domain, sub)
				}
			}
			if len(codes) == 0 {
				return nil, fmt.Errorf("domain %q subdomain %q: no lines configured", domain, sub)
			}
			seen := make(map[dns.Line]bool, len(codes))
			lines := make([]dns.Line, 0, len(codes))
			for _, code := range codes {
				l, err := dns.ParseLine(code)
				if err != nil {
					return nil, fmt.Errorf("domain %q subdomain %q: %w", domain, sub, err)
				}
				if !seen[l] {
					seen[l] = true
					lines = append(lines, l)
				}
			}
			dm.entries[domain][sub] = lines
		}
	}
	return dm, nil
}

// UnmarshalYAML lets a DomainMap be embedded in the main configuration file.
func (dm *DomainMap) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]map[string][]string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := newDomainMap(raw)
	if err != nil {
		return err
	}
	*dm = *parsed
	return nil
}

// Len returns the number of configured domains.
func (dm *DomainMap) Len() int {
	return len(dm.entries)
}

// Domains returns all configured domains, sorted.
func (dm *DomainMap) Domains() []string {
	domains := make([]string, 0, len(dm.entries))
	for d := range dm.entries {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Subdomains returns the configured subdomains of domain, sorted.
func (dm *DomainMap) Subdomains(domain string) []string {
	subs := make([]string, 0, len(dm.entries[domain]))
	for s := range dm.entries[domain] {
		subs = append(subs, s)
	}
	sort.Strings(subs)
	return subs
}

// Lines returns the lines managed for domain/subdomain in configured order.
func (dm *DomainMap) Lines(domain, subdomain string) []dns.Line {
	return dm.entries[domain][subdomain]
}
