package dns

import (
	"strings"

	mdns "github.com/miekg/dns"
)

// ApexName is the subdomain label used for the zone apex.
const ApexName = "@"

// FQDN joins a subdomain and domain into a fully qualified name with a
// trailing dot. The apex label "@" (or an empty subdomain) yields the domain.
// e.g. ("www", "example.com") → "www.example.com."
func FQDN(subdomain, domain string) string {
	domain = strings.TrimSuffix(domain, ".")
	if subdomain == "" || subdomain == ApexName {
		return mdns.Fqdn(domain)
	}
	return mdns.Fqdn(subdomain + "." + domain)
}

// Subdomain strips the domain from an FQDN, returning "@" for the apex.
// e.g. ("www.example.com.", "example.com") → "www"
func Subdomain(fqdn, domain string) string {
	name := strings.TrimSuffix(fqdn, ".")
	domain = strings.TrimSuffix(domain, ".")
	if strings.EqualFold(name, domain) {
		return ApexName
	}
	if suffix := "." + domain; len(name) > len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// IPVersion returns "v4" for A records and "v6" for anything else.
func IPVersion(recordType string) string {
	if strings.EqualFold(recordType, "A") {
		return "v4"
	}
	return "v6"
}
