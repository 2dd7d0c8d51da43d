// Package cloudflare implements dns.Provider on top of the Cloudflare API.
// Cloudflare has no route lines: every record is reported on the default
// line and writes to any other line are rejected.
package cloudflare

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

const name = "cloudflare"

func init() {
	dns.Register(name, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// api is the subset of cloudflare-go used by Provider.
type api interface {
	ZoneIDByName(zoneName string) (string, error)
	DNSRecords(zoneID string, rr cf.DNSRecord) ([]cf.DNSRecord, error)
	CreateDNSRecord(zoneID string, rr cf.DNSRecord) (*cf.DNSRecordResponse, error)
	UpdateDNSRecord(zoneID, recordID string, rr cf.DNSRecord) error
	DeleteDNSRecord(zoneID, recordID string) error
}

// Provider implements dns.Provider for Cloudflare.
type Provider struct {
	client     api
	defaultTTL int
	proxied    bool
	log        logr.Logger

	mu    sync.Mutex
	zones map[string]string
}

// New creates a Cloudflare provider from the given settings map.
// Required settings: email, api_key.
// Optional settings: default_ttl (default 1, automatic), proxied (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	email := settings["email"]
	if email == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'email'")
	}
	key := settings["api_key"]
	if key == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_key'")
	}

	defaultTTL := 1
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	client, err := cf.New(key, email)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: create client: %w", err)
	}

	p := newWithClient(log, client, defaultTTL)
	p.proxied = settings["proxied"] == "true"
	return p, nil
}

func newWithClient(log logr.Logger, client api, defaultTTL int) *Provider {
	return &Provider{client: client, defaultTTL: defaultTTL, log: log, zones: map[string]string{}}
}

func (p *Provider) zone(domain string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.zones[domain]; ok {
		return id, nil
	}
	id, err := p.client.ZoneIDByName(strings.TrimSuffix(domain, "."))
	if err != nil {
		return "", err
	}
	p.zones[domain] = id
	return id, nil
}

func (p *Provider) ttl(ttl int) int {
	if ttl <= 0 {
		return p.defaultTTL
	}
	return ttl
}

func checkLine(op string, l dns.Line) error {
	if l != dns.LineDefault {
		return dns.Errorf(name, op, "route line %q is not supported", l)
	}
	return nil
}

// List returns the records of subdomain with the given type.
func (p *Provider) List(ctx context.Context, domain, subdomain, recordType string, pageSize int) (*dns.RecordList, error) {
	p.log.V(1).Info("listing records", "domain", domain, "subdomain", subdomain, "type", recordType)

	zoneID, err := p.zone(domain)
	if err != nil {
		return nil, dns.WrapError(name, "list", err)
	}
	fqdn := strings.TrimSuffix(dns.FQDN(subdomain, domain), ".")
	records, err := p.client.DNSRecords(zoneID, cf.DNSRecord{Name: fqdn, Type: recordType})
	if err != nil {
		return nil, dns.WrapError(name, "list", err)
	}

	out := &dns.RecordList{Total: len(records)}
	for _, r := range records {
		if pageSize > 0 && len(out.Records) == pageSize {
			break
		}
		out.Records = append(out.Records, dns.Record{
			ID:    r.ID,
			Name:  dns.Subdomain(r.Name, domain),
			Type:  r.Type,
			Line:  dns.LineDefault,
			Value: r.Content,
			TTL:   r.TTL,
		})
	}
	return out, nil
}

// Create adds a new record and returns its ID.
func (p *Provider) Create(ctx context.Context, domain string, record dns.Record) (string, error) {
	if err := checkLine("create", record.Line); err != nil {
		return "", err
	}
	p.log.Info("creating record", "domain", domain, "subdomain", record.Name, "value", record.Value)

	zoneID, err := p.zone(domain)
	if err != nil {
		return "", dns.WrapError(name, "create", err)
	}
	resp, err := p.client.CreateDNSRecord(zoneID, cf.DNSRecord{
		Name:    strings.TrimSuffix(dns.FQDN(record.Name, domain), "."),
		Type:    record.Type,
		Content: record.Value,
		TTL:     p.ttl(record.TTL),
		Proxied: p.proxied,
	})
	if err != nil {
		return "", dns.WrapError(name, "create", err)
	}
	if resp != nil && !resp.Success {
		return "", dns.Errorf(name, "create", "%v", resp.Errors)
	}

	id := ""
	if resp != nil {
		id = resp.Result.ID
	}
	p.log.Info("record created", "id", id)
	return id, nil
}

// Update modifies the content of an existing record.
func (p *Provider) Update(ctx context.Context, domain string, record dns.Record) error {
	if record.ID == "" {
		return dns.Errorf(name, "update", "record id is required")
	}
	if err := checkLine("update", record.Line); err != nil {
		return err
	}
	p.log.Info("updating record", "domain", domain, "id", record.ID, "value", record.Value)

	zoneID, err := p.zone(domain)
	if err != nil {
		return dns.WrapError(name, "update", err)
	}
	err = p.client.UpdateDNSRecord(zoneID, record.ID, cf.DNSRecord{
		Name:    strings.TrimSuffix(dns.FQDN(record.Name, domain), "."),
		Type:    record.Type,
		Content: record.Value,
		TTL:     p.ttl(record.TTL),
		Proxied: p.proxied,
	})
	if err != nil {
		return dns.WrapError(name, "update", err)
	}

	p.log.Info("record updated", "id", record.ID)
	return nil
}

// Delete removes a record by ID.
func (p *Provider) Delete(ctx context.Context, domain, recordID string) error {
	p.log.Info("deleting record", "domain", domain, "id", recordID)

	zoneID, err := p.zone(domain)
	if err != nil {
		return dns.WrapError(name, "delete", err)
	}
	if err := p.client.DeleteDNSRecord(zoneID, recordID); err != nil {
		return dns.WrapError(name, "delete", err)
	}

	p.log.Info("record deleted", "id", recordID)
	return nil
}
