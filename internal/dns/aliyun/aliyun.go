package aliyun

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

const (
	name            = "aliyun"
	defaultEndpoint = "alidns.cn-hangzhou.aliyuncs.com"
)

var lines = dns.MustLineCodec(map[dns.Line]string{
	dns.LineTelecom: "telecom",
	dns.LineUnicom:  "unicom",
	dns.LineMobile:  "mobile",
	dns.LineOversea: "oversea",
	dns.LineDefault: "default",
})

func init() {
	dns.Register(name, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// api is the subset of the Alidns client used by Provider.
type api interface {
	DescribeDomainRecords(req *alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error)
	AddDomainRecord(req *alidns.AddDomainRecordRequest) (*alidns.AddDomainRecordResponse, error)
	UpdateDomainRecord(req *alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error)
	DeleteDomainRecord(req *alidns.DeleteDomainRecordRequest) (*alidns.DeleteDomainRecordResponse, error)
}

// Provider implements dns.Provider for Alibaba Cloud DNS.
type Provider struct {
	client     api
	defaultTTL int64
	log        logr.Logger
}

// New creates an Alidns provider from the given settings map.
// Required settings: access_key_id, access_key_secret.
// Optional settings: endpoint, region, default_ttl (default 600).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	keyID := settings["access_key_id"]
	if keyID == "" {
		return nil, fmt.Errorf("aliyun: missing required setting 'access_key_id'")
	}
	keySecret := settings["access_key_secret"]
	if keySecret == "" {
		return nil, fmt.Errorf("aliyun: missing required setting 'access_key_secret'")
	}

	defaultTTL := int64(600)
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("aliyun: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	endpoint := settings["endpoint"]
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	cfg := &openapi.Config{
		AccessKeyId:     tea.String(keyID),
		AccessKeySecret: tea.String(keySecret),
		Endpoint:        tea.String(endpoint),
	}
	if v := settings["region"]; v != "" {
		cfg.RegionId = tea.String(v)
	}
	client, err := alidns.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("aliyun: create client: %w", err)
	}

	return newWithClient(log, client, defaultTTL), nil
}

func newWithClient(log logr.Logger, client api, defaultTTL int64) *Provider {
	return &Provider{client: client, defaultTTL: defaultTTL, log: log}
}

func (p *Provider) ttl(ttl int) *int64 {
	if ttl <= 0 {
		return tea.Int64(p.defaultTTL)
	}
	return tea.Int64(int64(ttl))
}

// List returns the records of subdomain with the given type. The Alidns
// keyword filter is fuzzy, so rows are matched on RR exactly afterwards.
func (p *Provider) List(ctx context.Context, domain, subdomain, recordType string, pageSize int) (*dns.RecordList, error) {
	p.log.V(1).Info("listing records", "domain", domain, "subdomain", subdomain, "type", recordType)

	req := &alidns.DescribeDomainRecordsRequest{
		DomainName: tea.String(domain),
		RRKeyWord:  tea.String(subdomain),
		Type:       tea.String(recordType),
	}
	if pageSize > 0 {
		req.PageSize = tea.Int64(int64(pageSize))
	}
	resp, err := p.client.DescribeDomainRecords(req)
	if err != nil {
		return nil, dns.WrapError(name, "list", err)
	}
	if resp == nil || resp.Body == nil || resp.Body.DomainRecords == nil {
		return nil, dns.Errorf(name, "list", "empty response")
	}

	out := &dns.RecordList{}
	for _, r := range resp.Body.DomainRecords.Record {
		if r == nil || !strings.EqualFold(tea.StringValue(r.RR), subdomain) {
			continue
		}
		out.Records = append(out.Records, dns.Record{
			ID:    tea.StringValue(r.RecordId),
			Name:  tea.StringValue(r.RR),
			Type:  tea.StringValue(r.Type),
			Line:  lines.FromProvider(tea.StringValue(r.Line)),
			Value: tea.StringValue(r.Value),
			TTL:   int(tea.Int64Value(r.TTL)),
		})
	}
	out.Total = int(tea.Int64Value(resp.Body.TotalCount))
	return out, nil
}

// Create adds a new record and returns its ID.
func (p *Provider) Create(ctx context.Context, domain string, record dns.Record) (string, error) {
	p.log.Info("creating record", "domain", domain, "subdomain", record.Name, "line", record.Line, "value", record.Value)

	resp, err := p.client.AddDomainRecord(&alidns.AddDomainRecordRequest{
		DomainName: tea.String(domain),
		RR:         tea.String(record.Name),
		Type:       tea.String(record.Type),
		Value:      tea.String(record.Value),
		Line:       tea.String(lines.ToProvider(record.Line)),
		TTL:        p.ttl(record.TTL),
	})
	if err != nil {
		return "", dns.WrapError(name, "create", err)
	}
	id := ""
	if resp != nil && resp.Body != nil {
		id = tea.StringValue(resp.Body.RecordId)
	}

	p.log.Info("record created", "id", id)
	return id, nil
}

// Update modifies the value of an existing record. Alidns rejects unknown
// record IDs, so a stale ID surfaces as an error.
func (p *Provider) Update(ctx context.Context, domain string, record dns.Record) error {
	if record.ID == "" {
		return dns.Errorf(name, "update", "record id is required")
	}
	p.log.Info("updating record", "domain", domain, "id", record.ID, "line", record.Line, "value", record.Value)

	_, err := p.client.UpdateDomainRecord(&alidns.UpdateDomainRecordRequest{
		RecordId: tea.String(record.ID),
		RR:       tea.String(record.Name),
		Type:     tea.String(record.Type),
		Value:    tea.String(record.Value),
		Line:     tea.String(lines.ToProvider(record.Line)),
		TTL:      p.ttl(record.TTL),
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

	_, err := p.client.DeleteDomainRecord(&alidns.DeleteDomainRecordRequest{
		RecordId: tea.String(recordID),
	})
	if err != nil {
		return dns.WrapError(name, "delete", err)
	}

	p.log.Info("record deleted", "id", recordID)
	return nil
}
