package huawei

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	hwdns "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/region"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

const (
	name          = "huawei"
	defaultRegion = "cn-north-4"
)

var lines = dns.MustLineCodec(map[dns.Line]string{
	dns.LineTelecom: "Dianxin",
	dns.LineUnicom:  "Liantong",
	dns.LineMobile:  "Yidong",
	dns.LineOversea: "Abroad",
	dns.LineDefault: "default_view",
})

func init() {
	dns.Register(name, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// recordSet is a line-aware recordset. Names are fully qualified.
type recordSet struct {
	ID      string
	Name    string
	Type    string
	Line    string
	TTL     int
	Records []string
}

// api is the subset of Huawei Cloud DNS used by Provider.
type api interface {
	zoneID(domain string) (string, error)
	listRecordSets(zoneID, fqdn, recordType string, limit int) ([]recordSet, error)
	createRecordSet(zoneID string, rs recordSet) (string, error)
	updateRecordSet(zoneID string, rs recordSet) error
	deleteRecordSet(zoneID, id string) error
}

// Provider implements dns.Provider for Huawei Cloud DNS.
type Provider struct {
	client     api
	defaultTTL int
	log        logr.Logger

	mu    sync.Mutex
	zones map[string]string // domain -> zone id
}

// New creates a Huawei Cloud DNS provider from the given settings map.
// Required settings: access_key, secret_key.
// Optional settings: region (default cn-north-4), default_ttl (default 600).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	ak := settings["access_key"]
	if ak == "" {
		return nil, fmt.Errorf("huawei: missing required setting 'access_key'")
	}
	sk := settings["secret_key"]
	if sk == "" {
		return nil, fmt.Errorf("huawei: missing required setting 'secret_key'")
	}

	defaultTTL := 600
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("huawei: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	reg := settings["region"]
	if reg == "" {
		reg = defaultRegion
	}

	auth := basic.NewCredentialsBuilder().WithAk(ak).WithSk(sk).Build()
	client := hwdns.NewDnsClient(
		hwdns.DnsClientBuilder().
			WithRegion(region.ValueOf(reg)).
			WithCredential(auth).
			Build())

	return newWithClient(log, sdkClient{client}, defaultTTL), nil
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
	id, err := p.client.zoneID(domain)
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

// List returns one record per recordset of subdomain with the given type.
// Recordsets holding several values are reported by their first value.
func (p *Provider) List(ctx context.Context, domain, subdomain, recordType string, pageSize int) (*dns.RecordList, error) {
	p.log.V(1).Info("listing records", "domain", domain, "subdomain", subdomain, "type", recordType)

	zoneID, err := p.zone(domain)
	if err != nil {
		return nil, dns.WrapError(name, "list", err)
	}
	fqdn := dns.FQDN(subdomain, domain)
	sets, err := p.client.listRecordSets(zoneID, fqdn, recordType, pageSize)
	if err != nil {
		return nil, dns.WrapError(name, "list", err)
	}

	out := &dns.RecordList{}
	for _, rs := range sets {
		// name filtering is a fuzzy search on the API side
		if !strings.EqualFold(rs.Name, fqdn) || len(rs.Records) == 0 {
			continue
		}
		out.Records = append(out.Records, dns.Record{
			ID:    rs.ID,
			Name:  dns.Subdomain(rs.Name, domain),
			Type:  rs.Type,
			Line:  lines.FromProvider(rs.Line),
			Value: rs.Records[0],
			TTL:   rs.TTL,
		})
	}
	out.Total = len(out.Records)
	return out, nil
}

// Create adds a new line-specific recordset and returns its ID.
func (p *Provider) Create(ctx context.Context, domain string, record dns.Record) (string, error) {
	p.log.Info("creating record", "domain", domain, "subdomain", record.Name, "line", record.Line, "value", record.Value)

	zoneID, err := p.zone(domain)
	if err != nil {
		return "", dns.WrapError(name, "create", err)
	}
	id, err := p.client.createRecordSet(zoneID, recordSet{
		Name:    dns.FQDN(record.Name, domain),
		Type:    record.Type,
		Line:    lines.ToProvider(record.Line),
		TTL:     p.ttl(record.TTL),
		Records: []string{record.Value},
	})
	if err != nil {
		return "", dns.WrapError(name, "create", err)
	}

	p.log.Info("record created", "id", id)
	return id, nil
}

// Update replaces the value of an existing recordset.
func (p *Provider) Update(ctx context.Context, domain string, record dns.Record) error {
	if record.ID == "" {
		return dns.Errorf(name, "update", "record id is required")
	}
	p.log.Info("updating record", "domain", domain, "id", record.ID, "line", record.Line, "value", record.Value)

	zoneID, err := p.zone(domain)
	if err != nil {
		return dns.WrapError(name, "update", err)
	}
	err = p.client.updateRecordSet(zoneID, recordSet{
		ID:      record.ID,
		Name:    dns.FQDN(record.Name, domain),
		Type:    record.Type,
		TTL:     p.ttl(record.TTL),
		Records: []string{record.Value},
	})
	if err != nil {
		return dns.WrapError(name, "update", err)
	}

	p.log.Info("record updated", "id", record.ID)
	return nil
}

// Delete removes a recordset by ID.
func (p *Provider) Delete(ctx context.Context, domain, recordID string) error {
	p.log.Info("deleting record", "domain", domain, "id", recordID)

	zoneID, err := p.zone(domain)
	if err != nil {
		return dns.WrapError(name, "delete", err)
	}
	if err := p.client.deleteRecordSet(zoneID, recordID); err != nil {
		return dns.WrapError(name, "delete", err)
	}

	p.log.Info("record deleted", "id", recordID)
	return nil
}

// sdkClient adapts the Huawei Cloud SDK client to api.
type sdkClient struct {
	c *hwdns.DnsClient
}

func (s sdkClient) zoneID(domain string) (string, error) {
	zoneName := dns.FQDN("", domain)
	resp, err := s.c.ListPublicZones(&model.ListPublicZonesRequest{Name: &zoneName})
	if err != nil {
		return "", err
	}
	if resp.Zones != nil {
		for _, z := range *resp.Zones {
			if z.Id != nil && z.Name != nil && strings.EqualFold(*z.Name, zoneName) {
				return *z.Id, nil
			}
		}
	}
	return "", fmt.Errorf("zone %q not found", domain)
}

func (s sdkClient) listRecordSets(zoneID, fqdn, recordType string, limit int) ([]recordSet, error) {
	req := &model.ListRecordSetsWithLineRequest{
		ZoneId: &zoneID,
		Name:   &fqdn,
		Type:   &recordType,
	}
	if limit > 0 {
		l := int32(limit)
		req.Limit = &l
	}
	resp, err := s.c.ListRecordSetsWithLine(req)
	if err != nil {
		return nil, err
	}
	if resp.Recordsets == nil {
		return nil, nil
	}
	out := make([]recordSet, 0, len(*resp.Recordsets))
	for _, v := range *resp.Recordsets {
		rs := recordSet{}
		if v.Id != nil {
			rs.ID = *v.Id
		}
		if v.Name != nil {
			rs.Name = *v.Name
		}
		if v.Type != nil {
			rs.Type = *v.Type
		}
		if v.Line != nil {
			rs.Line = *v.Line
		}
		if v.Ttl != nil {
			rs.TTL = int(*v.Ttl)
		}
		if v.Records != nil {
			rs.Records = *v.Records
		}
		out = append(out, rs)
	}
	return out, nil
}

func (s sdkClient) createRecordSet(zoneID string, rs recordSet) (string, error) {
	ttl := int32(rs.TTL)
	line := rs.Line
	resp, err := s.c.CreateRecordSetWithLine(&model.CreateRecordSetWithLineRequest{
		ZoneId: zoneID,
		Body: &model.CreateRecordSetWithLineReq{
			Name:    rs.Name,
			Type:    rs.Type,
			Ttl:     &ttl,
			Records: rs.Records,
			Line:    &line,
		},
	})
	if err != nil {
		return "", err
	}
	if resp.Id == nil {
		return "", nil
	}
	return *resp.Id, nil
}

func (s sdkClient) updateRecordSet(zoneID string, rs recordSet) error {
	ttl := int32(rs.TTL)
	records := rs.Records
	_, err := s.c.UpdateRecordSet(&model.UpdateRecordSetRequest{
		ZoneId:      zoneID,
		RecordsetId: rs.ID,
		Body: &model.UpdateRecordSetReq{
			Name:    rs.Name,
			Type:    rs.Type,
			Ttl:     &ttl,
			Records: &records,
		},
	})
	return err
}

func (s sdkClient) deleteRecordSet(zoneID, id string) error {
	_, err := s.c.DeleteRecordSet(&model.DeleteRecordSetRequest{
		ZoneId:      zoneID,
		RecordsetId: id,
	})
	return err
}
