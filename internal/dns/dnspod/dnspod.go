package dnspod

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

const (
	name           = "dnspod"
	defaultBaseURL = "https://dnsapi.cn"

	codeOK        = "1"
	codeNoRecords = "10"

	// maxErrorBody caps how much of a non-200 reply is quoted in errors.
	maxErrorBody = 512
)

var lines = dns.MustLineCodec(map[dns.Line]string{
	dns.LineTelecom: "电信",
	dns.LineUnicom:  "联通",
	dns.LineMobile:  "移动",
	dns.LineOversea: "境外",
	dns.LineDefault: "默认",
})

func init() {
	dns.Register(name, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for the DNSPod API.
type Provider struct {
	baseURL    string
	loginToken string
	defaultTTL int
	client     *http.Client
	log        logr.Logger
}

// New creates a DNSPod provider from the given settings map.
// Required settings: login_token ("ID,Token"), or both token_id and token.
// Optional settings: base_url, default_ttl (default 600), timeout (default 30s),
// skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	loginToken := settings["login_token"]
	if loginToken == "" {
		id, token := settings["token_id"], settings["token"]
		if id == "" || token == "" {
			return nil, fmt.Errorf("dnspod: missing required setting 'login_token' (or 'token_id' and 'token')")
		}
		loginToken = id + "," + token
	}

	baseURL := settings["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	defaultTTL := 600
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("dnspod: invalid default_ttl %q: %w", v, err)
		}
		defaultTTL = parsed
	}

	timeout := 30 * time.Second
	if v := settings["timeout"]; v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("dnspod: invalid timeout %q: %w", v, err)
		}
		timeout = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:    baseURL,
		loginToken: loginToken,
		defaultTTL: defaultTTL,
		client:     &http.Client{Transport: transport, Timeout: timeout},
		log:        log,
	}, nil
}

// status is the envelope every DNSPod response carries.
type status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Line  string `json:"line"`
	Type  string `json:"type"`
	TTL   string `json:"ttl"`
	Value string `json:"value"`
}

type listResponse struct {
	Status status `json:"status"`
	Info   struct {
		RecordTotal string `json:"record_total"`
	} `json:"info"`
	Records []apiRecord `json:"records"`
}

type createResponse struct {
	Status status `json:"status"`
	Record struct {
		ID string `json:"id"`
	} `json:"record"`
}

type statusResponse struct {
	Status status `json:"status"`
}

// call posts a form to the named API action and decodes the JSON reply into out.
func (p *Provider) call(ctx context.Context, action string, form url.Values, out interface{}) error {
	form.Set("login_token", p.loginToken)
	form.Set("format", "json")

	endpoint := strings.TrimRight(p.baseURL, "/") + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "yk-cdn-dns/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s returned status %d: %s", action, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

func (p *Provider) ttl(ttl int) string {
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	return strconv.Itoa(ttl)
}

// List returns the records of subdomain with the given type.
func (p *Provider) List(ctx context.Context, domain, subdomain, recordType string, pageSize int) (*dns.RecordList, error) {
	p.log.V(1).Info("listing records", "domain", domain, "subdomain", subdomain, "type", recordType)

	form := url.Values{}
	form.Set("domain", domain)
	form.Set("sub_domain", subdomain)
	form.Set("record_type", recordType)
	if pageSize > 0 {
		form.Set("length", strconv.Itoa(pageSize))
	}

	var lr listResponse
	if err := p.call(ctx, "Record.List", form, &lr); err != nil {
		return nil, dns.WrapError(name, "list", err)
	}
	switch lr.Status.Code {
	case codeOK:
	case codeNoRecords:
		return &dns.RecordList{}, nil
	default:
		return nil, dns.Errorf(name, "list", "code %s: %s", lr.Status.Code, lr.Status.Message)
	}

	out := &dns.RecordList{Records: make([]dns.Record, 0, len(lr.Records))}
	for _, r := range lr.Records {
		// sub_domain is an exact filter, but the type filter is not
		// applied by every API version.
		if !strings.EqualFold(r.Type, recordType) {
			continue
		}
		ttl, _ := strconv.Atoi(r.TTL)
		out.Records = append(out.Records, dns.Record{
			ID:    r.ID,
			Name:  r.Name,
			Type:  r.Type,
			Line:  lines.FromProvider(r.Line),
			Value: r.Value,
			TTL:   ttl,
		})
	}
	out.Total, _ = strconv.Atoi(lr.Info.RecordTotal)
	if out.Total == 0 {
		out.Total = len(out.Records)
	}
	return out, nil
}

func (p *Provider) recordForm(domain string, record dns.Record) url.Values {
	form := url.Values{}
	form.Set("domain", domain)
	form.Set("sub_domain", record.Name)
	form.Set("record_type", record.Type)
	form.Set("record_line", lines.ToProvider(record.Line))
	form.Set("value", record.Value)
	form.Set("ttl", p.ttl(record.TTL))
	return form
}

// Create adds a new record and returns its ID.
func (p *Provider) Create(ctx context.Context, domain string, record dns.Record) (string, error) {
	p.log.Info("creating record", "domain", domain, "subdomain", record.Name, "line", record.Line, "value", record.Value)

	var cr createResponse
	if err := p.call(ctx, "Record.Create", p.recordForm(domain, record), &cr); err != nil {
		return "", dns.WrapError(name, "create", err)
	}
	if cr.Status.Code != codeOK {
		return "", dns.Errorf(name, "create", "code %s: %s", cr.Status.Code, cr.Status.Message)
	}

	p.log.Info("record created", "id", cr.Record.ID)
	return cr.Record.ID, nil
}

// Update modifies the value of an existing record.
func (p *Provider) Update(ctx context.Context, domain string, record dns.Record) error {
	if record.ID == "" {
		return dns.Errorf(name, "update", "record id is required")
	}
	p.log.Info("updating record", "domain", domain, "id", record.ID, "line", record.Line, "value", record.Value)

	form := p.recordForm(domain, record)
	form.Set("record_id", record.ID)

	var sr statusResponse
	if err := p.call(ctx, "Record.Modify", form, &sr); err != nil {
		return dns.WrapError(name, "update", err)
	}
	if sr.Status.Code != codeOK {
		return dns.Errorf(name, "update", "code %s: %s", sr.Status.Code, sr.Status.Message)
	}

	p.log.Info("record updated", "id", record.ID)
	return nil
}

// Delete removes a record by ID.
func (p *Provider) Delete(ctx context.Context, domain, recordID string) error {
	p.log.Info("deleting record", "domain", domain, "id", recordID)

	form := url.Values{}
	form.Set("domain", domain)
	form.Set("record_id", recordID)

	var sr statusResponse
	if err := p.call(ctx, "Record.Remove", form, &sr); err != nil {
		return dns.WrapError(name, "delete", err)
	}
	if sr.Status.Code != codeOK {
		return dns.Errorf(name, "delete", "code %s: %s", sr.Status.Code, sr.Status.Message)
	}

	p.log.Info("record deleted", "id", recordID)
	return nil
}
