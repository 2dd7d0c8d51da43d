package cloudflare

import (
	"context"
	"errors"
	"testing"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

type fakeAPI struct {
	records  []cf.DNSRecord
	lastList cf.DNSRecord
	created  []cf.DNSRecord
	updated  map[string]cf.DNSRecord
	deleted  []string
}

func (f *fakeAPI) ZoneIDByName(zoneName string) (string, error) {
	if zoneName != "example.com" {
		return "", errors.New("zone could not be found")
	}
	return "zone-1", nil
}

func (f *fakeAPI) DNSRecords(zoneID string, rr cf.DNSRecord) ([]cf.DNSRecord, error) {
	f.lastList = rr
	return f.records, nil
}

func (f *fakeAPI) CreateDNSRecord(zoneID string, rr cf.DNSRecord) (*cf.DNSRecordResponse, error) {
	f.created = append(f.created, rr)
	resp := &cf.DNSRecordResponse{Result: cf.DNSRecord{ID: "cf-new"}}
	resp.Success = true
	return resp, nil
}

func (f *fakeAPI) UpdateDNSRecord(zoneID, recordID string, rr cf.DNSRecord) error {
	if f.updated == nil {
		f.updated = map[string]cf.DNSRecord{}
	}
	f.updated[recordID] = rr
	return nil
}

func (f *fakeAPI) DeleteDNSRecord(zoneID, recordID string) error {
	f.deleted = append(f.deleted, recordID)
	return nil
}

func TestNew_MissingSettings(t *testing.T) {
	if _, err := New(logr.Discard(), map[string]string{"api_key": "k"}); err == nil {
		t.Error("expected error for missing email, got nil")
	}
	if _, err := New(logr.Discard(), map[string]string{"email": "a@b.c"}); err == nil {
		t.Error("expected error for missing api_key, got nil")
	}
}

func TestList_AllDefaultLine(t *testing.T) {
	api := &fakeAPI{records: []cf.DNSRecord{
		{ID: "1", Name: "www.example.com", Type: "A", Content: "1.1.1.1"},
		{ID: "2", Name: "www.example.com", Type: "A", Content: "2.2.2.2"},
		{ID: "3", Name: "www.example.com", Type: "A", Content: "3.3.3.3"},
	}}
	p := newWithClient(logr.Discard(), api, 1)

	list, err := p.List(context.Background(), "example.com", "www", "A", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Records) != 2 || list.Total != 3 {
		t.Fatalf("expected 2 of 3 records, got %d of %d", len(list.Records), list.Total)
	}
	for _, r := range list.Records {
		if r.Line != dns.LineDefault {
			t.Errorf("expected default line, got %q", r.Line)
		}
	}
	if api.lastList.Name != "www.example.com" {
		t.Errorf("expected name filter 'www.example.com', got %q", api.lastList.Name)
	}
}

func TestCreate_RejectsNonDefaultLine(t *testing.T) {
	api := &fakeAPI{}
	p := newWithClient(logr.Discard(), api, 1)

	_, err := p.Create(context.Background(), "example.com", dns.Record{Name: "www", Type: "A", Line: dns.LineTelecom, Value: "1.1.1.1"})
	var pe *dns.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if len(api.created) != 0 {
		t.Error("expected no API call")
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	api := &fakeAPI{}
	p := newWithClient(logr.Discard(), api, 1)
	ctx := context.Background()

	id, err := p.Create(ctx, "example.com", dns.Record{Name: "@", Type: "A", Line: dns.LineDefault, Value: "1.1.1.1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "cf-new" || api.created[0].Name != "example.com" {
		t.Errorf("unexpected create: id=%q rec=%+v", id, api.created[0])
	}

	if err := p.Update(ctx, "example.com", dns.Record{ID: id, Name: "@", Type: "A", Line: dns.LineDefault, Value: "2.2.2.2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if api.updated[id].Content != "2.2.2.2" {
		t.Errorf("expected updated content 2.2.2.2, got %q", api.updated[id].Content)
	}

	if err := p.Delete(ctx, "example.com", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(api.deleted) != 1 {
		t.Errorf("expected 1 delete, got %d", len(api.deleted))
	}
}
