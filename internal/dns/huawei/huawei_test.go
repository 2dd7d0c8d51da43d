package huawei

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

type fakeAPI struct {
	zoneLookups int
	sets        []recordSet
	created     []recordSet
	updated     []recordSet
	deleted     []string
	err         error
}

func (f *fakeAPI) zoneID(domain string) (string, error) {
	f.zoneLookups++
	if domain == "missing.com" {
		return "", errors.New("zone not found")
	}
	return "zone-" + domain, nil
}

func (f *fakeAPI) listRecordSets(zoneID, fqdn, recordType string, limit int) ([]recordSet, error) {
	return f.sets, f.err
}

func (f *fakeAPI) createRecordSet(zoneID string, rs recordSet) (string, error) {
	f.created = append(f.created, rs)
	return "rs-new", f.err
}

func (f *fakeAPI) updateRecordSet(zoneID string, rs recordSet) error {
	f.updated = append(f.updated, rs)
	return f.err
}

func (f *fakeAPI) deleteRecordSet(zoneID, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func TestNew_MissingKeys(t *testing.T) {
	if _, err := New(logr.Discard(), map[string]string{"secret_key": "s"}); err == nil {
		t.Error("expected error for missing access_key, got nil")
	}
	if _, err := New(logr.Discard(), map[string]string{"access_key": "a"}); err == nil {
		t.Error("expected error for missing secret_key, got nil")
	}
}

func TestList_MapsLinesAndFiltersNames(t *testing.T) {
	api := &fakeAPI{sets: []recordSet{
		{ID: "1", Name: "www.example.com.", Type: "A", Line: "Dianxin", Records: []string{"1.1.1.1"}},
		{ID: "2", Name: "www2.example.com.", Type: "A", Line: "Dianxin", Records: []string{"2.2.2.2"}},
		{ID: "3", Name: "www.example.com.", Type: "A", Line: "default_view", Records: []string{"3.3.3.3", "4.4.4.4"}},
		{ID: "4", Name: "www.example.com.", Type: "A", Line: "Yidong"},
	}}
	p := newWithClient(logr.Discard(), api, 600)

	list, err := p.List(context.Background(), "example.com", "www", "A", 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list.Records))
	}
	if list.Records[0].Line != dns.LineTelecom || list.Records[1].Line != dns.LineDefault {
		t.Errorf("unexpected lines: %q %q", list.Records[0].Line, list.Records[1].Line)
	}
	if list.Records[1].Value != "3.3.3.3" {
		t.Errorf("expected first value of recordset, got %q", list.Records[1].Value)
	}

	// zone id is cached per domain
	if _, err := p.List(context.Background(), "example.com", "www", "A", 100); err != nil {
		t.Fatal(err)
	}
	if api.zoneLookups != 1 {
		t.Errorf("expected 1 zone lookup, got %d", api.zoneLookups)
	}
}

func TestCreate_TranslatesLine(t *testing.T) {
	api := &fakeAPI{}
	p := newWithClient(logr.Discard(), api, 300)

	id, err := p.Create(context.Background(), "example.com", dns.Record{Name: "@", Type: "A", Line: dns.LineOversea, Value: "1.1.1.1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "rs-new" {
		t.Errorf("expected id 'rs-new', got %q", id)
	}
	got := api.created[0]
	if got.Line != "Abroad" || got.Name != "example.com." || got.TTL != 300 {
		t.Errorf("unexpected recordset: %+v", got)
	}
}

func TestUpdate_ReusesID(t *testing.T) {
	api := &fakeAPI{}
	p := newWithClient(logr.Discard(), api, 600)

	err := p.Update(context.Background(), "example.com", dns.Record{ID: "rs-1", Name: "www", Type: "A", Line: dns.LineUnicom, Value: "9.9.9.9"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if api.updated[0].ID != "rs-1" || api.updated[0].Records[0] != "9.9.9.9" {
		t.Errorf("unexpected update: %+v", api.updated[0])
	}
}

func TestZoneNotFound(t *testing.T) {
	p := newWithClient(logr.Discard(), &fakeAPI{}, 600)

	err := p.Delete(context.Background(), "missing.com", "rs-1")
	var pe *dns.ProviderError
	if !errors.As(err, &pe) || pe.Op != "delete" {
		t.Fatalf("expected delete ProviderError, got %v", err)
	}
}
